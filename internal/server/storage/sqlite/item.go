package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sgheorghe/moviekeeper/internal/server/storage"
	"github.com/sgheorghe/moviekeeper/pkg/api"
)

// CreateItem stores a new item
func (s *Storage) CreateItem(ctx context.Context, item *api.Item) error {
	query := `
		INSERT INTO items (id, user_id, local_id, name, description, date, price, cinema, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.UserID,
		item.LocalID,
		item.Name,
		item.Description,
		nullTime(item.Date),
		item.Price,
		item.Cinema,
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

// GetItem retrieves one item scoped to its owner
func (s *Storage) GetItem(ctx context.Context, userID, id string) (*api.Item, error) {
	query := `
		SELECT id, user_id, local_id, name, description, date, price, cinema
		FROM items
		WHERE id = ? AND user_id = ?
	`

	item := &api.Item{}
	var date sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id, userID).Scan(
		&item.ID,
		&item.UserID,
		&item.LocalID,
		&item.Name,
		&item.Description,
		&date,
		&item.Price,
		&item.Cinema,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if date.Valid {
		item.Date = date.Time
	}

	return item, nil
}

// UpdateItem replaces an existing item's fields
func (s *Storage) UpdateItem(ctx context.Context, item *api.Item) error {
	query := `
		UPDATE items
		SET local_id = ?, name = ?, description = ?, date = ?, price = ?, cinema = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		item.LocalID,
		item.Name,
		item.Description,
		nullTime(item.Date),
		item.Price,
		item.Cinema,
		time.Now(),
		item.ID,
		item.UserID,
	)

	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrItemNotFound
	}

	return nil
}

// DeleteItem removes an item scoped to its owner
func (s *Storage) DeleteItem(ctx context.Context, userID, id string) error {
	query := `DELETE FROM items WHERE id = ? AND user_id = ?`

	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrItemNotFound
	}

	return nil
}

// ListItems returns the user's items matching the query, oldest first
func (s *Storage) ListItems(ctx context.Context, userID string, q storage.ListQuery) ([]api.Item, error) {
	query := `
		SELECT id, user_id, local_id, name, description, date, price, cinema
		FROM items
		WHERE user_id = ?
	`
	args := []any{userID}

	if q.Name != "" {
		query += ` AND name LIKE ? COLLATE NOCASE`
		args = append(args, "%"+q.Name+"%")
	}
	if q.Cinema != nil {
		query += ` AND cinema = ?`
		args = append(args, *q.Cinema)
	}

	query += ` ORDER BY created_at, id`

	if q.PageSize > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.PageSize, (page-1)*q.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []api.Item
	for rows.Next() {
		var item api.Item
		var date sql.NullTime

		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.LocalID,
			&item.Name,
			&item.Description,
			&date,
			&item.Price,
			&item.Cinema,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}

		if date.Valid {
			item.Date = date.Time
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
