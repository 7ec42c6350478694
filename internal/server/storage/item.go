package storage

import (
	"context"

	"github.com/sgheorghe/moviekeeper/pkg/api"
)

// ListQuery задает фильтры и пагинацию для выборки записей
type ListQuery struct {
	// Name filters by case-insensitive substring match when non-empty.
	Name string

	// Cinema filters by the cinema flag when non-nil.
	Cinema *bool

	// Page is 1-based; PageSize <= 0 disables pagination.
	Page     int
	PageSize int
}

// ItemStorage defines interface for item persistence. Every operation
// is scoped to the owning user: an item id belonging to another user
// behaves like a missing item.
type ItemStorage interface {
	// CreateItem stores a new item. The caller assigns the id and owner.
	CreateItem(ctx context.Context, item *api.Item) error

	// GetItem retrieves one item by id.
	// Returns ErrItemNotFound if it doesn't exist or has another owner.
	GetItem(ctx context.Context, userID, id string) (*api.Item, error)

	// UpdateItem replaces an existing item's fields.
	// Returns ErrItemNotFound if it doesn't exist or has another owner.
	UpdateItem(ctx context.Context, item *api.Item) error

	// DeleteItem removes an item by id.
	// Returns ErrItemNotFound if it doesn't exist or has another owner.
	DeleteItem(ctx context.Context, userID, id string) error

	// ListItems returns the user's items matching the query, oldest
	// first.
	ListItems(ctx context.Context, userID string, q ListQuery) ([]api.Item, error)
}
