package cli

import (
	"context"
	"errors"
	"time"

	"github.com/sgheorghe/moviekeeper/internal/client/auth"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")

	session, err := c.authService.Session(ctx)
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		c.io.Println("Session:  not authenticated")
	case err != nil:
		return err
	default:
		c.io.Printf("Session:  %s (token expires %s)\n",
			session.Username,
			time.Unix(session.ExpiresAt, 0).Format(time.RFC1123))
	}

	count, err := c.itemsService.PendingCount(ctx)
	if err != nil {
		return err
	}
	c.io.Printf("Pending:  %d mutation(s) waiting for sync\n", count)

	snap := c.itemsService.Snapshot()
	c.io.Printf("Local:    %d movie(s)\n", len(snap.Items))
	if snap.Dropped > 0 {
		c.io.Printf("Dropped:  %d mutation(s) abandoned after repeated failures\n", snap.Dropped)
	}

	return nil
}
