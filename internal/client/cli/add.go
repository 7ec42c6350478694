package cli

import (
	"context"
	"time"

	"github.com/sgheorghe/moviekeeper/pkg/api"
)

func (c *Cli) runAdd(ctx context.Context) error {
	c.io.Println("=== Add Movie ===")

	name, description, date, price, cinema, err := c.readItemFields("", "", time.Time{}, 0, false)
	if err != nil {
		return err
	}

	item := api.Item{
		Name:        name,
		Description: description,
		Date:        date,
		Price:       price,
		Cinema:      cinema,
	}

	localID, err := c.itemsService.Save(ctx, item)
	if err != nil {
		return err
	}

	c.io.Println()
	count, err := c.itemsService.PendingCount(ctx)
	if err == nil && count > 0 {
		c.io.Printf("✓ Movie saved locally (localId %s); it will sync when the server is reachable.\n", localID)
	} else {
		c.io.Printf("✓ Movie saved (localId %s)\n", localID)
	}

	return nil
}
