package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runEdit(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: moviekeeper edit <id>")
	}
	ref := args[0]

	snap := c.itemsService.Snapshot()
	var found bool
	for _, r := range snap.Items {
		if r.Matches(ref, ref) {
			c.io.Println("=== Edit Movie ===")

			name, description, date, price, cinema, err := c.readItemFields(
				r.Name, r.Description, r.Date, r.Price, r.Cinema)
			if err != nil {
				return err
			}

			item := r.Item
			item.Name = name
			item.Description = description
			item.Date = date
			item.Price = price
			item.Cinema = cinema

			if _, err := c.itemsService.Save(ctx, item); err != nil {
				return err
			}

			c.io.Println()
			c.io.Println("✓ Movie updated")
			found = true
			break
		}
	}

	if !found {
		return fmt.Errorf("no movie with id or localId %q", ref)
	}
	return nil
}
