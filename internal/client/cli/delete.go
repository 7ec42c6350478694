package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: moviekeeper delete <id>")
	}
	ref := args[0]

	snap := c.itemsService.Snapshot()
	for _, r := range snap.Items {
		if r.Matches(ref, ref) {
			ok, err := c.io.Confirm(fmt.Sprintf("Delete %q?", r.Name))
			if err != nil {
				return err
			}
			if !ok {
				c.io.Println("Cancelled.")
				return nil
			}

			if err := c.itemsService.Delete(ctx, r.ID, r.LocalID); err != nil {
				return err
			}
			c.io.Println("✓ Movie deleted")
			return nil
		}
	}

	return fmt.Errorf("no movie with id or localId %q", ref)
}
