package cli

import "context"

// runWatch follows the replica until ctx is cancelled, re-rendering the
// table on every change.
func (c *Cli) runWatch(ctx context.Context) error {
	if err := c.itemsService.Refresh(ctx); err != nil {
		return err
	}

	updates, cancel := c.itemsService.Watch()
	defer cancel()

	c.io.Println("Watching for updates (Ctrl+C to stop)...")
	c.io.Println()
	c.printItems(c.itemsService.Snapshot().Items)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
			c.io.Println()
			c.printItems(c.itemsService.Snapshot().Items)
		}
	}
}
