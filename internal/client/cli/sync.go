package cli

import "context"

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")

	before, err := c.itemsService.PendingCount(ctx)
	if err != nil {
		return err
	}
	c.io.Printf("Pending mutations: %d\n", before)
	c.io.Println()

	result, err := c.itemsService.SyncNow(ctx)
	if err != nil {
		return err
	}

	if result.Skipped {
		c.io.Println("Another sync run is already in progress.")
		return nil
	}

	c.io.Println("✓ Synchronization completed!")
	c.io.Println()
	c.io.Printf("Dispatched: %d mutation(s)\n", result.Dispatched)
	c.io.Printf("Confirmed:  %d\n", result.Succeeded)
	if result.Failed > 0 {
		c.io.Printf("Failed:     %d (kept in queue for retry)\n", result.Failed)
	}
	if result.Dropped > 0 {
		c.io.Printf("Dropped:    %d (abandoned after repeated failures)\n", result.Dropped)
	}

	return nil
}
