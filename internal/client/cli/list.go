package cli

import "context"

func (c *Cli) runList(ctx context.Context) error {
	// лучший доступный список: сначала пробуем обновиться с сервера,
	// при неудаче показываем локальную копию
	if err := c.itemsService.Refresh(ctx); err != nil {
		return err
	}

	snap := c.itemsService.Snapshot()
	if snap.FetchErr != nil {
		c.io.Println("(offline: showing local copy)")
		c.io.Println()
	}

	c.printItems(snap.Items)
	return nil
}
