package cli

import (
	"context"
	"fmt"
	"os"
)

func (c *Cli) Run(ctx context.Context, command string, args []string) {
	var err error

	switch command {
	case "register":
		err = c.runRegister(ctx)
	case "login":
		err = c.runLogin(ctx)
	case "logout":
		err = c.runLogout(ctx)
	case "status":
		err = c.runStatus(ctx)
	case "list":
		err = c.runList(ctx)
	case "add":
		err = c.runAdd(ctx)
	case "edit":
		err = c.runEdit(ctx, args)
	case "delete":
		err = c.runDelete(ctx, args)
	case "sync":
		err = c.runSync(ctx)
	case "watch":
		err = c.runWatch(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		PrintUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
