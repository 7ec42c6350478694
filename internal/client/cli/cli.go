package cli

import (
	"fmt"

	"github.com/sgheorghe/moviekeeper/internal/client/auth"
	"github.com/sgheorghe/moviekeeper/internal/client/iocli"
	"github.com/sgheorghe/moviekeeper/internal/client/items"
)

type Cli struct {
	io           iocli.IO
	authService  *auth.Service
	itemsService items.Service
}

func New(io iocli.IO, authService *auth.Service, itemsService items.Service) *Cli {
	return &Cli{
		io:           io,
		authService:  authService,
		itemsService: itemsService,
	}
}

func PrintUsage() {
	fmt.Println("MovieKeeper Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  moviekeeper [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version        Show version information")
	fmt.Println("  --server URL     Server URL (default: http://localhost:3000)")
	fmt.Println("  --ws URL         WebSocket URL (default: ws://localhost:3000/ws)")
	fmt.Println("  --db PATH        Path to local database (default: moviekeeper-client.db)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register                Register new user")
	fmt.Println("  login                   Login to server")
	fmt.Println("  logout                  Logout (local session only)")
	fmt.Println("  status                  Show session and pending sync state")
	fmt.Println("  list                    List movies (local view, works offline)")
	fmt.Println("  add                     Add a movie")
	fmt.Println("  edit <id>               Edit a movie")
	fmt.Println("  delete <id>             Delete a movie")
	fmt.Println("  sync                    Run a sync pass now")
	fmt.Println("  watch                   Follow live updates until interrupted")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  moviekeeper register")
	fmt.Println("  moviekeeper login")
	fmt.Println("  moviekeeper add")
	fmt.Println("  moviekeeper list")
	fmt.Println("  moviekeeper edit b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5")
	fmt.Println("  moviekeeper --server https://example.com sync")
}
