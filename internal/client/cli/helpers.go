package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sgheorghe/moviekeeper/internal/client/replica"
	"github.com/sgheorghe/moviekeeper/internal/models"
)

const dateLayout = "2006-01-02"

// printItems renders the collection as a fixed-width table.
func (c *Cli) printItems(records []replica.Record) {
	if len(records) == 0 {
		c.io.Println("No movies yet. Run 'moviekeeper add' to create one.")
		return
	}

	c.io.Printf("%-36s  %-30s  %-10s  %8s  %-7s  %s\n",
		"ID", "NAME", "DATE", "PRICE", "CINEMA", "STATE")
	for _, r := range records {
		id := r.ID
		if id == "" {
			id = "(local) " + shorten(r.LocalID, 26)
		}
		date := ""
		if !r.Date.IsZero() {
			date = r.Date.Format(dateLayout)
		}
		cinema := "no"
		if r.Cinema {
			cinema = "yes"
		}
		c.io.Printf("%-36s  %-30s  %-10s  %8.2f  %-7s  %s\n",
			id, shorten(r.Name, 30), date, r.Price, cinema, stateLabel(r.State()))
	}
}

func stateLabel(s models.RecordState) string {
	switch s {
	case models.StateLocalOnly:
		return "local only"
	case models.StatePendingSync:
		return "pending"
	case models.StateSynced:
		return "synced"
	case models.StateDropped:
		return "dropped"
	default:
		return string(s)
	}
}

func shorten(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// readItemFields prompts for the editable movie fields. Empty input
// keeps the passed-in default.
func (c *Cli) readItemFields(name, description string, date time.Time, price float64, cinema bool) (
	string, string, time.Time, float64, bool, error,
) {
	input, err := c.io.ReadInput(promptWithDefault("Name", name))
	if err != nil {
		return "", "", time.Time{}, 0, false, err
	}
	if input != "" {
		name = input
	}

	input, err = c.io.ReadInput(promptWithDefault("Description", description))
	if err != nil {
		return "", "", time.Time{}, 0, false, err
	}
	if input != "" {
		description = input
	}

	input, err = c.io.ReadInput(promptWithDefault("Release date (YYYY-MM-DD)", formatDate(date)))
	if err != nil {
		return "", "", time.Time{}, 0, false, err
	}
	if input != "" {
		parsed, err := time.Parse(dateLayout, input)
		if err != nil {
			return "", "", time.Time{}, 0, false, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", input)
		}
		date = parsed
	}

	input, err = c.io.ReadInput(promptWithDefault("Ticket price", formatPrice(price)))
	if err != nil {
		return "", "", time.Time{}, 0, false, err
	}
	if input != "" {
		parsed, err := strconv.ParseFloat(input, 64)
		if err != nil {
			return "", "", time.Time{}, 0, false, fmt.Errorf("invalid price %q", input)
		}
		price = parsed
	}

	input, err = c.io.ReadInput(promptWithDefault("Seen in cinema (y/n)", boolLabel(cinema)))
	if err != nil {
		return "", "", time.Time{}, 0, false, err
	}
	if input != "" {
		switch strings.ToLower(input) {
		case "y", "yes":
			cinema = true
		case "n", "no":
			cinema = false
		default:
			return "", "", time.Time{}, 0, false, fmt.Errorf("invalid answer %q: expected y or n", input)
		}
	}

	return name, description, date, price, cinema, nil
}

func promptWithDefault(label, def string) string {
	if def == "" {
		return label + ": "
	}
	return fmt.Sprintf("%s [%s]: ", label, def)
}

func formatDate(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func formatPrice(p float64) string {
	if p == 0 {
		return ""
	}
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func boolLabel(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
