package validation

import (
	"fmt"

	"github.com/sgheorghe/moviekeeper/pkg/api"
)

// MaxNameLen максимальная длина названия записи
const MaxNameLen = 200

// ValidateItem checks the fields a client controls before an item is
// accepted for save or dispatched to the server. Identity and owner
// fields are not validated here: the server assigns them.
func ValidateItem(it *api.Item) error {
	if it.Name == "" {
		return fmt.Errorf("name is missing")
	}

	if len(it.Name) > MaxNameLen {
		return fmt.Errorf("name must not exceed %d characters", MaxNameLen)
	}

	if it.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}

	return nil
}
