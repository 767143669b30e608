package dispatch

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("nicht gefunden")
	ErrConflict          = errors.New("konflikt")
	ErrInvalidTransition = errors.New("unzulässiger statuswechsel")
	ErrValidation        = errors.New("ungültige eingabe")
)

// notFound übersetzt gorm.ErrRecordNotFound in ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return fmt.Errorf("%s %s laden: %w", what, id, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
