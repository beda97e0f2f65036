package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// The relay's error taxonomy. Handlers map these onto HTTP statuses;
// anything else is an internal failure for that request only.
var (
	// ErrValidation marks a malformed request, rejected before
	// persistence.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown user or group; routing aborts with no
	// partial fan-out.
	ErrNotFound = errors.New("not found")

	// ErrNotMember marks a sender who is not a member of the target
	// group; rejected before persistence.
	ErrNotMember = errors.New("not a member of this group")
)

// Validationf wraps ErrValidation with a reason.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translateNotFound converts a gorm record miss into the taxonomy.
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
