package store

import (
	"errors"
	"fmt"
)

// ErrContextClosed is returned by Perform and PerformAndWait after Close.
var ErrContextClosed = errors.New("store: context closed")

// ErrObjectDeleted is returned when updating an object already deleted in
// the context.
var ErrObjectDeleted = errors.New("store: object deleted")

// IncompatibleModelError reports a model that cannot be merged into the
// descriptors already recorded in the store file.
type IncompatibleModelError struct {
	Entity    string
	Attribute string
	Reason    string
}

func (e *IncompatibleModelError) Error() string {
	return fmt.Sprintf("incompatible model: %s.%s: %s", e.Entity, e.Attribute, e.Reason)
}

// IsIncompatibleModel returns true if err is or wraps an IncompatibleModelError.
func IsIncompatibleModel(err error) bool {
	var ime *IncompatibleModelError
	return errors.As(err, &ime)
}
