package engine

import (
	"errors"
	"fmt"

	"github.com/netpulse/netpulse/internal/database"
)

// ErrNotFound is returned when no alert exists with the requested id
var ErrNotFound = errors.New("alert not found")

// InvalidStateError is returned when a lifecycle transition is attempted
// from a state that does not permit it (e.g. acknowledging a non-active
// alert).
type InvalidStateError struct {
	UUID   string
	Status database.AlertStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("alert %s is %s, transition not allowed", e.UUID, e.Status)
}

// AlreadyResolvedError is returned when resolving an alert that has already
// been resolved.
type AlreadyResolvedError struct {
	UUID string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("alert %s is already resolved", e.UUID)
}
