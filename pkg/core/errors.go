package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the match services wraps one of these,
// so callers can branch with errors.Is.
var (
	ErrCapacity            = errors.New("capacity exceeded")
	ErrState               = errors.New("invalid state")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrResourceUnavailable = errors.New("resource unavailable")
	ErrPersistence         = errors.New("persistence failure")
)

var (
	ErrSideFull           = fmt.Errorf("%w: side is full", ErrCapacity)
	ErrMatchFull          = fmt.Errorf("%w: match is full", ErrCapacity)
	ErrAlreadyInMatch     = fmt.Errorf("%w: player already in a match", ErrConflict)
	ErrMapExists          = fmt.Errorf("%w: map already exists", ErrConflict)
	ErrNotInMatch         = fmt.Errorf("%w: player not in a match", ErrNotFound)
	ErrUnknownMap         = fmt.Errorf("%w: unknown map", ErrNotFound)
	ErrUnknownMatch       = fmt.Errorf("%w: unknown match", ErrNotFound)
	ErrNoAvailableMap     = fmt.Errorf("%w: no available map", ErrResourceUnavailable)
	ErrAtCapacity         = fmt.Errorf("%w: concurrent match limit reached", ErrResourceUnavailable)
	ErrEconomyUnavailable = fmt.Errorf("%w: economy provider unavailable", ErrResourceUnavailable)
	ErrInvalidMap         = fmt.Errorf("%w: invalid map definition", ErrState)
)
