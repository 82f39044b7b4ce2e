// File: services/dispatch/errors.go
package dispatch

import "errors"

var (
	// ErrNoEligibleDriver means no active, unassigned driver could be
	// claimed. The caller decides whether to retry later.
	ErrNoEligibleDriver = errors.New("no eligible driver available")

	// ErrAlreadyAssigned means the booking already has a driver.
	ErrAlreadyAssigned = errors.New("booking already assigned")

	// ErrNotAssignable means the booking is not in a state that accepts an
	// assignment.
	ErrNotAssignable = errors.New("booking not assignable")

	// ErrNotAssignedDriver means a status update came from a driver other
	// than the one assigned to the booking.
	ErrNotAssignedDriver = errors.New("driver is not assigned to this booking")

	// ErrInvalidTransition means the requested status does not follow from
	// the booking's current status.
	ErrInvalidTransition = errors.New("invalid booking status transition")

	// ErrDriverNotFound means the driver id is not in the registry.
	ErrDriverNotFound = errors.New("driver not found")
)
