package earnings

import "errors"

var (
	ErrNotFound             = errors.New("upcoming earning not found")
	ErrInvalidAmount        = errors.New("invalid earning amount: must be greater than 0")
	ErrDuplicateAppointment = errors.New("appointment already has an upcoming earning")
	ErrAlreadyCancelled     = errors.New("upcoming earning already cancelled")
	ErrAlreadyCredited      = errors.New("upcoming earning already credited")
	ErrInternal             = errors.New("internal earnings error")
)
