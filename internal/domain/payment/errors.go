package payment

import "errors"

var (
	ErrNotFound             = errors.New("payment not found")
	ErrDuplicateAppointment = errors.New("appointment already has a payment")
	ErrNotCaptured          = errors.New("payment is not captured")
	ErrAlreadyRefunded      = errors.New("payment already refunded")
	ErrGateway              = errors.New("payment gateway error")
	ErrInternal             = errors.New("internal payment error")
)
