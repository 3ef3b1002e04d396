package withdrawal

import "errors"

var (
	ErrNotFound             = errors.New("withdrawal not found")
	ErrBelowMinimum         = errors.New("amount below minimum withdrawal")
	ErrCreditNotClaimable   = errors.New("credit is not claimable")
	ErrCreditAlreadyClaimed = errors.New("credit already claimed by another withdrawal")
	ErrStateConflict        = errors.New("withdrawal is not in the required state")
	ErrWrongHospital        = errors.New("withdrawal belongs to another hospital")
	ErrInvalidOrExpiredOTP  = errors.New("invalid or expired one-time code")
	ErrInternal             = errors.New("internal withdrawal error")
)
