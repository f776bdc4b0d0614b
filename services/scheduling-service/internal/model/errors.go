package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRange      = errors.New("invalid date range")
	ErrOutsideSchedule   = errors.New("outside clinic schedule")
	ErrSlotTaken         = errors.New("slot already booked")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyProcessed  = errors.New("already processed")
	ErrTokenInvalid      = errors.New("invalid or expired token")
	ErrInvalidInput      = errors.New("invalid input")
)

// ErrorCode is the stable machine-readable kind returned in API error bodies.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrOutsideSchedule):
		return "outside_schedule"
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
