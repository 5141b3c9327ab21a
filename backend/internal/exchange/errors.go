package exchange

import "errors"

// Every precondition failure is synchronous and scoped to the operation
// that raised it; nothing here is fatal to the engine as a whole.
var (
	ErrInvalidPair          = errors.New("exchange: unknown or inactive trading pair")
	ErrInvalidOrder         = errors.New("exchange: unknown order")
	ErrNotOwner             = errors.New("exchange: caller does not own this order")
	ErrOrderNotActive       = errors.New("exchange: order is not active")
	ErrInsufficientBalance  = errors.New("exchange: insufficient balance")
	ErrInvalidProof         = errors.New("exchange: invalid value proof")
	ErrInvalidConfiguration = errors.New("exchange: invalid configuration")
)
