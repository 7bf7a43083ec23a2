package budget

import "errors"

// Budget errors.
var (
	ErrBudgetExhausted = errors.New("daily budget exhausted")
	ErrInvalidAmount   = errors.New("invalid budget amount")
)
