package tokens

import "errors"

// Error taxonomy for the billing core. Callers branch on these with
// errors.Is; everything else is an internal failure.
var (
	// ErrNotFound signals an unknown user wallet or service name.
	ErrNotFound = errors.New("tokens: not found")

	// ErrValidation signals empty identifiers or non-positive amounts.
	ErrValidation = errors.New("tokens: invalid input")

	// ErrInsufficientTokens signals a debit larger than the current balance
	// for a user without an active subscription.
	ErrInsufficientTokens = errors.New("tokens: insufficient token balance")
)
