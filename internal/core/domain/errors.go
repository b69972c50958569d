package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before dispatch.
	ErrValidation = errors.New("validation failed")
	// ErrEncoding indicates a Name or Identifier could not be converted without data loss.
	ErrEncoding = errors.New("identifier encoding failed")
	// ErrAuthorizationDeclined indicates the connected account refused to sign.
	ErrAuthorizationDeclined = errors.New("user rejected transaction")
	// ErrLedgerCall covers any other read or write failure at the ledger boundary.
	ErrLedgerCall = errors.New("ledger call failed")
	// ErrEventListenerInit indicates a notification stream could not be subscribed.
	ErrEventListenerInit = errors.New("event listener init failed")
	// ErrRequesterUnregistered indicates the connected account has no registered DID.
	ErrRequesterUnregistered = errors.New("requester is not registered")
	// ErrNotConnected indicates no account is connected.
	ErrNotConnected = errors.New("no connected account")
)

// ValidationError describes a rejected form field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
