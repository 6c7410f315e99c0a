package errors

import (
	"errors"
	"fmt"
	"time"
)

// Common error types for the admin console
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionMissing     = errors.New("session missing")

	// Batch job errors
	ErrUnknownAction     = errors.New("unknown action")
	ErrActionInFlight    = errors.New("action already in progress")
	ErrCooldownBlocked   = errors.New("action on cooldown")
	ErrDispatchFailed    = errors.New("dispatch failed")
	ErrRegistryNotLoaded = errors.New("cooldown state not loaded")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidStatus   = errors.New("invalid account status")
	ErrCommitFailed    = errors.New("commit failed")

	// Payment errors
	ErrPaymentNotFound = errors.New("payment not found")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// CooldownError reports that an action was refused locally because its
// cooldown window has not yet elapsed. It never reaches the backend.
type CooldownError struct {
	Action    string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	h, m := SplitHoursMinutes(e.Remaining)
	return fmt.Sprintf("This action was executed recently. Please wait %dh %dm before running again.", h, m)
}

func (e *CooldownError) Unwrap() error { return ErrCooldownBlocked }

// DispatchError carries the backend or network error text for a failed job trigger, verbatim.
type DispatchError struct {
	Action  string
	Message string
}

func (e *DispatchError) Error() string {
	return e.Message
}

func (e *DispatchError) Unwrap() error { return ErrDispatchFailed }

// CommitError reports a rejected or unreachable account mutation.
type CommitError struct {
	AccountID string
	Field     string // status, trust, wallet, delete, due
	Message   string
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s commit for %s failed: %s", e.Field, e.AccountID, e.Message)
}

func (e *CommitError) Unwrap() error { return ErrCommitFailed }

// SplitHoursMinutes decomposes d into whole hours and whole minutes, truncating.
func SplitHoursMinutes(d time.Duration) (int, int) {
	if d <= 0 {
		return 0, 0
	}
	return int(d / time.Hour), int((d % time.Hour) / time.Minute)
}

// IsAuth reports whether err requires the operator to re-authenticate.
func IsAuth(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrSessionMissing)
}
