package accounts

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
)

// Status is an account's state as encoded on the wire.
type Status string

const (
	StatusActive  Status = "ok"
	StatusPaused  Status = "pause"
	StatusBlocked Status = "block"
)

// ParseStatus accepts the wire values and their long names. Empty means Active.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ok", "active":
		return StatusActive, nil
	case "pause", "paused":
		return StatusPaused, nil
	case "block", "blocked":
		return StatusBlocked, nil
	}
	return "", errors.Wrapf(adminerrors.ErrInvalidStatus, "%q", s)
}

// NormalizeStatus is ParseStatus for data read from the backend: unknown
// values are kept verbatim rather than rejected.
func NormalizeStatus(s string) Status {
	if st, err := ParseStatus(s); err == nil {
		return st
	}
	return Status(strings.ToLower(strings.TrimSpace(s)))
}

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusPaused || s == StatusBlocked
}

func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusPaused:
		return "Paused"
	case StatusBlocked:
		return "Blocked"
	}
	return string(s)
}

// StatusChange is what a status commit sends: the status plus its derived timestamps.
type StatusChange struct {
	Status     Status
	PauseStart *time.Time
	BlockDate  *time.Time
}

// Transition derives the timestamp fields for moving to status at now.
// Every state may move to every other; only the timestamps differ.
func Transition(status Status, now time.Time) StatusChange {
	switch status {
	case StatusPaused:
		return StatusChange{Status: status, PauseStart: &now}
	case StatusBlocked:
		return StatusChange{Status: status, BlockDate: &now}
	default:
		return StatusChange{Status: StatusActive}
	}
}
