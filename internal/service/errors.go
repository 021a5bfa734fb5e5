package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the listing changed underneath the caller (lost a claim race, already claimed,
	// already removed). The caller may re-fetch and retry by hand.
	ErrConflict = errors.New("conflict")
	// ErrTransaction wraps storage failures in multi-step operations; nothing was applied.
	ErrTransaction  = errors.New("transaction failed")
	ErrInvalidInput = errors.New("invalid input")
)

type GuardCode string

const (
	GuardUnauthenticated GuardCode = "unauthenticated"
	GuardSelfClaim       GuardCode = "self_claim"
	GuardNotOwner        GuardCode = "not_owner"
	GuardNotClaimer      GuardCode = "not_claimer"
	GuardNotParticipant  GuardCode = "not_participant"
	GuardInvalidState    GuardCode = "invalid_state"
	GuardAlreadyReported GuardCode = "already_reported"
	GuardReportedMissing GuardCode = "reported_missing"
	GuardOwnerCannotRate GuardCode = "owner_review"
)

// GuardError is a rejected transition: wrong actor or wrong state.
type GuardError struct {
	Code   GuardCode
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// ActorRelated reports whether the guard failed because of who asked rather than the listing state.
func (e *GuardError) ActorRelated() bool {
	switch e.Code {
	case GuardSelfClaim, GuardNotOwner, GuardNotClaimer, GuardNotParticipant, GuardReportedMissing:
		return true
	}
	return false
}

func guard(code GuardCode, reason string) error {
	return &GuardError{Code: code, Reason: reason}
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsGuard reports whether err is a GuardError with the given code.
func IsGuard(err error, code GuardCode) bool {
	var ge *GuardError
	return errors.As(err, &ge) && ge.Code == code
}
