package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by services and handlers
var (
	ErrNotFound              = errors.New("not found")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrCredential            = errors.New("invalid staff credential")
	ErrPerBuyerLimitExceeded = errors.New("per-buyer ticket limit exceeded")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidInput          = errors.New("invalid input")

	// ErrDuplicateCode is returned by repositories when a unique code already exists
	ErrDuplicateCode = errors.New("duplicate code")
)

// Specific not-found errors, all matching ErrNotFound with errors.Is
var (
	ErrEventNotFound     = fmt.Errorf("event %w", ErrNotFound)
	ErrTableNotFound     = fmt.Errorf("table %w", ErrNotFound)
	ErrBusNotFound       = fmt.Errorf("bus %w", ErrNotFound)
	ErrOrderNotFound     = fmt.Errorf("order %w", ErrNotFound)
	ErrTicketNotFound    = fmt.Errorf("ticket %w", ErrNotFound)
	ErrStaffCodeNotFound = fmt.Errorf("staff access code %w", ErrNotFound)
	ErrSessionNotFound   = fmt.Errorf("staff session %w", ErrNotFound)
)

// CapacityError reports a refused reservation together with what is left
type CapacityError struct {
	Kind       ResourceKind
	ResourceID int64
	Requested  int
	SpotsLeft  int
	Capacity   int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s %d: requested %d, only %d left", e.Kind, e.ResourceID, e.Requested, e.SpotsLeft)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}

// TransitionError describes a refused state change in human-readable form
type TransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// CredentialReason distinguishes why a staff code was refused
type CredentialReason string

const (
	CredentialUnknown     CredentialReason = "invalid"
	CredentialDeactivated CredentialReason = "deactivated"
	CredentialNotYet      CredentialReason = "not_yet_active"
	CredentialExpired     CredentialReason = "expired"
)

// CredentialError is returned when a staff access code cannot be used
type CredentialError struct {
	Reason       CredentialReason
	OpensInHours int
}

func (e *CredentialError) Error() string {
	switch e.Reason {
	case CredentialDeactivated:
		return "staff code has been deactivated"
	case CredentialNotYet:
		return fmt.Sprintf("staff code is not yet active, opens in %dh", e.OpensInHours)
	case CredentialExpired:
		return "staff code has expired, event ended"
	default:
		return "invalid staff code"
	}
}

func (e *CredentialError) Unwrap() error {
	return ErrCredential
}

// LimitError is returned when a buyer would exceed the per-event ticket cap
type LimitError struct {
	Existing  int
	Requested int
	Max       int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("buyer already holds %d tickets for this event, requesting %d exceeds the limit of %d",
		e.Existing, e.Requested, e.Max)
}

func (e *LimitError) Unwrap() error {
	return ErrPerBuyerLimitExceeded
}
