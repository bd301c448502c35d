package domain

import (
	"math"
	"strings"
	"time"
)

const (
	// StaffCodeAlphabet omits O, 0, I and 1 to avoid misreading
	StaffCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// StaffCodeLength is the number of characters in a staff code
	StaffCodeLength = 6
	// StaffCodeMaxAttempts bounds retries on code collision
	StaffCodeMaxAttempts = 10

	// DefaultStaffWindowBefore opens staff codes this long before the event
	DefaultStaffWindowBefore = 2 * time.Hour
	// DefaultStaffWindowAfter closes staff codes this long after the event start
	DefaultStaffWindowAfter = 24 * time.Hour
)

// StaffAccessCode grants scanning rights for one event during a time window
type StaffAccessCode struct {
	ID         int64      `json:"id"`
	EventID    int64      `json:"event_id"`
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// NewStaffCode generates a random staff code
func NewStaffCode() (string, error) {
	return RandomString(StaffCodeAlphabet, StaffCodeLength)
}

// NormalizeStaffCode upper-cases and trims user input
func NormalizeStaffCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidityWindow is the period during which staff codes of an event are usable
type ValidityWindow struct {
	From  time.Time `json:"valid_from"`
	Until time.Time `json:"valid_until"`
}

// NewValidityWindow derives the window from the event start
func NewValidityWindow(eventStart time.Time, before, after time.Duration) ValidityWindow {
	return ValidityWindow{
		From:  eventStart.Add(-before),
		Until: eventStart.Add(after),
	}
}

// Contains returns true if now falls inside the window (inclusive)
func (w ValidityWindow) Contains(now time.Time) bool {
	return !now.Before(w.From) && !now.After(w.Until)
}

// Check returns a CredentialError when now is outside the window
func (w ValidityWindow) Check(now time.Time) error {
	if now.Before(w.From) {
		hours := int(math.Ceil(w.From.Sub(now).Hours()))
		return &CredentialError{Reason: CredentialNotYet, OpensInHours: hours}
	}
	if now.After(w.Until) {
		return &CredentialError{Reason: CredentialExpired}
	}
	return nil
}

// StaffCodeView is a staff code with its computed validity
type StaffCodeView struct {
	StaffAccessCode
	EventName        string         `json:"event_name"`
	EventStartsAt    time.Time      `json:"event_starts_at"`
	Window           ValidityWindow `json:"window"`
	IsCurrentlyValid bool           `json:"is_currently_valid"`
}

// StaffCredential is the authority handed to the check-in engine after validation
type StaffCredential struct {
	AccessCodeID int64     `json:"access_code_id"`
	EventID      int64     `json:"event_id"`
	Code         string    `json:"code"`
	StaffName    string    `json:"staff_name"`
	EventName    string    `json:"event_name"`
	ValidUntil   time.Time `json:"valid_until"`
}

// StaffSession binds an opaque token to a validated credential
type StaffSession struct {
	Token      string          `json:"token"`
	Credential StaffCredential `json:"credential"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StaffAction is an audit record of a door scan
type StaffAction struct {
	ID           int64         `json:"id"`
	AccessCodeID int64         `json:"access_code_id"`
	TicketID     int64         `json:"ticket_id"`
	EventID      int64         `json:"event_id"`
	Action       ScanDirection `json:"action"`
	StaffName    string        `json:"staff_name"`
	TicketEmail  string        `json:"ticket_email"`
	CreatedAt    time.Time     `json:"created_at"`
}
