package notify

import (
	"context"
	"sync"
)

// MockMailer records e-mails instead of sending them
type MockMailer struct {
	mu   sync.Mutex
	sent []TicketEmail

	// FailFor makes sends to the given addresses fail with the mapped error
	FailFor map[string]error
}

// NewMockMailer creates a MockMailer
func NewMockMailer() *MockMailer {
	return &MockMailer{FailFor: make(map[string]error)}
}

// SendTicketEmail records the e-mail or fails if configured to
func (m *MockMailer) SendTicketEmail(_ context.Context, email TicketEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailFor[email.To]; ok {
		return err
	}
	m.sent = append(m.sent, email)
	return nil
}

// Sent returns the recorded e-mails
func (m *MockMailer) Sent() []TicketEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TicketEmail(nil), m.sent...)
}
