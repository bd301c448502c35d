package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

func TestStaffAccessService_ValidityWindow(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	start := f.event.StartsAt

	view, err := h.staff.Issue(h.ctx, h.owner, f.event.ID, "Door A")
	require.NoError(t, err)
	assert.Len(t, view.Code, domain.StaffCodeLength)
	assert.False(t, view.IsCurrentlyValid)
	assert.Equal(t, start.Add(-2*time.Hour), view.Window.From)
	assert.Equal(t, start.Add(24*time.Hour), view.Window.Until)

	tests := []struct {
		name       string
		at         time.Time
		wantReason domain.CredentialReason
		wantMsg    string
	}{
		{name: "three hours before", at: start.Add(-3 * time.Hour), wantReason: domain.CredentialNotYet, wantMsg: "opens in 1h"},
		{name: "one hour before", at: start.Add(-time.Hour)},
		{name: "window start", at: start.Add(-2 * time.Hour)},
		{name: "during the event", at: start.Add(5 * time.Hour)},
		{name: "twenty five hours after", at: start.Add(25 * time.Hour), wantReason: domain.CredentialExpired, wantMsg: "expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.now = tt.at
			cred, err := h.staff.Validate(h.ctx, " "+view.Code+" ")
			if tt.wantReason == "" {
				require.NoError(t, err)
				assert.Equal(t, f.event.ID, cred.EventID)
				assert.Equal(t, "Door A", cred.StaffName)
				return
			}
			var credErr *domain.CredentialError
			require.ErrorAs(t, err, &credErr)
			assert.Equal(t, tt.wantReason, credErr.Reason)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	code, err := h.store.Repositories().StaffCodes.GetByID(h.ctx, view.ID)
	require.NoError(t, err)
	require.NotNil(t, code.LastUsedAt)
	assert.Equal(t, start.Add(5*time.Hour), *code.LastUsedAt, "only successful validations are recorded")
}

func TestStaffAccessService_LowercaseInput(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	view, err := h.staff.Issue(h.ctx, h.owner, f.event.ID, "Door A")
	require.NoError(t, err)

	h.now = f.event.StartsAt
	_, err = h.staff.Validate(h.ctx, strings.ToLower(view.Code))
	assert.NoError(t, err)
}

func TestStaffAccessService_UnknownAndDeactivated(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	h.now = f.event.StartsAt

	_, err := h.staff.Validate(h.ctx, "ZZZZZZ")
	var credErr *domain.CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, domain.CredentialUnknown, credErr.Reason)

	view, err := h.staff.Issue(h.ctx, h.owner, f.event.ID, "Door A")
	require.NoError(t, err)
	require.NoError(t, h.staff.Deactivate(h.ctx, h.owner, view.ID))

	_, err = h.staff.Validate(h.ctx, view.Code)
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, domain.CredentialDeactivated, credErr.Reason)

	require.NoError(t, h.staff.Reactivate(h.ctx, h.owner, view.ID))
	_, err = h.staff.Validate(h.ctx, view.Code)
	assert.NoError(t, err)

	require.NoError(t, h.staff.Delete(h.ctx, h.owner, view.ID))
	_, err = h.staff.Validate(h.ctx, view.Code)
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, domain.CredentialUnknown, credErr.Reason)

	assert.ErrorIs(t, h.staff.Delete(h.ctx, h.owner, view.ID), domain.ErrStaffCodeNotFound)
}

func TestStaffAccessService_Sessions(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	view, err := h.staff.Issue(h.ctx, h.owner, f.event.ID, "Door A")
	require.NoError(t, err)

	h.now = f.event.StartsAt.Add(20 * time.Hour)
	session, err := h.staff.OpenSession(h.ctx, view.Code)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, f.event.StartsAt.Add(24*time.Hour), session.ExpiresAt, "sessions end with the window")

	cred, err := h.staff.ResolveSession(h.ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, view.ID, cred.AccessCodeID)

	require.NoError(t, h.staff.Deactivate(h.ctx, h.owner, view.ID))
	_, err = h.staff.ResolveSession(h.ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrCredential, "deactivation revokes open sessions")

	_, err = h.staff.ResolveSession(h.ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = h.staff.ResolveSession(h.ctx, "")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStaffAccessService_Authorization(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	stranger := h.buyer()

	_, err := h.staff.Issue(h.ctx, stranger, f.event.ID, "Door A")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.staff.Issue(h.ctx, h.owner, f.event.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	view, err := h.staff.Issue(h.ctx, h.admin, f.event.ID, "Door B")
	require.NoError(t, err)
	assert.ErrorIs(t, h.staff.Deactivate(h.ctx, stranger, view.ID), domain.ErrForbidden)

	views, err := h.staff.ListByEvent(h.ctx, h.owner, f.event.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Winter Gala", views[0].EventName)
}
