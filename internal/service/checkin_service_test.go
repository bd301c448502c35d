package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
)

func credentialFor(f *fixture) domain.StaffCredential {
	return domain.StaffCredential{AccessCodeID: 1, EventID: f.event.ID, Code: "ABC234", StaffName: "Door A"}
}

func TestCheckinService_ScanSequence(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	ticket := h.confirmedWithCodes(f, 1)[0]
	code := *ticket.ValidationCode
	cred := credentialFor(f)

	steps := []struct {
		direction domain.ScanDirection
		message   string
		refused   string
	}{
		{direction: domain.ScanCheckOut, refused: "ticket hasn't checked in"},
		{direction: domain.ScanCheckIn, message: "Check-in successful"},
		{direction: domain.ScanCheckIn, refused: "ticket already checked in"},
		{direction: domain.ScanCheckOut, message: "Check-out successful"},
		{direction: domain.ScanCheckOut, refused: "ticket already checked out"},
	}

	for i, step := range steps {
		result, err := h.checkin.Scan(h.ctx, code, cred, step.direction)
		if step.refused != "" {
			require.Error(t, err, "step %d", i)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			assert.Equal(t, step.refused, err.Error(), "step %d", i)
			continue
		}
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.message, result.Message)
		assert.Equal(t, "Mesa 1", result.TableName)
		assert.Equal(t, "guest1@example.com", result.Email)
	}

	actions, err := h.checkin.ListActions(h.ctx, h.owner, f.event.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2, "only applied scans are logged")

	checkedIn := h.publisher.ByTopic(dto.TopicTicketCheckedIn)
	require.Len(t, checkedIn, 1)
	assert.Equal(t, string(domain.ScanCheckIn), checkedIn[0].Msg.(*dto.TicketScannedEvent).Direction)
	checkedOut := h.publisher.ByTopic(dto.TopicTicketCheckedOut)
	require.Len(t, checkedOut, 1)
	assert.Equal(t, string(domain.ScanCheckOut), checkedOut[0].Msg.(*dto.TicketScannedEvent).Direction)

	stats, err := h.checkin.StaffStats(h.ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckStats{TotalTickets: 1, CheckedIn: 1, CheckedOut: 1}, *stats)
}

func TestCheckinService_ScanRefusals(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	other := h.seed(10, 10, 10)
	ticket := h.confirmedWithCodes(f, 1)[0]

	_, err := h.checkin.Scan(h.ctx, "TKT-999-NOPE1234", credentialFor(f), domain.ScanCheckIn)
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)

	_, err = h.checkin.Scan(h.ctx, *ticket.ValidationCode, credentialFor(other), domain.ScanCheckIn)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "another event")

	_, err = h.checkin.Scan(h.ctx, *ticket.ValidationCode, credentialFor(f), domain.ScanDirection("teleport"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckinService_ConcurrentCheckIn(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	ticket := h.confirmedWithCodes(f, 1)[0]

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.checkin.Scan(h.ctx, *ticket.ValidationCode, credentialFor(f), domain.ScanCheckIn); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestCheckinService_BusInfo(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)

	req := f.request(1)
	req.Tickets[0].BusGoID = &f.busGo.ID
	order, err := h.orders.CreateOrder(h.ctx, h.buyer(), req)
	require.NoError(t, err)
	_, err = h.orders.ConfirmOrder(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	coded, err := h.tickets.IssueCodes(h.ctx, order.ID)
	require.NoError(t, err)

	result, err := h.checkin.Scan(h.ctx, *coded[0].ValidationCode, credentialFor(f), domain.ScanBusInfo)
	require.NoError(t, err)
	assert.Equal(t, "Bus information", result.Message)
	require.NotNil(t, result.BusGo)
	assert.Equal(t, "Aliados", result.BusGo.Location)
	assert.Nil(t, result.BusCome)
	assert.Nil(t, result.CheckedInAt, "bus info does not check the ticket in")

	actions, err := h.checkin.ListActions(h.ctx, h.owner, f.event.ID)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCheckinService_Attendees(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	h.confirmedWithCodes(f, 2)
	h.order(f, 1)

	attendees, err := h.checkin.ListAttendees(h.ctx, h.owner, f.event.ID)
	require.NoError(t, err)
	assert.Len(t, attendees, 2, "pending tickets are not attendees")
	for _, a := range attendees {
		assert.Equal(t, "Mesa 1", a.TableName)
	}

	_, err = h.checkin.ListAttendees(h.ctx, h.buyer(), f.event.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	stats, err := h.checkin.Stats(h.ctx, h.admin, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalTickets)
	assert.Equal(t, 2, stats.Pending)
}
