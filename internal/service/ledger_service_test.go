package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
)

// mapCache is an AvailabilityCache backed by a map
type mapCache struct {
	values map[int64]repository.CachedAvailability
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[int64]repository.CachedAvailability)}
}

func (c *mapCache) Get(_ context.Context, eventID int64) (*repository.CachedAvailability, error) {
	v, ok := c.values[eventID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *mapCache) Set(_ context.Context, eventID int64, available, capacity int) error {
	c.values[eventID] = repository.CachedAvailability{Available: available, Capacity: capacity}
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, eventID int64) error {
	delete(c.values, eventID)
	return nil
}

func TestLedgerService_CheckAvailability(t *testing.T) {
	h := newHarness(t)
	f := h.seed(5, 3, 2)
	h.order(f, 2)

	tests := []struct {
		name      string
		kind      domain.ResourceKind
		id        int64
		requested int
		want      domain.Availability
		wantErr   error
	}{
		{name: "event fits", kind: domain.ResourceEvent, id: f.event.ID, requested: 3, want: domain.Availability{Available: true, SpotsLeft: 3, Capacity: 5}},
		{name: "event full", kind: domain.ResourceEvent, id: f.event.ID, requested: 4, want: domain.Availability{Available: false, SpotsLeft: 3, Capacity: 5}},
		{name: "table", kind: domain.ResourceTable, id: f.table.ID, requested: 1, want: domain.Availability{Available: true, SpotsLeft: 1, Capacity: 3}},
		{name: "table defaults to one", kind: domain.ResourceTable, id: f.table.ID, requested: 0, want: domain.Availability{Available: true, SpotsLeft: 1, Capacity: 3}},
		{name: "bus ida", kind: domain.ResourceBusIda, id: f.busGo.ID, requested: 2, want: domain.Availability{Available: true, SpotsLeft: 2, Capacity: 2}},
		{name: "bus kind mismatch", kind: domain.ResourceBusIda, id: f.back.ID, requested: 1, wantErr: domain.ErrBusNotFound},
		{name: "unknown event", kind: domain.ResourceEvent, id: 999, requested: 1, wantErr: domain.ErrEventNotFound},
		{name: "unknown kind", kind: domain.ResourceKind("stage"), id: 1, requested: 1, wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.ledger.CheckAvailability(h.ctx, tt.kind, tt.id, tt.requested)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestLedgerService_CommitAndRelease(t *testing.T) {
	h := newHarness(t)
	f := h.seed(3, 10, 10)
	cache := newMapCache()
	ledger := NewLedgerService(h.store, cache, nil)

	remaining, err := ledger.CommitReservation(h.ctx, f.event.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, repository.CachedAvailability{Available: 1, Capacity: 3}, cache.values[f.event.ID])

	remaining, err = ledger.CommitReservation(h.ctx, f.event.ID, 2)
	var capErr *domain.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 1, capErr.SpotsLeft)
	assert.Equal(t, 1, remaining)

	available, err := ledger.ReleaseReservation(h.ctx, f.event.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, available, "release never exceeds capacity")

	_, err = ledger.CommitReservation(h.ctx, f.event.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedgerService_CacheHint(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	cache := newMapCache()
	ledger := NewLedgerService(h.store, cache, nil)

	got, err := ledger.CheckAvailability(h.ctx, domain.ResourceEvent, f.event.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, got.SpotsLeft)
	require.Contains(t, cache.values, f.event.ID)

	cache.values[f.event.ID] = repository.CachedAvailability{Available: 4, Capacity: 10}
	got, err = ledger.CheckAvailability(h.ctx, domain.ResourceEvent, f.event.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{Available: false, SpotsLeft: 4, Capacity: 10}, *got)
}
