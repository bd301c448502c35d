package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

type memData struct {
	seq     map[string]int64
	events  map[int64]domain.Event
	tables  map[int64]domain.Table
	buses   map[int64]domain.Bus
	orders  map[int64]domain.Order
	tickets map[int64]domain.Ticket
	codes   map[int64]domain.StaffAccessCode
	actions []domain.StaffAction
	history []domain.StatusTransition
}

func newMemData() *memData {
	return &memData{
		seq:     make(map[string]int64),
		events:  make(map[int64]domain.Event),
		tables:  make(map[int64]domain.Table),
		buses:   make(map[int64]domain.Bus),
		orders:  make(map[int64]domain.Order),
		tickets: make(map[int64]domain.Ticket),
		codes:   make(map[int64]domain.StaffAccessCode),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.seq {
		c.seq[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.tables {
		c.tables[k] = v
	}
	for k, v := range d.buses {
		c.buses[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.tickets {
		c.tickets[k] = v
	}
	for k, v := range d.codes {
		c.codes[k] = v
	}
	c.actions = append([]domain.StaffAction(nil), d.actions...)
	c.history = append([]domain.StatusTransition(nil), d.history...)
	return c
}

func (d *memData) next(name string) int64 {
	d.seq[name]++
	return d.seq[name]
}

func (d *memData) countTickets(match func(t *domain.Ticket) bool) int {
	n := 0
	for _, t := range d.tickets {
		if match(&t) {
			n++
		}
	}
	return n
}

// MemoryStore implements Store in memory. Transactions are serialized and
// roll back by restoring a snapshot taken when they start.
type MemoryStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	data  *memData
	repos *Repositories
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{data: newMemData()}
	s.repos = &Repositories{
		Events:       &memEventRepo{s},
		Tables:       &memTableRepo{s},
		Buses:        &memBusRepo{s},
		Orders:       &memOrderRepo{s},
		Tickets:      &memTicketRepo{s},
		StaffCodes:   &memStaffCodeRepo{s},
		StaffActions: &memStaffActionRepo{s},
	}
	return s
}

// Repositories returns the in-memory repositories
func (s *MemoryStore) Repositories() *Repositories {
	return s.repos
}

// WithTx runs fn and restores the previous state if it fails
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(ctx, s.repos); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// StatusHistory returns the recorded order transitions
func (s *MemoryStore) StatusHistory() []domain.StatusTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StatusTransition(nil), s.data.history...)
}

func (s *MemoryStore) view(fn func(d *memData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

type memEventRepo struct{ s *MemoryStore }

func (r *memEventRepo) Create(_ context.Context, e *domain.Event) error {
	r.s.view(func(d *memData) {
		e.ID = d.next("events")
		d.events[e.ID] = *e
	})
	return nil
}

func (r *memEventRepo) GetByID(_ context.Context, id int64) (*domain.Event, error) {
	var out *domain.Event
	r.s.view(func(d *memData) {
		if e, ok := d.events[id]; ok {
			out = &e
		}
	})
	return out, nil
}

func (r *memEventRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Event, error) {
	return r.GetByID(ctx, id)
}

func (r *memEventRepo) ListAvailable(_ context.Context, now time.Time, page, limit int) ([]*domain.Event, int, error) {
	var all []*domain.Event
	r.s.view(func(d *memData) {
		for _, e := range d.events {
			if e.Status == domain.EventStatusApproved && e.StartsAt.After(now) && e.AvailableTickets > 0 {
				e := e
				all = append(all, &e)
			}
		}
	})
	sort.Slice(all, func(i, j int) bool { return all[i].StartsAt.Before(all[j].StartsAt) })

	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *memEventRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.Event, error) {
	var out []*domain.Event
	r.s.view(func(d *memData) {
		for _, e := range d.events {
			if e.OwnerID == ownerID {
				e := e
				out = append(out, &e)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}

func (r *memEventRepo) UpdateStatus(_ context.Context, id int64, from, to domain.EventStatus) (bool, error) {
	ok := false
	r.s.view(func(d *memData) {
		e, exists := d.events[id]
		if exists && e.Status == from {
			e.Status = to
			e.UpdatedAt = time.Now()
			d.events[id] = e
			ok = true
		}
	})
	return ok, nil
}

func (r *memEventRepo) UpdateImage(_ context.Context, id int64, url string) error {
	var err error
	r.s.view(func(d *memData) {
		e, exists := d.events[id]
		if !exists {
			err = domain.ErrEventNotFound
			return
		}
		e.ImageURL = url
		d.events[id] = e
	})
	return err
}

func (r *memEventRepo) DecrementAvailable(_ context.Context, id int64, n int) (int, bool, error) {
	var (
		remaining int
		ok        bool
		err       error
	)
	r.s.view(func(d *memData) {
		e, exists := d.events[id]
		if !exists {
			err = domain.ErrEventNotFound
			return
		}
		if e.AvailableTickets < n {
			remaining = e.AvailableTickets
			return
		}
		e.AvailableTickets -= n
		d.events[id] = e
		remaining, ok = e.AvailableTickets, true
	})
	return remaining, ok, err
}

func (r *memEventRepo) IncrementAvailable(_ context.Context, id int64, n int) (int, error) {
	var (
		available int
		err       error
	)
	r.s.view(func(d *memData) {
		e, exists := d.events[id]
		if !exists {
			err = domain.ErrEventNotFound
			return
		}
		e.AvailableTickets += n
		if e.AvailableTickets > e.TicketsNumber {
			e.AvailableTickets = e.TicketsNumber
		}
		d.events[id] = e
		available = e.AvailableTickets
	})
	return available, err
}

type memTableRepo struct{ s *MemoryStore }

func (r *memTableRepo) Create(_ context.Context, t *domain.Table) error {
	r.s.view(func(d *memData) {
		t.ID = d.next("tables")
		d.tables[t.ID] = *t
	})
	return nil
}

func (r *memTableRepo) GetByID(_ context.Context, id int64) (*domain.Table, error) {
	var out *domain.Table
	r.s.view(func(d *memData) {
		if t, ok := d.tables[id]; ok {
			out = &t
		}
	})
	return out, nil
}

func (r *memTableRepo) ListByEvent(_ context.Context, eventID int64) ([]domain.TableAvailability, error) {
	var out []domain.TableAvailability
	r.s.view(func(d *memData) {
		for _, t := range d.tables {
			if t.EventID != eventID {
				continue
			}
			id := t.ID
			occupied := d.countTickets(func(tk *domain.Ticket) bool {
				return tk.TableID == id && tk.Status.HoldsCapacity()
			})
			out = append(out, domain.TableAvailability{
				Table:     t,
				Occupied:  occupied,
				Available: domain.NewAvailability(t.Capacity, occupied, 0).SpotsLeft,
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTableRepo) CountOccupied(_ context.Context, tableID int64) (int, error) {
	n := 0
	r.s.view(func(d *memData) {
		n = d.countTickets(func(tk *domain.Ticket) bool {
			return tk.TableID == tableID && tk.Status.HoldsCapacity()
		})
	})
	return n, nil
}

type memBusRepo struct{ s *MemoryStore }

func ridesBus(tk *domain.Ticket, busID int64, direction domain.BusDirection) bool {
	ref := tk.BusGoID
	if direction == domain.BusReturn {
		ref = tk.BusComeID
	}
	return ref != nil && *ref == busID
}

func (r *memBusRepo) Create(_ context.Context, b *domain.Bus) error {
	r.s.view(func(d *memData) {
		b.ID = d.next("buses")
		d.buses[b.ID] = *b
	})
	return nil
}

func (r *memBusRepo) GetByID(_ context.Context, id int64) (*domain.Bus, error) {
	var out *domain.Bus
	r.s.view(func(d *memData) {
		if b, ok := d.buses[id]; ok {
			out = &b
		}
	})
	return out, nil
}

func (r *memBusRepo) ListByEvent(_ context.Context, eventID int64) ([]domain.BusAvailability, error) {
	var out []domain.BusAvailability
	r.s.view(func(d *memData) {
		for _, b := range d.buses {
			if b.EventID != eventID {
				continue
			}
			bus := b
			occupied := d.countTickets(func(tk *domain.Ticket) bool {
				return tk.Status.HoldsCapacity() && ridesBus(tk, bus.ID, bus.Direction)
			})
			out = append(out, domain.BusAvailability{
				Bus:       b,
				Occupied:  occupied,
				Available: domain.NewAvailability(b.Capacity, occupied, 0).SpotsLeft,
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memBusRepo) CountOccupied(_ context.Context, busID int64, direction domain.BusDirection) (int, error) {
	n := 0
	r.s.view(func(d *memData) {
		n = d.countTickets(func(tk *domain.Ticket) bool {
			return tk.Status.HoldsCapacity() && ridesBus(tk, busID, direction)
		})
	})
	return n, nil
}

type memOrderRepo struct{ s *MemoryStore }

func (r *memOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.s.view(func(d *memData) {
		o.ID = d.next("orders")
		stored := *o
		stored.Tickets = nil
		d.orders[o.ID] = stored
	})
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	var out *domain.Order
	r.s.view(func(d *memData) {
		if o, ok := d.orders[id]; ok {
			out = &o
		}
	})
	return out, nil
}

func (r *memOrderRepo) filter(match func(d *memData, o *domain.Order) bool) []*domain.Order {
	var out []*domain.Order
	r.s.view(func(d *memData) {
		for _, o := range d.orders {
			o := o
			if match(d, &o) {
				out = append(out, &o)
			}
		}
	})
	return out
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	out := r.filter(func(_ *memData, o *domain.Order) bool { return o.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memOrderRepo) ListPendingWithProof(_ context.Context, ownerID uuid.UUID) ([]*domain.Order, error) {
	out := r.filter(func(d *memData, o *domain.Order) bool {
		e, ok := d.events[o.EventID]
		return ok && e.OwnerID == ownerID && o.Status == domain.OrderStatusPending && o.HasPaymentProof()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memOrderRepo) ListExpirable(_ context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	out := r.filter(func(_ *memData, o *domain.Order) bool {
		return o.Status == domain.OrderStatusPending && !o.HasPaymentProof() && !o.CreatedAt.After(cutoff)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id int64, from, to domain.OrderStatus, at time.Time) (bool, error) {
	ok := false
	r.s.view(func(d *memData) {
		o, exists := d.orders[id]
		if exists && o.Status == from {
			o.Status = to
			o.UpdatedAt = at
			d.orders[id] = o
			ok = true
		}
	})
	return ok, nil
}

func (r *memOrderRepo) SetPaymentProof(_ context.Context, id int64, url string, at time.Time) (bool, error) {
	ok := false
	r.s.view(func(d *memData) {
		o, exists := d.orders[id]
		if exists && o.Status == domain.OrderStatusPending {
			o.PaymentProofURL = url
			o.PaymentSubmittedAt = &at
			o.UpdatedAt = at
			d.orders[id] = o
			ok = true
		}
	})
	return ok, nil
}

func (r *memOrderRepo) MarkTicketsSent(_ context.Context, id int64, by uuid.UUID, at time.Time) (bool, error) {
	ok := false
	r.s.view(func(d *memData) {
		o, exists := d.orders[id]
		if exists && o.Status == domain.OrderStatusConfirmed {
			o.TicketsSent = true
			o.TicketsSentAt = &at
			o.TicketsSentBy = &by
			o.UpdatedAt = at
			d.orders[id] = o
			ok = true
		}
	})
	return ok, nil
}

func (r *memOrderRepo) RecordTransition(_ context.Context, tr *domain.StatusTransition) error {
	r.s.view(func(d *memData) {
		d.history = append(d.history, *tr)
	})
	return nil
}

type memTicketRepo struct{ s *MemoryStore }

func (r *memTicketRepo) CreateBatch(_ context.Context, tickets []*domain.Ticket) error {
	r.s.view(func(d *memData) {
		for _, t := range tickets {
			t.ID = d.next("tickets")
			d.tickets[t.ID] = *t
		}
	})
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	r.s.view(func(d *memData) {
		if t, ok := d.tickets[id]; ok {
			out = &t
		}
	})
	return out, nil
}

func (r *memTicketRepo) findByCode(d *memData, code string) (domain.Ticket, bool) {
	for _, t := range d.tickets {
		if t.ValidationCode != nil && *t.ValidationCode == code {
			return t, true
		}
	}
	return domain.Ticket{}, false
}

func (r *memTicketRepo) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
	var out *domain.Ticket
	r.s.view(func(d *memData) {
		if t, ok := r.findByCode(d, code); ok {
			out = &t
		}
	})
	return out, nil
}

func (r *memTicketRepo) filter(match func(t *domain.Ticket) bool) []*domain.Ticket {
	var out []*domain.Ticket
	r.s.view(func(d *memData) {
		for _, t := range d.tickets {
			t := t
			if match(&t) {
				out = append(out, &t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memTicketRepo) ListByOrder(_ context.Context, orderID int64) ([]*domain.Ticket, error) {
	return r.filter(func(t *domain.Ticket) bool { return t.OrderID == orderID }), nil
}

func (r *memTicketRepo) ListConfirmedByEvent(_ context.Context, eventID int64) ([]*domain.Ticket, error) {
	return r.filter(func(t *domain.Ticket) bool {
		return t.EventID == eventID && t.Status == domain.OrderStatusConfirmed
	}), nil
}

func (r *memTicketRepo) CountActiveByBuyer(_ context.Context, userID uuid.UUID, eventID int64) (int, error) {
	n := 0
	r.s.view(func(d *memData) {
		n = d.countTickets(func(t *domain.Ticket) bool {
			return t.UserID == userID && t.EventID == eventID && t.Status.HoldsCapacity()
		})
	})
	return n, nil
}

func (r *memTicketRepo) CountByStatus(_ context.Context, eventID int64) (*domain.SalesStats, error) {
	s := &domain.SalesStats{}
	r.s.view(func(d *memData) {
		for _, t := range d.tickets {
			if t.EventID != eventID {
				continue
			}
			s.Total++
			switch t.Status {
			case domain.OrderStatusPending:
				s.Pending++
			case domain.OrderStatusConfirmed:
				s.Confirmed++
			case domain.OrderStatusCancelled:
				s.Cancelled++
			case domain.OrderStatusRejected:
				s.Rejected++
			case domain.OrderStatusExpired:
				s.Expired++
			}
		}
	})
	return s, nil
}

func (r *memTicketRepo) UpdateStatusByOrder(_ context.Context, orderID int64, status domain.OrderStatus) (int, error) {
	n := 0
	r.s.view(func(d *memData) {
		for id, t := range d.tickets {
			if t.OrderID == orderID && t.Status != status {
				t.Status = status
				d.tickets[id] = t
				n++
			}
		}
	})
	return n, nil
}

func (r *memTicketRepo) AssignValidationCode(_ context.Context, ticketID int64, code string) (bool, error) {
	var (
		ok  bool
		err error
	)
	r.s.view(func(d *memData) {
		if _, taken := r.findByCode(d, code); taken {
			err = domain.ErrDuplicateCode
			return
		}
		t, exists := d.tickets[ticketID]
		if !exists || t.ValidationCode != nil {
			return
		}
		c := code
		t.ValidationCode = &c
		d.tickets[ticketID] = t
		ok = true
	})
	return ok, err
}

func (r *memTicketRepo) ClaimEmail(_ context.Context, ticketID int64, at time.Time) (bool, error) {
	ok := false
	r.s.view(func(d *memData) {
		t, exists := d.tickets[ticketID]
		if !exists || t.EmailedAt != nil || !t.HasCode() {
			return
		}
		t.EmailedAt = &at
		d.tickets[ticketID] = t
		ok = true
	})
	return ok, nil
}

func (r *memTicketRepo) ReleaseEmail(_ context.Context, ticketID int64, at time.Time) error {
	r.s.view(func(d *memData) {
		t, exists := d.tickets[ticketID]
		if exists && t.EmailedAt != nil && t.EmailedAt.Equal(at) {
			t.EmailedAt = nil
			d.tickets[ticketID] = t
		}
	})
	return nil
}

func (r *memTicketRepo) MarkSent(_ context.Context, orderID int64, at time.Time) (int, error) {
	n := 0
	r.s.view(func(d *memData) {
		for id, t := range d.tickets {
			if t.OrderID == orderID && t.Status == domain.OrderStatusConfirmed {
				t.AvailableForDownload = true
				t.SentAt = &at
				d.tickets[id] = t
				n++
			}
		}
	})
	return n, nil
}

func (r *memTicketRepo) MarkCheckedIn(_ context.Context, code string, eventID int64, at time.Time) (*domain.Ticket, error) {
	var out *domain.Ticket
	r.s.view(func(d *memData) {
		t, ok := r.findByCode(d, code)
		if !ok || t.EventID != eventID || t.Status != domain.OrderStatusConfirmed || t.CheckedInAt != nil {
			return
		}
		t.CheckedInAt = &at
		d.tickets[t.ID] = t
		out = &t
	})
	return out, nil
}

func (r *memTicketRepo) MarkCheckedOut(_ context.Context, code string, eventID int64, at time.Time) (*domain.Ticket, error) {
	var out *domain.Ticket
	r.s.view(func(d *memData) {
		t, ok := r.findByCode(d, code)
		if !ok || t.EventID != eventID || t.CheckedInAt == nil || t.CheckedOutAt != nil {
			return
		}
		t.CheckedOutAt = &at
		d.tickets[t.ID] = t
		out = &t
	})
	return out, nil
}

type memStaffCodeRepo struct{ s *MemoryStore }

func (r *memStaffCodeRepo) Create(_ context.Context, c *domain.StaffAccessCode) error {
	var err error
	r.s.view(func(d *memData) {
		for _, existing := range d.codes {
			if existing.Code == c.Code {
				err = domain.ErrDuplicateCode
				return
			}
		}
		c.ID = d.next("staff_access_codes")
		d.codes[c.ID] = *c
	})
	return err
}

func (r *memStaffCodeRepo) GetByID(_ context.Context, id int64) (*domain.StaffAccessCode, error) {
	var out *domain.StaffAccessCode
	r.s.view(func(d *memData) {
		if c, ok := d.codes[id]; ok {
			out = &c
		}
	})
	return out, nil
}

func (r *memStaffCodeRepo) GetByCode(_ context.Context, code string) (*domain.StaffAccessCode, error) {
	var out *domain.StaffAccessCode
	r.s.view(func(d *memData) {
		for _, c := range d.codes {
			if c.Code == code {
				c := c
				out = &c
				return
			}
		}
	})
	return out, nil
}

func (r *memStaffCodeRepo) ListByEvent(_ context.Context, eventID int64) ([]*domain.StaffAccessCode, error) {
	var out []*domain.StaffAccessCode
	r.s.view(func(d *memData) {
		for _, c := range d.codes {
			if c.EventID == eventID {
				c := c
				out = append(out, &c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memStaffCodeRepo) SetActive(_ context.Context, id int64, active bool) (bool, error) {
	ok := false
	r.s.view(func(d *memData) {
		if c, exists := d.codes[id]; exists {
			c.IsActive = active
			d.codes[id] = c
			ok = true
		}
	})
	return ok, nil
}

func (r *memStaffCodeRepo) TouchLastUsed(_ context.Context, id int64, at time.Time) error {
	r.s.view(func(d *memData) {
		if c, exists := d.codes[id]; exists {
			c.LastUsedAt = &at
			d.codes[id] = c
		}
	})
	return nil
}

func (r *memStaffCodeRepo) Delete(_ context.Context, id int64) (bool, error) {
	ok := false
	r.s.view(func(d *memData) {
		if _, exists := d.codes[id]; exists {
			delete(d.codes, id)
			ok = true
		}
	})
	return ok, nil
}

type memStaffActionRepo struct{ s *MemoryStore }

func (r *memStaffActionRepo) Create(_ context.Context, a *domain.StaffAction) error {
	r.s.view(func(d *memData) {
		a.ID = d.next("staff_actions")
		d.actions = append(d.actions, *a)
	})
	return nil
}

func (r *memStaffActionRepo) ListByEvent(_ context.Context, eventID int64, limit int) ([]*domain.StaffAction, error) {
	var out []*domain.StaffAction
	r.s.view(func(d *memData) {
		for i := len(d.actions) - 1; i >= 0 && len(out) < limit; i-- {
			if d.actions[i].EventID == eventID {
				a := d.actions[i]
				out = append(out, &a)
			}
		}
	})
	return out, nil
}

var (
	_ Store                 = (*MemoryStore)(nil)
	_ EventRepository       = (*memEventRepo)(nil)
	_ TableRepository       = (*memTableRepo)(nil)
	_ BusRepository         = (*memBusRepo)(nil)
	_ OrderRepository       = (*memOrderRepo)(nil)
	_ TicketRepository      = (*memTicketRepo)(nil)
	_ StaffCodeRepository   = (*memStaffCodeRepo)(nil)
	_ StaffActionRepository = (*memStaffActionRepo)(nil)
)
