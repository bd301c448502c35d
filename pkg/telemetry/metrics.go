package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOpts holds options for creating metrics
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
}

// Counter wraps an OTel counter for easier use
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a new counter metric
func NewCounter(opts MetricOpts) (*Counter, error) {
	counter, err := GetMeter().Int64Counter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

// Add increments the counter by the given value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Histogram wraps an OTel histogram for easier use
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a new histogram metric
func NewHistogram(opts MetricOpts, boundaries ...float64) (*Histogram, error) {
	options := []metric.Float64HistogramOption{
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	}
	if len(boundaries) > 0 {
		options = append(options, metric.WithExplicitBucketBoundaries(boundaries...))
	}

	histogram, err := GetMeter().Float64Histogram(opts.Name, options...)
	if err != nil {
		return nil, err
	}
	return &Histogram{histogram: histogram}, nil
}

// Record records a value in the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// UpDownCounter wraps an OTel up-down counter for values that can increase and decrease
type UpDownCounter struct {
	counter metric.Int64UpDownCounter
}

// NewUpDownCounter creates a new up-down counter metric
func NewUpDownCounter(opts MetricOpts) (*UpDownCounter, error) {
	counter, err := GetMeter().Int64UpDownCounter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &UpDownCounter{counter: counter}, nil
}

// Add adds the given value to the counter (can be negative)
func (c *UpDownCounter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// TicketingMetrics are the business instruments of the ticketing core
type TicketingMetrics struct {
	OrdersCreated    *Counter
	OrderTransitions *Counter
	CapacityRefusals *Counter
	TicketsCommitted *UpDownCounter
	Scans            *Counter
	EmailsSent       *Counter
	ExpiredOrders    *Counter
	OrderLatency     *Histogram
}

// NewTicketingMetrics registers every ticketing instrument on the global meter
func NewTicketingMetrics() (*TicketingMetrics, error) {
	var (
		m   TicketingMetrics
		err error
	)

	if m.OrdersCreated, err = NewCounter(MetricOpts{
		Name: "ticketing.orders.created", Description: "Orders placed", Unit: "{order}",
	}); err != nil {
		return nil, err
	}
	if m.OrderTransitions, err = NewCounter(MetricOpts{
		Name: "ticketing.orders.transitions", Description: "Applied order status transitions", Unit: "{transition}",
	}); err != nil {
		return nil, err
	}
	if m.CapacityRefusals, err = NewCounter(MetricOpts{
		Name: "ticketing.capacity.refusals", Description: "Reservations refused for lack of capacity", Unit: "{refusal}",
	}); err != nil {
		return nil, err
	}
	if m.TicketsCommitted, err = NewUpDownCounter(MetricOpts{
		Name: "ticketing.tickets.committed", Description: "Tickets currently holding capacity", Unit: "{ticket}",
	}); err != nil {
		return nil, err
	}
	if m.Scans, err = NewCounter(MetricOpts{
		Name: "ticketing.scans", Description: "Door scans by direction and outcome", Unit: "{scan}",
	}); err != nil {
		return nil, err
	}
	if m.EmailsSent, err = NewCounter(MetricOpts{
		Name: "ticketing.emails.sent", Description: "Ticket emails by outcome", Unit: "{email}",
	}); err != nil {
		return nil, err
	}
	if m.ExpiredOrders, err = NewCounter(MetricOpts{
		Name: "ticketing.orders.expired", Description: "Pending orders expired by the sweeper", Unit: "{order}",
	}); err != nil {
		return nil, err
	}
	if m.OrderLatency, err = NewHistogram(MetricOpts{
		Name: "ticketing.order.duration", Description: "Time to place an order", Unit: "ms",
	}, 5, 10, 25, 50, 100, 250, 500, 1000, 2500); err != nil {
		return nil, err
	}

	return &m, nil
}

// MustTicketingMetrics is NewTicketingMetrics for the no-op meter in tests
func MustTicketingMetrics() *TicketingMetrics {
	m, err := NewTicketingMetrics()
	if err != nil {
		panic(err)
	}
	return m
}

// Common metric attribute keys
const (
	AttrEventID       = "event.id"
	AttrOrderID       = "order.id"
	AttrOrderStatus   = "order.status"
	AttrResourceKind  = "resource.kind"
	AttrScanDirection = "scan.direction"
	AttrOutcome       = "outcome"
	AttrErrorType     = "error.type"
)

func EventIDAttr(id int64) attribute.KeyValue {
	return attribute.Int64(AttrEventID, id)
}

func OrderIDAttr(id int64) attribute.KeyValue {
	return attribute.Int64(AttrOrderID, id)
}

func OrderStatusAttr(status string) attribute.KeyValue {
	return attribute.String(AttrOrderStatus, status)
}

func ResourceKindAttr(kind string) attribute.KeyValue {
	return attribute.String(AttrResourceKind, kind)
}

func ScanDirectionAttr(direction string) attribute.KeyValue {
	return attribute.String(AttrScanDirection, direction)
}

func OutcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

func ErrorTypeAttr(errType string) attribute.KeyValue {
	return attribute.String(AttrErrorType, errType)
}
