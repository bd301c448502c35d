package domain

import "time"

// ResourceKind identifies a capacity-bearing resource
type ResourceKind string

const (
	ResourceEvent    ResourceKind = "event"
	ResourceTable    ResourceKind = "table"
	ResourceBusIda   ResourceKind = "bus_ida"
	ResourceBusVolta ResourceKind = "bus_volta"
)

// IsValid returns true if the kind is known
func (k ResourceKind) IsValid() bool {
	switch k {
	case ResourceEvent, ResourceTable, ResourceBusIda, ResourceBusVolta:
		return true
	}
	return false
}

// Availability is the answer to "can N units be reserved"
type Availability struct {
	Available bool `json:"available"`
	SpotsLeft int  `json:"spots_left"`
	Capacity  int  `json:"capacity"`
}

// NewAvailability computes availability from capacity and live occupancy.
// SpotsLeft never goes below zero.
func NewAvailability(capacity, occupied, requested int) Availability {
	left := capacity - occupied
	if left < 0 {
		left = 0
	}
	return Availability{
		Available: requested > 0 && requested <= left,
		SpotsLeft: left,
		Capacity:  capacity,
	}
}

// Table is a seating table at an event
type Table struct {
	ID       int64  `json:"id"`
	EventID  int64  `json:"event_id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// TableAvailability is a table with its live occupancy
type TableAvailability struct {
	Table
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
}

// BusDirection is the direction of a shuttle bus
type BusDirection string

const (
	BusOutbound BusDirection = "ida"
	BusReturn   BusDirection = "volta"
)

// IsValid returns true if the direction is known
func (d BusDirection) IsValid() bool {
	return d == BusOutbound || d == BusReturn
}

// ResourceKind returns the ledger resource kind for buses of this direction
func (d BusDirection) ResourceKind() ResourceKind {
	if d == BusReturn {
		return ResourceBusVolta
	}
	return ResourceBusIda
}

// Bus is a shuttle bus serving an event in one direction
type Bus struct {
	ID        int64        `json:"id"`
	EventID   int64        `json:"event_id"`
	Direction BusDirection `json:"direction"`
	Capacity  int          `json:"capacity"`
	Location  string       `json:"location"`
	DepartsAt time.Time    `json:"departs_at"`
}

// BusAvailability is a bus with its live occupancy
type BusAvailability struct {
	Bus
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
}
