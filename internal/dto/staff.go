package dto

import (
	"time"

	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

// IssueStaffCodeRequest names the holder of a new staff access code
type IssueStaffCodeRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// StaffSessionRequest carries the staff code typed at the door
type StaffSessionRequest struct {
	Code string `json:"code" binding:"required,min=1,max=16"`
}

// StaffSessionResponse is returned when a staff code opens a scan session
type StaffSessionResponse struct {
	Token      string                  `json:"token"`
	Credential *domain.StaffCredential `json:"credential"`
	ExpiresAt  time.Time               `json:"expires_at"`
}

// ScanRequest is one scan of a ticket QR code
type ScanRequest struct {
	ValidationCode string `json:"validation_code" binding:"required,max=64"`
	Direction      string `json:"direction" binding:"required,oneof=check_in check_out bus_info"`
}

// BusInfo describes the shuttle attached to a ticket
type BusInfo struct {
	BusID     int64     `json:"bus_id"`
	Direction string    `json:"direction"`
	Location  string    `json:"location"`
	DepartsAt time.Time `json:"departs_at"`
}

// ScanResult is what the door scanner shows after a successful scan
type ScanResult struct {
	TicketID     int64      `json:"ticket_id"`
	Direction    string     `json:"direction"`
	Message      string     `json:"message"`
	Email        string     `json:"email"`
	TableName    string     `json:"table_name,omitempty"`
	Restrictions string     `json:"restrictions,omitempty"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
	BusGo        *BusInfo   `json:"bus_go,omitempty"`
	BusCome      *BusInfo   `json:"bus_come,omitempty"`
}

// Attendee is one confirmed ticket as listed for the door team
type Attendee struct {
	TicketID     int64      `json:"ticket_id"`
	OrderID      int64      `json:"order_id"`
	Email        string     `json:"email"`
	TableName    string     `json:"table_name"`
	Restrictions string     `json:"restrictions,omitempty"`
	HasBus       bool       `json:"has_bus"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
}
