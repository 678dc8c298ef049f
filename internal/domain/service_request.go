package domain

import "time"

// RequestStatus enumerates lifecycle states for service requests.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusOnHold     RequestStatus = "ON_HOLD"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusCancelled  RequestStatus = "CANCELLED"
	RequestStatusRejected   RequestStatus = "REJECTED"
)

// RequestPriority enumerates urgency levels.
type RequestPriority string

const (
	RequestPriorityLow    RequestPriority = "LOW"
	RequestPriorityMedium RequestPriority = "MEDIUM"
	RequestPriorityHigh   RequestPriority = "HIGH"
	RequestPriorityUrgent RequestPriority = "URGENT"
)

// RequestCategory classifies the kind of technical work requested.
type RequestCategory string

const (
	CategoryHardware    RequestCategory = "HARDWARE"
	CategorySoftware    RequestCategory = "SOFTWARE"
	CategoryNetwork     RequestCategory = "NETWORK"
	CategoryElectrical  RequestCategory = "ELECTRICAL"
	CategoryMaintenance RequestCategory = "MAINTENANCE"
	CategoryOther       RequestCategory = "OTHER"
)

// CategoryKeywords maps each category to the specialization keywords used by
// the local selector fallback. Specialization text is free-form and may be
// written in English or Turkish, so both spellings are matched.
var CategoryKeywords = map[RequestCategory][]string{
	CategoryHardware:    {"hardware", "donanım"},
	CategorySoftware:    {"software", "yazılım"},
	CategoryNetwork:     {"network", "ağ"},
	CategoryElectrical:  {"electrical", "elektrik"},
	CategoryMaintenance: {"maintenance", "bakım"},
}

// ServiceRequest is the aggregate for customer-filed support requests. The
// scheduler reads category/priority and mutates status, the technician
// pointer and the completion timestamp; everything else belongs to the
// ticketing subsystem.
type ServiceRequest struct {
	ID                   string
	ExternalKey          string
	CustomerID           string
	Title                string
	Description          string
	Category             RequestCategory
	Priority             RequestPriority
	Status               RequestStatus
	AssignedTechnicianID *string
	CurrentAssignmentID  *string
	ScheduledDate        *time.Time
	CompletedDate        *time.Time
	Resolution           string
	ActualCost           *float64
	ActualHours          *float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsTerminal reports whether the request can no longer change state.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusCompleted, RequestStatusCancelled, RequestStatusRejected:
		return true
	}
	return false
}
