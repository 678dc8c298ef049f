package events

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAssignmentCreated   EventType = "assignment_created"
	EventAssignmentStarted   EventType = "assignment_started"
	EventAssignmentCompleted EventType = "assignment_completed"
	EventAssignmentCancelled EventType = "assignment_cancelled"
	EventRequestCreated      EventType = "request_created"
	EventRequestCompleted    EventType = "request_completed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AssignmentCreatedPayload payload.
type AssignmentCreatedPayload struct {
	AssignmentID  string     `json:"assignment_id"`
	TechnicianID  string     `json:"technician_id"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	AutoAssigned  bool       `json:"auto_assigned"`
}

// AssignmentStartedPayload payload.
type AssignmentStartedPayload struct {
	AssignmentID string    `json:"assignment_id"`
	TechnicianID string    `json:"technician_id"`
	StartedDate  time.Time `json:"started_date"`
}

// AssignmentCompletedPayload payload.
type AssignmentCompletedPayload struct {
	AssignmentID  string    `json:"assignment_id"`
	TechnicianID  string    `json:"technician_id"`
	CompletedDate time.Time `json:"completed_date"`
	ActualHours   *float64  `json:"actual_hours,omitempty"`
}

// AssignmentCancelledPayload payload.
type AssignmentCancelledPayload struct {
	AssignmentID string `json:"assignment_id"`
	TechnicianID string `json:"technician_id"`
	Reason       string `json:"reason,omitempty"`
	Reassigned   bool   `json:"reassigned"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	Category domain.RequestCategory `json:"category"`
	Priority domain.RequestPriority `json:"priority"`
	Title    string                 `json:"title"`
}

// RequestCompletedPayload payload.
type RequestCompletedPayload struct {
	CompletedDate time.Time `json:"completed_date"`
}
