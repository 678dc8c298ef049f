package dto

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// CreateAssignmentRequest payload for manual assignment.
type CreateAssignmentRequest struct {
	ServiceRequestID string     `json:"service_request_id"`
	TechnicianID     string     `json:"technician_id"`
	ScheduledDate    *time.Time `json:"scheduled_date,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	EstimatedHours   *float64   `json:"estimated_hours,omitempty"`
}

// CompleteAssignmentRequest payload.
type CompleteAssignmentRequest struct {
	CompletionNotes string   `json:"completion_notes,omitempty"`
	ActualHours     *float64 `json:"actual_hours,omitempty"`
}

// CancelAssignmentRequest payload.
type CancelAssignmentRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	TechnicianID string `json:"technician_id"`
	Reason       string `json:"reason,omitempty"`
}

// AssignmentResponse represents one work assignment.
type AssignmentResponse struct {
	ID               string                  `json:"id"`
	ServiceRequestID string                  `json:"service_request_id"`
	TechnicianID     string                  `json:"technician_id"`
	Status           domain.AssignmentStatus `json:"status"`
	AssignedDate     time.Time               `json:"assigned_date"`
	ScheduledDate    *time.Time              `json:"scheduled_date"`
	StartedDate      *time.Time              `json:"started_date"`
	CompletedDate    *time.Time              `json:"completed_date"`
	Notes            string                  `json:"notes,omitempty"`
	CompletionNotes  string                  `json:"completion_notes,omitempty"`
	EstimatedHours   *float64                `json:"estimated_hours,omitempty"`
	ActualHours      *float64                `json:"actual_hours,omitempty"`
}

// FromAssignment maps the domain entity.
func FromAssignment(assignment *domain.WorkAssignment) AssignmentResponse {
	return AssignmentResponse{
		ID:               assignment.ID,
		ServiceRequestID: assignment.ServiceRequestID,
		TechnicianID:     assignment.TechnicianID,
		Status:           assignment.Status,
		AssignedDate:     assignment.AssignedDate,
		ScheduledDate:    assignment.ScheduledDate,
		StartedDate:      assignment.StartedDate,
		CompletedDate:    assignment.CompletedDate,
		Notes:            assignment.Notes,
		CompletionNotes:  assignment.CompletionNotes,
		EstimatedHours:   assignment.EstimatedHours,
		ActualHours:      assignment.ActualHours,
	}
}
