package dto

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// CreateRequestRequest payload.
type CreateRequestRequest struct {
	CustomerID    string                 `json:"customer_id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Category      domain.RequestCategory `json:"category,omitempty"`
	Priority      domain.RequestPriority `json:"priority,omitempty"`
	ScheduledDate *time.Time             `json:"scheduled_date,omitempty"`
}

// CancelRequestRequest payload.
type CancelRequestRequest struct {
	CustomerID string `json:"customer_id"`
}

// RequestResponse provides full request info.
type RequestResponse struct {
	ID                   string                 `json:"id"`
	ExternalKey          string                 `json:"external_key"`
	CustomerID           string                 `json:"customer_id"`
	Title                string                 `json:"title"`
	Description          string                 `json:"description"`
	Category             domain.RequestCategory `json:"category"`
	Priority             domain.RequestPriority `json:"priority"`
	Status               domain.RequestStatus   `json:"status"`
	AssignedTechnicianID *string                `json:"assigned_technician_id"`
	CurrentAssignmentID  *string                `json:"current_assignment_id"`
	ScheduledDate        *time.Time             `json:"scheduled_date"`
	CompletedDate        *time.Time             `json:"completed_date"`
	Resolution           string                 `json:"resolution,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// FromRequest maps the domain aggregate.
func FromRequest(request *domain.ServiceRequest) RequestResponse {
	return RequestResponse{
		ID:                   request.ID,
		ExternalKey:          request.ExternalKey,
		CustomerID:           request.CustomerID,
		Title:                request.Title,
		Description:          request.Description,
		Category:             request.Category,
		Priority:             request.Priority,
		Status:               request.Status,
		AssignedTechnicianID: request.AssignedTechnicianID,
		CurrentAssignmentID:  request.CurrentAssignmentID,
		ScheduledDate:        request.ScheduledDate,
		CompletedDate:        request.CompletedDate,
		Resolution:           request.Resolution,
		CreatedAt:            request.CreatedAt,
		UpdatedAt:            request.UpdatedAt,
	}
}
