package dto

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// CreateTechnicianRequest payload.
type CreateTechnicianRequest struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Specializations []string `json:"specializations"`
}

// UpdateTechnicianRequest payload.
type UpdateTechnicianRequest struct {
	Name            *string  `json:"name,omitempty"`
	Email           *string  `json:"email,omitempty"`
	Active          *bool    `json:"active,omitempty"`
	Specializations []string `json:"specializations,omitempty"`
}

// TechnicianResponse represents a technician.
type TechnicianResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Active          bool      `json:"active"`
	Specializations []string  `json:"specializations"`
	CreatedAt       time.Time `json:"created_at"`
}

// FromTechnician maps the user aggregate.
func FromTechnician(user *domain.User) TechnicianResponse {
	return TechnicianResponse{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Active:          user.Active,
		Specializations: user.Specializations(),
		CreatedAt:       user.CreatedAt,
	}
}
