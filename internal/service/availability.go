package service

import (
	"context"
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

// AvailabilityService answers whether a technician can accept one more
// assignment on a given calendar day.
type AvailabilityService struct {
	assignments repository.WorkAssignmentRepository
}

// NewAvailabilityService creates the service.
func NewAvailabilityService(assignmentRepo repository.WorkAssignmentRepository) *AvailabilityService {
	return &AvailabilityService{assignments: assignmentRepo}
}

// IsAvailable reports whether the technician holds fewer than the daily
// capacity of non-terminal assignments on the day containing the instant.
// When called inside a transaction holding the technician lock, the answer
// stays valid until commit.
func (s *AvailabilityService) IsAvailable(ctx context.Context, technicianID string, day time.Time) (bool, error) {
	count, err := s.assignments.CountActiveOnDay(ctx, technicianID, day)
	if err != nil {
		return false, err
	}
	return count < domain.TechnicianDailyCapacity, nil
}
