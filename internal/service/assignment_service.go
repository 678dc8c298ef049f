package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// AssignmentService manages the work assignment state machine and keeps the
// parent request's status synchronized with its assignment history. Every
// mutation runs inside one transaction; Create and Reassign additionally
// serialize on the technician so the availability check cannot be raced.
type AssignmentService struct {
	requests     repository.ServiceRequestRepository
	assignments  repository.WorkAssignmentRepository
	users        repository.UserRepository
	availability *AvailabilityService
	tx           persistence.TxRunner
	dispatcher   events.Dispatcher
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	RequestRepo    repository.ServiceRequestRepository
	AssignmentRepo repository.WorkAssignmentRepository
	UserRepo       repository.UserRepository
	Availability   *AvailabilityService
	Tx             persistence.TxRunner
	Dispatcher     events.Dispatcher
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		requests:     deps.RequestRepo,
		assignments:  deps.AssignmentRepo,
		users:        deps.UserRepo,
		availability: deps.Availability,
		tx:           deps.Tx,
		dispatcher:   deps.Dispatcher,
	}
}

// CreateAssignmentInput describes assignment creation payload.
type CreateAssignmentInput struct {
	ServiceRequestID string
	TechnicianID     string
	ScheduledDate    *time.Time
	Notes            string
	EstimatedHours   *float64
	AutoAssigned     bool
}

// Create binds a technician to a service request. The availability check and
// the insert share one transaction under a per-technician lock.
func (s *AssignmentService) Create(ctx context.Context, input CreateAssignmentInput) (*domain.WorkAssignment, error) {
	technician, err := s.loadTechnician(ctx, input.TechnicianID)
	if err != nil {
		return nil, err
	}
	if !technician.Active {
		return nil, apperrors.NewBusinessRule("technician is not active", map[string]any{"technician_id": technician.ID})
	}

	var assignment *domain.WorkAssignment
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		request, err := s.loadRequest(ctx, input.ServiceRequestID)
		if err != nil {
			return err
		}
		if request.Status.IsTerminal() {
			return apperrors.NewBusinessRule("request is closed", map[string]any{
				"request_id": request.ID,
				"status":     request.Status,
			})
		}

		if err := s.assignments.LockTechnician(ctx, technician.ID); err != nil {
			return apperrors.MapError(err)
		}
		if input.ScheduledDate != nil {
			available, err := s.availability.IsAvailable(ctx, technician.ID, *input.ScheduledDate)
			if err != nil {
				return apperrors.MapError(err)
			}
			if !available {
				return apperrors.NewBusinessRule("technician not available on requested date", map[string]any{
					"technician_id": technician.ID,
					"date":          input.ScheduledDate.Format("2006-01-02"),
				})
			}
		}

		assignment = &domain.WorkAssignment{
			ServiceRequestID: request.ID,
			TechnicianID:     technician.ID,
			Status:           domain.AssignmentStatusAssigned,
			AssignedDate:     time.Now(),
			ScheduledDate:    input.ScheduledDate,
			Notes:            strings.TrimSpace(input.Notes),
			EstimatedHours:   input.EstimatedHours,
		}
		if err := s.assignments.Create(ctx, assignment); err != nil {
			return apperrors.MapError(err)
		}

		request.AssignedTechnicianID = &technician.ID
		request.CurrentAssignmentID = &assignment.ID
		if request.Status == domain.RequestStatusPending {
			request.Status = domain.RequestStatusInProgress
		}
		if err := s.requests.Update(ctx, request); err != nil {
			return apperrors.MapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:      events.EventAssignmentCreated,
		RequestID: assignment.ServiceRequestID,
		Payload: events.AssignmentCreatedPayload{
			AssignmentID:  assignment.ID,
			TechnicianID:  assignment.TechnicianID,
			ScheduledDate: assignment.ScheduledDate,
			AutoAssigned:  input.AutoAssigned,
		},
	})
	return assignment, nil
}

// Start moves an assignment from Assigned to InProgress.
func (s *AssignmentService) Start(ctx context.Context, assignmentID string) (*domain.WorkAssignment, error) {
	var assignment *domain.WorkAssignment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		assignment, err = s.loadAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if assignment.Status != domain.AssignmentStatusAssigned {
			return apperrors.NewBusinessRule("assignment cannot be started", map[string]any{
				"assignment_id": assignment.ID,
				"status":        assignment.Status,
			})
		}
		now := time.Now()
		assignment.Status = domain.AssignmentStatusInProgress
		assignment.StartedDate = &now
		return apperrors.MapError(s.assignments.Update(ctx, assignment))
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:      events.EventAssignmentStarted,
		RequestID: assignment.ServiceRequestID,
		Payload: events.AssignmentStartedPayload{
			AssignmentID: assignment.ID,
			TechnicianID: assignment.TechnicianID,
			StartedDate:  *assignment.StartedDate,
		},
	})
	return assignment, nil
}

// Complete finishes an assignment and re-evaluates the parent request inside
// the same transaction.
func (s *AssignmentService) Complete(ctx context.Context, assignmentID, completionNotes string, actualHours *float64) (*domain.WorkAssignment, error) {
	var assignment *domain.WorkAssignment
	var requestCompletedAt *time.Time
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		assignment, err = s.loadAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(assignment.Status, domain.AssignmentStatusCompleted) {
			return apperrors.NewBusinessRule("assignment cannot be completed", map[string]any{
				"assignment_id": assignment.ID,
				"status":        assignment.Status,
			})
		}
		now := time.Now()
		assignment.Status = domain.AssignmentStatusCompleted
		assignment.CompletedDate = &now
		assignment.CompletionNotes = strings.TrimSpace(completionNotes)
		assignment.ActualHours = actualHours
		if err := s.assignments.Update(ctx, assignment); err != nil {
			return apperrors.MapError(err)
		}

		requestCompletedAt, err = s.syncRequestStatus(ctx, assignment.ServiceRequestID, assignment.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:      events.EventAssignmentCompleted,
		RequestID: assignment.ServiceRequestID,
		Payload: events.AssignmentCompletedPayload{
			AssignmentID:  assignment.ID,
			TechnicianID:  assignment.TechnicianID,
			CompletedDate: *assignment.CompletedDate,
			ActualHours:   assignment.ActualHours,
		},
	})
	if requestCompletedAt != nil {
		s.publish(ctx, events.Event{
			Type:      events.EventRequestCompleted,
			RequestID: assignment.ServiceRequestID,
			Payload:   events.RequestCompletedPayload{CompletedDate: *requestCompletedAt},
		})
	}
	return assignment, nil
}

// Cancel terminates an Assigned or InProgress assignment, recording the
// reason in the notes.
func (s *AssignmentService) Cancel(ctx context.Context, assignmentID, reason string) (*domain.WorkAssignment, error) {
	var assignment *domain.WorkAssignment
	var requestCompletedAt *time.Time
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		assignment, err = s.loadAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if err := s.cancelLocked(ctx, assignment, reason); err != nil {
			return err
		}
		requestCompletedAt, err = s.syncRequestStatus(ctx, assignment.ServiceRequestID, assignment.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishCancelled(ctx, assignment, reason, false)
	if requestCompletedAt != nil {
		s.publish(ctx, events.Event{
			Type:      events.EventRequestCompleted,
			RequestID: assignment.ServiceRequestID,
			Payload:   events.RequestCompletedPayload{CompletedDate: *requestCompletedAt},
		})
	}
	return assignment, nil
}

// Reassign cancels an assignment and creates a replacement for another
// technician in one transaction, keeping the scheduled date and linking the
// replacement back to the original.
func (s *AssignmentService) Reassign(ctx context.Context, assignmentID, newTechnicianID, reason string) (*domain.WorkAssignment, error) {
	technician, err := s.loadTechnician(ctx, newTechnicianID)
	if err != nil {
		return nil, err
	}
	if !technician.Active {
		return nil, apperrors.NewBusinessRule("technician is not active", map[string]any{"technician_id": technician.ID})
	}

	var old, replacement *domain.WorkAssignment
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		old, err = s.loadAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if old.Status.IsTerminal() {
			return apperrors.NewBusinessRule("assignment cannot be reassigned", map[string]any{
				"assignment_id": old.ID,
				"status":        old.Status,
			})
		}
		if err := s.assignments.LockTechnician(ctx, technician.ID); err != nil {
			return apperrors.MapError(err)
		}
		if old.ScheduledDate != nil {
			available, err := s.availability.IsAvailable(ctx, technician.ID, *old.ScheduledDate)
			if err != nil {
				return apperrors.MapError(err)
			}
			if !available {
				return apperrors.NewBusinessRule("technician not available on requested date", map[string]any{
					"technician_id": technician.ID,
					"date":          old.ScheduledDate.Format("2006-01-02"),
				})
			}
		}

		cancelReason := "reassignment"
		if strings.TrimSpace(reason) != "" {
			cancelReason = "reassignment: " + strings.TrimSpace(reason)
		}
		if err := s.cancelLocked(ctx, old, cancelReason); err != nil {
			return err
		}

		replacement = &domain.WorkAssignment{
			ServiceRequestID: old.ServiceRequestID,
			TechnicianID:     technician.ID,
			Status:           domain.AssignmentStatusAssigned,
			AssignedDate:     time.Now(),
			ScheduledDate:    old.ScheduledDate,
			EstimatedHours:   old.EstimatedHours,
			Notes:            fmt.Sprintf("reassigned from %s", old.ID),
		}
		if err := s.assignments.Create(ctx, replacement); err != nil {
			return apperrors.MapError(err)
		}

		request, err := s.loadRequest(ctx, old.ServiceRequestID)
		if err != nil {
			return err
		}
		request.AssignedTechnicianID = &technician.ID
		request.CurrentAssignmentID = &replacement.ID
		if request.Status == domain.RequestStatusPending {
			request.Status = domain.RequestStatusInProgress
		}
		return apperrors.MapError(s.requests.Update(ctx, request))
	})
	if err != nil {
		return nil, err
	}

	s.publishCancelled(ctx, old, reason, true)
	s.publish(ctx, events.Event{
		Type:      events.EventAssignmentCreated,
		RequestID: replacement.ServiceRequestID,
		Payload: events.AssignmentCreatedPayload{
			AssignmentID:  replacement.ID,
			TechnicianID:  replacement.TechnicianID,
			ScheduledDate: replacement.ScheduledDate,
		},
	})
	return replacement, nil
}

// Delete removes a terminal assignment row. Administrative escape hatch; the
// normal lifecycle never deletes.
func (s *AssignmentService) Delete(ctx context.Context, assignmentID string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		assignment, err := s.loadAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if !assignment.Status.IsTerminal() {
			return apperrors.NewBusinessRule("only terminal assignments may be deleted", map[string]any{
				"assignment_id": assignment.ID,
				"status":        assignment.Status,
			})
		}
		return apperrors.MapError(s.assignments.Delete(ctx, assignment.ID))
	})
}

// GetAssignment fetches one assignment.
func (s *AssignmentService) GetAssignment(ctx context.Context, assignmentID string) (*domain.WorkAssignment, error) {
	return s.loadAssignment(ctx, assignmentID)
}

// ListByRequest returns the full assignment history of a request.
func (s *AssignmentService) ListByRequest(ctx context.Context, serviceRequestID string) ([]domain.WorkAssignment, error) {
	if _, err := s.loadRequest(ctx, serviceRequestID); err != nil {
		return nil, err
	}
	list, err := s.assignments.ListByRequest(ctx, serviceRequestID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

func (s *AssignmentService) cancelLocked(ctx context.Context, assignment *domain.WorkAssignment, reason string) error {
	if !domain.CanTransition(assignment.Status, domain.AssignmentStatusCancelled) {
		return apperrors.NewBusinessRule("assignment cannot be cancelled", map[string]any{
			"assignment_id": assignment.ID,
			"status":        assignment.Status,
		})
	}
	assignment.Status = domain.AssignmentStatusCancelled
	if strings.TrimSpace(reason) != "" {
		if assignment.Notes != "" {
			assignment.Notes += "\n"
		}
		assignment.Notes += "cancelled: " + strings.TrimSpace(reason)
	}
	return apperrors.MapError(s.assignments.Update(ctx, assignment))
}

// syncRequestStatus re-derives the owning request's status from its full
// assignment set. Must run in the same transaction as the triggering write.
// Returns true when the request just became Completed.
func (s *AssignmentService) syncRequestStatus(ctx context.Context, serviceRequestID, triggeringID string) (*time.Time, error) {
	request, err := s.loadRequest(ctx, serviceRequestID)
	if err != nil {
		return nil, err
	}
	all, err := s.assignments.ListByRequest(ctx, serviceRequestID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	anyCompleted := false
	allTerminal := len(all) > 0
	for _, a := range all {
		if a.Status == domain.AssignmentStatusCompleted {
			anyCompleted = true
		}
		if !a.Status.IsTerminal() {
			allTerminal = false
		}
	}

	changed := false
	if request.CurrentAssignmentID != nil && *request.CurrentAssignmentID == triggeringID {
		request.CurrentAssignmentID = nil
		changed = true
	}

	var completedAt *time.Time
	switch {
	case allTerminal && anyCompleted && request.Status != domain.RequestStatusCompleted:
		now := time.Now()
		request.Status = domain.RequestStatusCompleted
		request.CompletedDate = &now
		completedAt = &now
		changed = true
	case allTerminal && !anyCompleted && !request.Status.IsTerminal():
		// every assignment was cancelled: the request needs a fresh assignment
		request.Status = domain.RequestStatusPending
		request.AssignedTechnicianID = nil
		changed = true
	}

	if changed {
		if err := s.requests.Update(ctx, request); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return completedAt, nil
}

func (s *AssignmentService) loadRequest(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

func (s *AssignmentService) loadAssignment(ctx context.Context, id string) (*domain.WorkAssignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("work assignment", map[string]any{"assignment_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return assignment, nil
}

func (s *AssignmentService) loadTechnician(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if user.Role != domain.RoleTechnician {
		return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": id})
	}
	return user, nil
}

func (s *AssignmentService) publishCancelled(ctx context.Context, assignment *domain.WorkAssignment, reason string, reassigned bool) {
	s.publish(ctx, events.Event{
		Type:      events.EventAssignmentCancelled,
		RequestID: assignment.ServiceRequestID,
		Payload: events.AssignmentCancelledPayload{
			AssignmentID: assignment.ID,
			TechnicianID: assignment.TechnicianID,
			Reason:       reason,
			Reassigned:   reassigned,
		},
	})
}

func (s *AssignmentService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
