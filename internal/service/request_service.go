package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/predictor"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// RequestService coordinates service request workflows for the ticketing
// surface. The predictor classifies category/priority when the caller omits
// them; classification failures fall back to defaults.
type RequestService struct {
	requests   repository.ServiceRequestRepository
	users      repository.UserRepository
	predictor  predictor.Client
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// RequestDependencies bundles collaborators.
type RequestDependencies struct {
	RequestRepo repository.ServiceRequestRepository
	UserRepo    repository.UserRepository
	Predictor   predictor.Client
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	return &RequestService{
		requests:   deps.RequestRepo,
		users:      deps.UserRepo,
		predictor:  deps.Predictor,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// RequestCreateInput describes request creation payload.
type RequestCreateInput struct {
	CustomerID    string
	Title         string
	Description   string
	Category      domain.RequestCategory
	Priority      domain.RequestPriority
	ScheduledDate *time.Time
}

// RequestListFilter describes listing filters.
type RequestListFilter struct {
	CustomerID           *string
	AssignedTechnicianID *string
	Statuses             []domain.RequestStatus
	Categories           []domain.RequestCategory
	Priorities           []domain.RequestPriority
	SearchTerm           *string
	CreatedFrom          *time.Time
	CreatedTo            *time.Time
	Limit                int
	Offset               int
}

// CreateRequest files a new service request.
func (s *RequestService) CreateRequest(ctx context.Context, input RequestCreateInput) (*domain.ServiceRequest, error) {
	customer, err := s.users.GetByID(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": input.CustomerID})
		}
		return nil, apperrors.MapError(err)
	}
	if !customer.Active {
		return nil, apperrors.NewBusinessRule("customer is not active", map[string]any{"customer_id": customer.ID})
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}

	request := &domain.ServiceRequest{
		ExternalKey:   generateRequestKey(),
		CustomerID:    customer.ID,
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Category:      input.Category,
		Priority:      input.Priority,
		Status:        domain.RequestStatusPending,
		ScheduledDate: input.ScheduledDate,
	}
	s.classify(ctx, request)

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: request.ID,
		Payload: events.RequestCreatedPayload{
			Category: request.Category,
			Priority: request.Priority,
			Title:    request.Title,
		},
	})
	return request, nil
}

// GetRequest fetches one request.
func (s *RequestService) GetRequest(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

// ListRequests returns requests matching the filter.
func (s *RequestService) ListRequests(ctx context.Context, filter RequestListFilter) ([]domain.ServiceRequest, error) {
	list, err := s.requests.ListWithFilter(ctx, repository.RequestFilter{
		CustomerID:           filter.CustomerID,
		AssignedTechnicianID: filter.AssignedTechnicianID,
		Statuses:             filter.Statuses,
		Categories:           filter.Categories,
		Priorities:           filter.Priorities,
		SearchTerm:           filter.SearchTerm,
		CreatedFrom:          filter.CreatedFrom,
		CreatedTo:            filter.CreatedTo,
		Limit:                filter.Limit,
		Offset:               filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// CancelRequest lets the owning customer withdraw a request before any work
// has begun.
func (s *RequestService) CancelRequest(ctx context.Context, customerID, requestID string) (*domain.ServiceRequest, error) {
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.CustomerID != customerID {
		return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
	}
	if request.Status != domain.RequestStatusPending {
		return nil, apperrors.NewBusinessRule("only pending requests can be cancelled by the customer", map[string]any{
			"request_id": request.ID,
			"status":     request.Status,
		})
	}
	request.Status = domain.RequestStatusCancelled
	if err := s.requests.Update(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

func (s *RequestService) classify(ctx context.Context, request *domain.ServiceRequest) {
	if request.Category == "" {
		category, err := s.predictor.PredictCategory(ctx, request.Description)
		if err != nil {
			s.logger.Warn("category prediction failed", zap.Error(err))
		}
		if category == "" {
			category = domain.CategoryOther
		}
		request.Category = category
	}
	if request.Priority == "" {
		priority, err := s.predictor.PredictPriority(ctx, request.Description)
		if err != nil {
			s.logger.Warn("priority prediction failed", zap.Error(err))
		}
		if priority == "" {
			priority = domain.RequestPriorityMedium
		}
		request.Priority = priority
	}
}

func generateRequestKey() string {
	return "REQ-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *RequestService) publish(ctx context.Context, event events.Event) {
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
