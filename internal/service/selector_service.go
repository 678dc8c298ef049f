package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/predictor"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// SelectorService picks a technician for a request: predictor suggestions
// first, then a local specialization/workload heuristic.
type SelectorService struct {
	requests     repository.ServiceRequestRepository
	users        repository.UserRepository
	assignments  repository.WorkAssignmentRepository
	predictor    predictor.Client
	availability *AvailabilityService
	lifecycle    *AssignmentService
	logger       *zap.Logger
}

// SelectorDependencies bundles collaborators.
type SelectorDependencies struct {
	RequestRepo    repository.ServiceRequestRepository
	UserRepo       repository.UserRepository
	AssignmentRepo repository.WorkAssignmentRepository
	Predictor      predictor.Client
	Availability   *AvailabilityService
	Lifecycle      *AssignmentService
	Logger         *zap.Logger
}

// NewSelectorService creates the service.
func NewSelectorService(deps SelectorDependencies) *SelectorService {
	return &SelectorService{
		requests:     deps.RequestRepo,
		users:        deps.UserRepo,
		assignments:  deps.AssignmentRepo,
		predictor:    deps.Predictor,
		availability: deps.Availability,
		lifecycle:    deps.Lifecycle,
		logger:       deps.Logger,
	}
}

// FindCandidates produces a ranked technician list for a category/priority.
// Order is the predictor's when it answers; otherwise active technicians
// filtered by specialization keyword and ranked ascending by workload,
// ties broken by name then id.
func (s *SelectorService) FindCandidates(ctx context.Context, category domain.RequestCategory, priority domain.RequestPriority) ([]domain.User, error) {
	suggested, err := s.predictor.SuggestTechnicians(ctx, category, priority)
	if err != nil {
		s.logger.Warn("predictor suggestion failed; using local heuristic", zap.Error(err))
		suggested = nil
	}
	if len(suggested) > 0 {
		candidates := s.resolveSuggestions(ctx, suggested)
		if len(candidates) > 0 {
			return candidates, nil
		}
	}
	return s.localCandidates(ctx, category)
}

// AutoAssign selects the first available candidate for the request and
// creates the assignment.
func (s *SelectorService) AutoAssign(ctx context.Context, serviceRequestID string) (*domain.WorkAssignment, error) {
	request, err := s.requests.GetByID(ctx, serviceRequestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": serviceRequestID})
		}
		return nil, apperrors.MapError(err)
	}
	if request.Status.IsTerminal() {
		return nil, apperrors.NewBusinessRule("request is closed", map[string]any{
			"request_id": request.ID,
			"status":     request.Status,
		})
	}

	candidates, err := s.FindCandidates(ctx, request.Category, request.Priority)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, candidate := range candidates {
		available, err := s.availability.IsAvailable(ctx, candidate.ID, now)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !available {
			continue
		}
		return s.lifecycle.Create(ctx, CreateAssignmentInput{
			ServiceRequestID: request.ID,
			TechnicianID:     candidate.ID,
			ScheduledDate:    request.ScheduledDate,
			AutoAssigned:     true,
		})
	}

	return nil, apperrors.NewBusinessRule("no suitable technician available", map[string]any{
		"request_id": request.ID,
		"category":   request.Category,
	})
}

// resolveSuggestions maps predictor ids onto active technicians, preserving
// the predictor's ranking and dropping unknown or inactive entries.
func (s *SelectorService) resolveSuggestions(ctx context.Context, ids []string) []domain.User {
	candidates := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if user.Role != domain.RoleTechnician || !user.Active {
			continue
		}
		candidates = append(candidates, *user)
	}
	return candidates
}

func (s *SelectorService) localCandidates(ctx context.Context, category domain.RequestCategory) ([]domain.User, error) {
	technicians, err := s.users.ListActiveTechnicians(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(technicians) == 0 {
		return nil, nil
	}

	matched := filterBySpecialization(technicians, category)
	if len(matched) == 0 {
		matched = technicians
	}

	counts, err := s.assignments.CountActiveByTechnician(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		loadI := domain.WorkloadPercentage(counts[matched[i].ID])
		loadJ := domain.WorkloadPercentage(counts[matched[j].ID])
		if loadI != loadJ {
			return loadI < loadJ
		}
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})
	return matched, nil
}

func filterBySpecialization(technicians []domain.User, category domain.RequestCategory) []domain.User {
	keywords := domain.CategoryKeywords[category]
	if len(keywords) == 0 {
		return nil
	}
	var matched []domain.User
	for _, technician := range technicians {
		if specializationMatches(technician.Specializations(), keywords) {
			matched = append(matched, technician)
		}
	}
	return matched
}

func specializationMatches(specializations, keywords []string) bool {
	for _, spec := range specializations {
		lowered := strings.ToLower(spec)
		for _, keyword := range keywords {
			if strings.Contains(lowered, keyword) {
				return true
			}
		}
	}
	return false
}
