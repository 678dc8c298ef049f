package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

const workloadSummaryCacheKey = "dispatch:workload:summary"

// TechnicianWorkload summarizes one technician's current load.
type TechnicianWorkload struct {
	TechnicianID           string               `json:"technician_id"`
	Name                   string               `json:"name"`
	ActiveAssignments      int                  `json:"active_assignments"`
	WorkloadPercentage     float64              `json:"workload_percentage"`
	Level                  domain.WorkloadLevel `json:"level"`
	AverageCompletionHours float64              `json:"average_completion_hours"`
}

// AssignmentSummary is a UI-facing line in the detailed workload view.
type AssignmentSummary struct {
	AssignmentID string                  `json:"assignment_id"`
	RequestTitle string                  `json:"request_title"`
	Status       domain.AssignmentStatus `json:"status"`
	Overdue      bool                    `json:"overdue"`
}

// TechnicianWorkloadDetails extends the summary with recent assignments.
type TechnicianWorkloadDetails struct {
	TechnicianWorkload
	Specializations   []string            `json:"specializations"`
	RecentAssignments []AssignmentSummary `json:"recent_assignments"`
}

// PerformanceMetrics aggregates historical completion statistics.
type PerformanceMetrics struct {
	TechnicianID           *string `json:"technician_id,omitempty"`
	CompletedCount         int     `json:"completed_count"`
	CancelledCount         int     `json:"cancelled_count"`
	AverageCompletionHours float64 `json:"average_completion_hours"`
	OnTimeRate             float64 `json:"on_time_rate"`
}

// WorkloadService computes per-technician load projections. Reads tolerate
// eventual consistency, so the summary is served from a shared TTL cache and
// recomputed on miss.
type WorkloadService struct {
	users       repository.UserRepository
	assignments repository.WorkAssignmentRepository
	requests    repository.ServiceRequestRepository
	cache       *persistence.Redis
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// WorkloadDependencies bundles collaborators.
type WorkloadDependencies struct {
	UserRepo       repository.UserRepository
	AssignmentRepo repository.WorkAssignmentRepository
	RequestRepo    repository.ServiceRequestRepository
	Cache          *persistence.Redis
	CacheTTL       time.Duration
	Logger         *zap.Logger
}

// NewWorkloadService creates the service.
func NewWorkloadService(deps WorkloadDependencies) *WorkloadService {
	return &WorkloadService{
		users:       deps.UserRepo,
		assignments: deps.AssignmentRepo,
		requests:    deps.RequestRepo,
		cache:       deps.Cache,
		cacheTTL:    deps.CacheTTL,
		logger:      deps.Logger,
	}
}

// RegisterHandlers subscribes cache invalidation to lifecycle events.
func (s *WorkloadService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	invalidate := func(ctx context.Context, _ events.Event) error {
		s.invalidateSummary(ctx)
		return nil
	}
	dispatcher.Subscribe(events.EventAssignmentCreated, invalidate)
	dispatcher.Subscribe(events.EventAssignmentStarted, invalidate)
	dispatcher.Subscribe(events.EventAssignmentCompleted, invalidate)
	dispatcher.Subscribe(events.EventAssignmentCancelled, invalidate)
}

// GetWorkloadSummary returns the load of every active technician, sorted by
// name for stable output.
func (s *WorkloadService) GetWorkloadSummary(ctx context.Context) ([]TechnicianWorkload, error) {
	if cached, ok := s.cachedSummary(ctx); ok {
		return cached, nil
	}

	technicians, err := s.users.ListActiveTechnicians(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts, err := s.assignments.CountActiveByTechnician(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	summary := make([]TechnicianWorkload, 0, len(technicians))
	for _, technician := range technicians {
		active := counts[technician.ID]
		avg, err := s.averageCompletionHours(ctx, technician.ID)
		if err != nil {
			return nil, err
		}
		summary = append(summary, TechnicianWorkload{
			TechnicianID:           technician.ID,
			Name:                   technician.Name,
			ActiveAssignments:      active,
			WorkloadPercentage:     domain.WorkloadPercentage(active),
			Level:                  domain.ClassifyWorkload(active),
			AverageCompletionHours: avg,
		})
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Name < summary[j].Name })

	s.storeSummary(ctx, summary)
	return summary, nil
}

// GetTechnicianWorkloadDetails returns the detailed view for one technician.
func (s *WorkloadService) GetTechnicianWorkloadDetails(ctx context.Context, technicianID string) (*TechnicianWorkloadDetails, error) {
	technician, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, apperrors.MapError(err)
	}
	if technician.Role != domain.RoleTechnician {
		return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
	}

	// The active count comes from the full table, not the recent window,
	// so technicians with long histories are not under-reported.
	counts, err := s.assignments.CountActiveByTechnician(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	active := counts[technicianID]

	recent, err := s.assignments.ListWithFilter(ctx, repository.AssignmentFilter{
		TechnicianID: &technicianID,
		Limit:        20,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := time.Now()
	summaries := make([]AssignmentSummary, 0, len(recent))
	for i := range recent {
		assignment := &recent[i]
		title := ""
		if request, err := s.requests.GetByID(ctx, assignment.ServiceRequestID); err == nil {
			title = request.Title
		}
		summaries = append(summaries, AssignmentSummary{
			AssignmentID: assignment.ID,
			RequestTitle: title,
			Status:       assignment.Status,
			Overdue:      assignment.IsOverdue(now),
		})
	}

	avg, err := s.averageCompletionHours(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	return &TechnicianWorkloadDetails{
		TechnicianWorkload: TechnicianWorkload{
			TechnicianID:           technician.ID,
			Name:                   technician.Name,
			ActiveAssignments:      active,
			WorkloadPercentage:     domain.WorkloadPercentage(active),
			Level:                  domain.ClassifyWorkload(active),
			AverageCompletionHours: avg,
		},
		Specializations:   technician.Specializations(),
		RecentAssignments: summaries,
	}, nil
}

// GetPerformanceMetrics aggregates completion statistics, optionally scoped
// to one technician and a completion-date window.
func (s *WorkloadService) GetPerformanceMetrics(ctx context.Context, technicianID *string, start, end *time.Time) (*PerformanceMetrics, error) {
	completed, err := s.assignments.ListWithFilter(ctx, repository.AssignmentFilter{
		TechnicianID:  technicianID,
		Statuses:      []domain.AssignmentStatus{domain.AssignmentStatusCompleted},
		CompletedFrom: start,
		CompletedTo:   end,
		Limit:         1000,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	cancelled, err := s.assignments.ListWithFilter(ctx, repository.AssignmentFilter{
		TechnicianID: technicianID,
		Statuses:     []domain.AssignmentStatus{domain.AssignmentStatusCancelled},
		AssignedFrom: start,
		AssignedTo:   end,
		Limit:        1000,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	metrics := &PerformanceMetrics{
		TechnicianID:           technicianID,
		CompletedCount:         len(completed),
		CancelledCount:         len(cancelled),
		AverageCompletionHours: meanCompletionHours(completed),
	}

	onTime, withSchedule := 0, 0
	for i := range completed {
		assignment := &completed[i]
		if assignment.ScheduledDate == nil || assignment.CompletedDate == nil {
			continue
		}
		withSchedule++
		if !assignment.CompletedDate.After(assignment.ScheduledDate.Add(24 * time.Hour)) {
			onTime++
		}
	}
	if withSchedule > 0 {
		metrics.OnTimeRate = float64(onTime) / float64(withSchedule)
	}
	return metrics, nil
}

func (s *WorkloadService) averageCompletionHours(ctx context.Context, technicianID string) (float64, error) {
	completed, err := s.assignments.ListWithFilter(ctx, repository.AssignmentFilter{
		TechnicianID: &technicianID,
		Statuses:     []domain.AssignmentStatus{domain.AssignmentStatusCompleted},
		Limit:        500,
	})
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return meanCompletionHours(completed), nil
}

func meanCompletionHours(completed []domain.WorkAssignment) float64 {
	total, counted := 0.0, 0
	for i := range completed {
		assignment := &completed[i]
		if assignment.StartedDate == nil || assignment.CompletedDate == nil {
			continue
		}
		total += assignment.CompletedDate.Sub(*assignment.StartedDate).Hours()
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

func (s *WorkloadService) cachedSummary(ctx context.Context) ([]TechnicianWorkload, bool) {
	if s.cache == nil || s.cache.Client == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := s.cache.Client.Get(ctx, workloadSummaryCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var summary []TechnicianWorkload
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false
	}
	return summary, true
}

func (s *WorkloadService) storeSummary(ctx context.Context, summary []TechnicianWorkload) {
	if s.cache == nil || s.cache.Client == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Client.Set(ctx, workloadSummaryCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("workload cache write failed", zap.Error(err))
	}
}

func (s *WorkloadService) invalidateSummary(ctx context.Context) {
	if s.cache == nil || s.cache.Client == nil {
		return
	}
	if err := s.cache.Client.Del(ctx, workloadSummaryCacheKey).Err(); err != nil {
		s.logger.Debug("workload cache invalidation failed", zap.Error(err))
	}
}
