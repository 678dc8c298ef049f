package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

// In-memory collaborators backing the service tests. They mirror the
// repository contracts, including pgx.ErrNoRows on missing rows.

type fakeTxRunner struct{}

func (fakeTxRunner) InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && user.Active != *filter.Active {
			continue
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *fakeUserRepo) ListActiveTechnicians(ctx context.Context) ([]domain.User, error) {
	role := domain.RoleTechnician
	active := true
	return r.List(ctx, repository.UserFilter{Role: &role, Active: &active})
}

func (r *fakeUserRepo) addTechnician(name string, specializations ...string) domain.User {
	user := domain.User{
		Name:       name,
		Email:      strings.ToLower(name) + "@example.com",
		Role:       domain.RoleTechnician,
		Active:     true,
		Technician: &domain.TechnicianProfile{Specializations: specializations},
	}
	_ = r.Create(context.Background(), &user)
	return user
}

func (r *fakeUserRepo) addCustomer(name string) domain.User {
	user := domain.User{
		Name:   name,
		Email:  strings.ToLower(name) + "@example.com",
		Role:   domain.RoleCustomer,
		Active: true,
	}
	_ = r.Create(context.Background(), &user)
	return user
}

type fakeRequestRepo struct {
	mu       sync.Mutex
	seq      int
	requests map[string]domain.ServiceRequest
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: make(map[string]domain.ServiceRequest)}
}

func (r *fakeRequestRepo) Create(_ context.Context, request *domain.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	request.ID = fmt.Sprintf("req-%d", r.seq)
	request.CreatedAt = time.Now()
	request.UpdatedAt = request.CreatedAt
	r.requests[request.ID] = *request
	return nil
}

func (r *fakeRequestRepo) Update(_ context.Context, request *domain.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[request.ID]; !ok {
		return pgx.ErrNoRows
	}
	request.UpdatedAt = time.Now()
	r.requests[request.ID] = *request
	return nil
}

func (r *fakeRequestRepo) GetByID(_ context.Context, id string) (*domain.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := request
	return &copied, nil
}

func (r *fakeRequestRepo) GetByExternalKey(_ context.Context, key string) (*domain.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, request := range r.requests {
		if request.ExternalKey == key {
			copied := request
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRequestRepo) ListWithFilter(_ context.Context, filter repository.RequestFilter) ([]domain.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.ServiceRequest
	for _, request := range r.requests {
		if filter.CustomerID != nil && request.CustomerID != *filter.CustomerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsRequestStatus(filter.Statuses, request.Status) {
			continue
		}
		result = append(result, request)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeRequestRepo) addPending(customerID string, scheduled *time.Time) domain.ServiceRequest {
	request := domain.ServiceRequest{
		ExternalKey:   fmt.Sprintf("REQ-%d", r.seq+1),
		CustomerID:    customerID,
		Title:         "broken workstation",
		Category:      domain.CategoryHardware,
		Priority:      domain.RequestPriorityMedium,
		Status:        domain.RequestStatusPending,
		ScheduledDate: scheduled,
	}
	_ = r.Create(context.Background(), &request)
	return request
}

func containsRequestStatus(statuses []domain.RequestStatus, status domain.RequestStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeAssignmentRepo struct {
	mu          sync.Mutex
	seq         int
	assignments map[string]domain.WorkAssignment
	lockCalls   []string
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{assignments: make(map[string]domain.WorkAssignment)}
}

func (r *fakeAssignmentRepo) Create(_ context.Context, assignment *domain.WorkAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	assignment.ID = fmt.Sprintf("wa-%d", r.seq)
	assignment.CreatedAt = time.Now()
	assignment.UpdatedAt = assignment.CreatedAt
	r.assignments[assignment.ID] = *assignment
	return nil
}

func (r *fakeAssignmentRepo) Update(_ context.Context, assignment *domain.WorkAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[assignment.ID]; !ok {
		return pgx.ErrNoRows
	}
	assignment.UpdatedAt = time.Now()
	r.assignments[assignment.ID] = *assignment
	return nil
}

func (r *fakeAssignmentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.assignments, id)
	return nil
}

func (r *fakeAssignmentRepo) GetByID(_ context.Context, id string) (*domain.WorkAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignment, ok := r.assignments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := assignment
	return &copied, nil
}

func (r *fakeAssignmentRepo) ListByRequest(ctx context.Context, serviceRequestID string) ([]domain.WorkAssignment, error) {
	return r.ListWithFilter(ctx, repository.AssignmentFilter{ServiceRequestID: &serviceRequestID, Limit: 1000})
}

func (r *fakeAssignmentRepo) ListWithFilter(_ context.Context, filter repository.AssignmentFilter) ([]domain.WorkAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.WorkAssignment
	for _, assignment := range r.assignments {
		if filter.ServiceRequestID != nil && assignment.ServiceRequestID != *filter.ServiceRequestID {
			continue
		}
		if filter.TechnicianID != nil && assignment.TechnicianID != *filter.TechnicianID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsAssignmentStatus(filter.Statuses, assignment.Status) {
			continue
		}
		if filter.AssignedFrom != nil && assignment.AssignedDate.Before(*filter.AssignedFrom) {
			continue
		}
		if filter.AssignedTo != nil && assignment.AssignedDate.After(*filter.AssignedTo) {
			continue
		}
		if filter.CompletedFrom != nil && (assignment.CompletedDate == nil || assignment.CompletedDate.Before(*filter.CompletedFrom)) {
			continue
		}
		if filter.CompletedTo != nil && (assignment.CompletedDate == nil || assignment.CompletedDate.After(*filter.CompletedTo)) {
			continue
		}
		result = append(result, assignment)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssignedDate.After(result[j].AssignedDate) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *fakeAssignmentRepo) CountActiveOnDay(_ context.Context, technicianID string, day time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	count := 0
	for _, assignment := range r.assignments {
		if assignment.TechnicianID != technicianID || assignment.Status.IsTerminal() {
			continue
		}
		if assignment.ScheduledDate == nil {
			continue
		}
		if assignment.ScheduledDate.Before(dayStart) || !assignment.ScheduledDate.Before(dayEnd) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeAssignmentRepo) CountActiveByTechnician(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, assignment := range r.assignments {
		if assignment.Status.IsTerminal() {
			continue
		}
		counts[assignment.TechnicianID]++
	}
	return counts, nil
}

func (r *fakeAssignmentRepo) LockTechnician(_ context.Context, technicianID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockCalls = append(r.lockCalls, technicianID)
	return nil
}

func containsAssignmentStatus(statuses []domain.AssignmentStatus, status domain.AssignmentStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakePredictor struct {
	suggestions []string
	suggestErr  error
	category    domain.RequestCategory
	priority    domain.RequestPriority
	analyzed    []string
}

func (p *fakePredictor) SuggestTechnicians(context.Context, domain.RequestCategory, domain.RequestPriority) ([]string, error) {
	return p.suggestions, p.suggestErr
}

func (p *fakePredictor) PredictCategory(context.Context, string) (domain.RequestCategory, error) {
	return p.category, nil
}

func (p *fakePredictor) PredictPriority(context.Context, string) (domain.RequestPriority, error) {
	return p.priority, nil
}

func (p *fakePredictor) TriggerReportAnalysis(_ context.Context, requestID string) error {
	p.analyzed = append(p.analyzed, requestID)
	return nil
}

type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) eventsOfType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var matched []events.Event
	for _, event := range d.published {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}
