package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/persistence"
)

// AssignmentFilter captures work assignment search parameters.
type AssignmentFilter struct {
	ServiceRequestID *string
	TechnicianID     *string
	Statuses         []domain.AssignmentStatus
	AssignedFrom     *time.Time
	AssignedTo       *time.Time
	CompletedFrom    *time.Time
	CompletedTo      *time.Time
	Limit            int
	Offset           int
}

// WorkAssignmentRepository encapsulates work assignment persistence.
type WorkAssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.WorkAssignment) error
	Update(ctx context.Context, assignment *domain.WorkAssignment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.WorkAssignment, error)
	ListByRequest(ctx context.Context, serviceRequestID string) ([]domain.WorkAssignment, error)
	ListWithFilter(ctx context.Context, filter AssignmentFilter) ([]domain.WorkAssignment, error)
	CountActiveOnDay(ctx context.Context, technicianID string, day time.Time) (int, error)
	CountActiveByTechnician(ctx context.Context) (map[string]int, error)
	LockTechnician(ctx context.Context, technicianID string) error
}

type workAssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewWorkAssignmentRepository instantiates repository.
func NewWorkAssignmentRepository(pool *pgxpool.Pool) WorkAssignmentRepository {
	return &workAssignmentRepository{pool: pool}
}

func (r *workAssignmentRepository) db(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.pool)
}

const assignmentColumns = `id, service_request_id, technician_id, status, assigned_date, scheduled_date,
               started_date, completed_date, notes, completion_notes, estimated_hours, actual_hours,
               created_at, updated_at`

func (r *workAssignmentRepository) Create(ctx context.Context, assignment *domain.WorkAssignment) error {
	const query = `
        INSERT INTO work_assignments (service_request_id, technician_id, status, assigned_date,
            scheduled_date, notes, estimated_hours)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.db(ctx).QueryRow(ctx, query,
		assignment.ServiceRequestID,
		assignment.TechnicianID,
		assignment.Status,
		assignment.AssignedDate,
		assignment.ScheduledDate,
		assignment.Notes,
		assignment.EstimatedHours,
	).Scan(&assignment.ID, &assignment.CreatedAt, &assignment.UpdatedAt)
}

func (r *workAssignmentRepository) Update(ctx context.Context, assignment *domain.WorkAssignment) error {
	const query = `
        UPDATE work_assignments SET status=$1, scheduled_date=$2, started_date=$3, completed_date=$4,
            notes=$5, completion_notes=$6, estimated_hours=$7, actual_hours=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.db(ctx).Exec(ctx, query,
		assignment.Status,
		assignment.ScheduledDate,
		assignment.StartedDate,
		assignment.CompletedDate,
		assignment.Notes,
		assignment.CompletionNotes,
		assignment.EstimatedHours,
		assignment.ActualHours,
		assignment.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes an assignment row. Administrative escape hatch only; the
// lifecycle never deletes.
func (r *workAssignmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db(ctx).Exec(ctx, `DELETE FROM work_assignments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *workAssignmentRepository) GetByID(ctx context.Context, id string) (*domain.WorkAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_assignments WHERE id=$1`, assignmentColumns)
	var assignment domain.WorkAssignment
	if err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&assignment.ID,
		&assignment.ServiceRequestID,
		&assignment.TechnicianID,
		&assignment.Status,
		&assignment.AssignedDate,
		&assignment.ScheduledDate,
		&assignment.StartedDate,
		&assignment.CompletedDate,
		&assignment.Notes,
		&assignment.CompletionNotes,
		&assignment.EstimatedHours,
		&assignment.ActualHours,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *workAssignmentRepository) ListByRequest(ctx context.Context, serviceRequestID string) ([]domain.WorkAssignment, error) {
	return r.ListWithFilter(ctx, AssignmentFilter{ServiceRequestID: &serviceRequestID, Limit: 1000})
}

func (r *workAssignmentRepository) ListWithFilter(ctx context.Context, filter AssignmentFilter) ([]domain.WorkAssignment, error) {
	base := fmt.Sprintf(`SELECT %s FROM work_assignments`, assignmentColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ServiceRequestID != nil {
		args = append(args, *filter.ServiceRequestID)
		clauses = append(clauses, fmt.Sprintf("service_request_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssignedFrom != nil {
		args = append(args, *filter.AssignedFrom)
		clauses = append(clauses, fmt.Sprintf("assigned_date >= $%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_date <= $%d", len(args)))
	}
	if filter.CompletedFrom != nil {
		args = append(args, *filter.CompletedFrom)
		clauses = append(clauses, fmt.Sprintf("completed_date >= $%d", len(args)))
	}
	if filter.CompletedTo != nil {
		args = append(args, *filter.CompletedTo)
		clauses = append(clauses, fmt.Sprintf("completed_date <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY assigned_date DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// CountActiveOnDay counts non-terminal assignments scheduled within the
// calendar day containing the given instant.
func (r *workAssignmentRepository) CountActiveOnDay(ctx context.Context, technicianID string, day time.Time) (int, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	const query = `
        SELECT COUNT(*) FROM work_assignments
        WHERE technician_id=$1
          AND status IN ($2,$3)
          AND scheduled_date >= $4 AND scheduled_date < $5`
	var count int
	err := r.db(ctx).QueryRow(ctx, query,
		technicianID,
		domain.AssignmentStatusAssigned,
		domain.AssignmentStatusInProgress,
		dayStart,
		dayEnd,
	).Scan(&count)
	return count, err
}

// CountActiveByTechnician returns active assignment counts keyed by
// technician id, for the workload aggregator.
func (r *workAssignmentRepository) CountActiveByTechnician(ctx context.Context) (map[string]int, error) {
	const query = `
        SELECT technician_id, COUNT(*) FROM work_assignments
        WHERE status IN ($1,$2)
        GROUP BY technician_id`
	rows, err := r.db(ctx).Query(ctx, query,
		domain.AssignmentStatusAssigned,
		domain.AssignmentStatusInProgress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var technicianID string
		var count int
		if err := rows.Scan(&technicianID, &count); err != nil {
			return nil, err
		}
		result[technicianID] = count
	}
	return result, rows.Err()
}

// LockTechnician takes a transaction-scoped advisory lock keyed on the
// technician id. Callers must already be inside a transaction; the lock
// serializes availability check plus insert for one technician.
func (r *workAssignmentRepository) LockTechnician(ctx context.Context, technicianID string) error {
	_, err := r.db(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, technicianID)
	return err
}

func scanAssignments(rows pgx.Rows) ([]domain.WorkAssignment, error) {
	var result []domain.WorkAssignment
	for rows.Next() {
		var assignment domain.WorkAssignment
		if err := rows.Scan(
			&assignment.ID,
			&assignment.ServiceRequestID,
			&assignment.TechnicianID,
			&assignment.Status,
			&assignment.AssignedDate,
			&assignment.ScheduledDate,
			&assignment.StartedDate,
			&assignment.CompletedDate,
			&assignment.Notes,
			&assignment.CompletionNotes,
			&assignment.EstimatedHours,
			&assignment.ActualHours,
			&assignment.CreatedAt,
			&assignment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}
