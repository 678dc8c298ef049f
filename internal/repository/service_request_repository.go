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

// RequestFilter captures service request search parameters.
type RequestFilter struct {
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

// ServiceRequestRepository encapsulates service request persistence.
type ServiceRequestRepository interface {
	Create(ctx context.Context, request *domain.ServiceRequest) error
	Update(ctx context.Context, request *domain.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.ServiceRequest, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.ServiceRequest, error)
}

type serviceRequestRepository struct {
	pool *pgxpool.Pool
}

// NewServiceRequestRepository instantiates repository.
func NewServiceRequestRepository(pool *pgxpool.Pool) ServiceRequestRepository {
	return &serviceRequestRepository{pool: pool}
}

func (r *serviceRequestRepository) db(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.pool)
}

const requestColumns = `id, external_key, customer_id, title, description, category, priority, status,
               assigned_technician_id, current_assignment_id, scheduled_date, completed_date,
               resolution, actual_cost, actual_hours, created_at, updated_at`

func (r *serviceRequestRepository) Create(ctx context.Context, request *domain.ServiceRequest) error {
	const query = `
        INSERT INTO service_requests (external_key, customer_id, title, description, category, priority, status,
            assigned_technician_id, current_assignment_id, scheduled_date, resolution)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.db(ctx).QueryRow(ctx, query,
		request.ExternalKey,
		request.CustomerID,
		request.Title,
		request.Description,
		request.Category,
		request.Priority,
		request.Status,
		request.AssignedTechnicianID,
		request.CurrentAssignmentID,
		request.ScheduledDate,
		request.Resolution,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
}

func (r *serviceRequestRepository) Update(ctx context.Context, request *domain.ServiceRequest) error {
	const query = `
        UPDATE service_requests SET title=$1, description=$2, category=$3, priority=$4, status=$5,
            assigned_technician_id=$6, current_assignment_id=$7, scheduled_date=$8, completed_date=$9,
            resolution=$10, actual_cost=$11, actual_hours=$12, updated_at=NOW()
        WHERE id=$13`
	cmd, err := r.db(ctx).Exec(ctx, query,
		request.Title,
		request.Description,
		request.Category,
		request.Priority,
		request.Status,
		request.AssignedTechnicianID,
		request.CurrentAssignmentID,
		request.ScheduledDate,
		request.CompletedDate,
		request.Resolution,
		request.ActualCost,
		request.ActualHours,
		request.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *serviceRequestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE id=$1`, requestColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *serviceRequestRepository) GetByExternalKey(ctx context.Context, key string) (*domain.ServiceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE external_key=$1`, requestColumns)
	return r.fetchSingle(ctx, query, key)
}

func (r *serviceRequestRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.ServiceRequest, error) {
	var request domain.ServiceRequest
	if err := r.db(ctx).QueryRow(ctx, query, arg).Scan(
		&request.ID,
		&request.ExternalKey,
		&request.CustomerID,
		&request.Title,
		&request.Description,
		&request.Category,
		&request.Priority,
		&request.Status,
		&request.AssignedTechnicianID,
		&request.CurrentAssignmentID,
		&request.ScheduledDate,
		&request.CompletedDate,
		&request.Resolution,
		&request.ActualCost,
		&request.ActualHours,
		&request.CreatedAt,
		&request.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *serviceRequestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.ServiceRequest, error) {
	base := fmt.Sprintf(`SELECT %s FROM service_requests`, requestColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssignedTechnicianID != nil {
		args = append(args, *filter.AssignedTechnicianID)
		clauses = append(clauses, fmt.Sprintf("assigned_technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, priority := range filter.Priorities {
			args = append(args, priority)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ServiceRequest
	for rows.Next() {
		var request domain.ServiceRequest
		if err := rows.Scan(
			&request.ID,
			&request.ExternalKey,
			&request.CustomerID,
			&request.Title,
			&request.Description,
			&request.Category,
			&request.Priority,
			&request.Status,
			&request.AssignedTechnicianID,
			&request.CurrentAssignmentID,
			&request.ScheduledDate,
			&request.CompletedDate,
			&request.Resolution,
			&request.ActualCost,
			&request.ActualHours,
			&request.CreatedAt,
			&request.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}
