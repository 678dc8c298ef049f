package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// DirectoryService manages the technician directory.
type DirectoryService struct {
	users repository.UserRepository
}

// NewDirectoryService creates the service.
func NewDirectoryService(userRepo repository.UserRepository) *DirectoryService {
	return &DirectoryService{users: userRepo}
}

// TechnicianInput describes a technician record.
type TechnicianInput struct {
	Name            string
	Email           string
	Specializations []string
}

// CreateTechnician registers a new technician.
func (s *DirectoryService) CreateTechnician(ctx context.Context, input TechnicianInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	if name == "" || email == "" {
		return nil, apperrors.NewValidationError("name and email required", nil)
	}
	user := &domain.User{
		Name:       name,
		Email:      email,
		Role:       domain.RoleTechnician,
		Active:     true,
		Technician: &domain.TechnicianProfile{Specializations: input.Specializations},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// GetTechnician fetches a technician by id.
func (s *DirectoryService) GetTechnician(ctx context.Context, id string) (*domain.User, error) {
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

// UpdateTechnician applies partial updates to a technician record.
func (s *DirectoryService) UpdateTechnician(ctx context.Context, id string, name, email *string, active *bool, specializations []string) (*domain.User, error) {
	user, err := s.GetTechnician(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil && strings.TrimSpace(*name) != "" {
		user.Name = strings.TrimSpace(*name)
	}
	if email != nil && strings.TrimSpace(*email) != "" {
		user.Email = strings.TrimSpace(*email)
	}
	if active != nil {
		user.Active = *active
	}
	if specializations != nil {
		user.Technician = &domain.TechnicianProfile{Specializations: specializations}
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListActiveTechnicians returns the active technician directory.
func (s *DirectoryService) ListActiveTechnicians(ctx context.Context) ([]domain.User, error) {
	list, err := s.users.ListActiveTechnicians(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}
