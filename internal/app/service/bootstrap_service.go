package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/common/security"
	"novalabs_hub/internal/domain/model"
	"novalabs_hub/internal/domain/repository"

	"github.com/google/uuid"
)

// BootstrapService creates the platform's first admin account. It runs
// from the createadmin CLI, outside the serving process, and checks its
// precondition explicitly: at most one bootstrap admin exists until an
// operator asks to replace it.
type BootstrapService struct {
	userRepo repository.UserRepository
}

func NewBootstrapService(userRepo repository.UserRepository) *BootstrapService {
	return &BootstrapService{userRepo: userRepo}
}

type BootstrapAdminRequest struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Institution *string
	// Replace demotes the current admin to instructor before creating
	// the new one. Without it, an existing admin makes this a no-op
	// failure rather than a second admin.
	Replace bool
}

func (s *BootstrapService) CreateAdmin(ctx context.Context, req BootstrapAdminRequest) (*model.User, error) {
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, common.Errorf("a valid email address is required: %w", common.ErrValidation)
	}
	if len(req.Password) < 8 {
		return nil, common.Errorf("password must be at least 8 characters: %w", common.ErrValidation)
	}
	if req.FirstName == "" || req.LastName == "" {
		return nil, common.Errorf("first and last name are required: %w", common.ErrValidation)
	}

	existing, err := s.userRepo.FindFirstByRole(ctx, model.RoleAdmin)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up existing admin: %w", err)
	}
	if existing != nil {
		if !req.Replace {
			return nil, common.Errorf("admin %s already exists: %w", existing.Email, common.ErrConflict)
		}
		if err := s.userRepo.UpdateRole(ctx, existing.ID, model.RoleInstructor); err != nil {
			return nil, fmt.Errorf("failed to demote existing admin: %w", err)
		}
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &model.User{
		ID:             uuid.NewString(),
		Email:          strings.ToLower(req.Email),
		HashedPassword: hashedPassword,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Institution:    req.Institution,
		Role:           model.RoleAdmin,
		Rank:           RankDabbler,
		IsActive:       true,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return nil, err
	}
	admin.HashedPassword = ""
	return admin, nil
}
