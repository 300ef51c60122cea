package service

import (
	"context"
	"strings"

	"hearth/internal/models"
	"hearth/internal/repository"
)

// UserService exposes the read-only user directory used for discovering
// conversation partners and resolving participant identities.
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetByID returns a single active user.
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Search finds active users whose username or display name matches the query,
// case-insensitively. Empty queries return no results rather than the whole
// directory.
func (s *UserService) Search(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.User{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.Search(ctx, query, limit, offset)
}
