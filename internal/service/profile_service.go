package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

// --- Service Interface ---
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error)
}

type profileService struct {
	users repository.UserRepository
}

// NewProfileService creates a new instance of profileService.
func NewProfileService(users repository.UserRepository) ProfileService {
	return &profileService{users: users}
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfile applies a partial update; nil fields are left untouched.
func (s *profileService) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	if err := validateProfile(update); err != nil {
		return nil, err
	}
	u, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func validateProfile(p domain.ProfileUpdate) error {
	if d := p.WeeklyTrainingDays; d != nil && (*d < 1 || *d > 7) {
		return fmt.Errorf("%w: weeklyTrainingDays must be between 1 and 7", domain.ErrInvalidInput)
	}
	if h := p.HeightCm; h != nil && *h <= 0 {
		return fmt.Errorf("%w: heightCm must be positive", domain.ErrInvalidInput)
	}
	if w := p.WeightKg; w != nil && *w <= 0 {
		return fmt.Errorf("%w: weightKg must be positive", domain.ErrInvalidInput)
	}
	if t := p.BestRaceTimeSeconds; t != nil && *t <= 0 {
		return fmt.Errorf("%w: bestRaceTimeSeconds must be positive", domain.ErrInvalidInput)
	}
	if b := p.Birthdate; b != nil && strings.TrimSpace(*b) != "" {
		if _, err := domain.ParseDate(*b); err != nil {
			return fmt.Errorf("%w: birthdate must be a calendar date (YYYY-MM-DD)", domain.ErrInvalidInput)
		}
	}
	return nil
}
