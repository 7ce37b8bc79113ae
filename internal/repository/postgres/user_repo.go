package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository"
)

type userRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserRepository creates a gorm-backed UserRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Persistence("get user", err)
	}
	return rowToUser(row), nil
}

func (r *userRepository) UpsertIdentity(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	if strings.TrimSpace(identity.Provider) == "" || strings.TrimSpace(identity.ProviderUserID) == "" {
		return nil, fmt.Errorf("%w: provider and provider user id are required", domain.ErrInvalidInput)
	}
	now := r.now()
	row := userRow{
		ID:             uuid.NewString(),
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		DisplayName:    identity.DisplayName,
		AvatarURL:      identity.AvatarURL,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastLoginAt:    &now,
	}

	updates := []string{"last_login_at", "updated_at"}
	if identity.DisplayName != nil {
		updates = append(updates, "display_name")
	}
	if identity.AvatarURL != nil {
		updates = append(updates, "avatar_url")
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_user_id"}},
			DoUpdates: clause.AssignmentColumns(updates),
		}).
		Create(&row).Error
	if err != nil {
		return nil, repository.Persistence("upsert user", err)
	}

	var saved userRow
	err = r.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", identity.Provider, identity.ProviderUserID).
		First(&saved).Error
	if err != nil {
		return nil, repository.Persistence("reload user", err)
	}
	return rowToUser(saved), nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, p domain.ProfileUpdate) (*domain.User, error) {
	values := map[string]interface{}{"updated_at": r.now()}
	set := func(col string, ok bool, v interface{}) {
		if ok {
			values[col] = v
		}
	}
	set("display_name", p.DisplayName != nil, p.DisplayName)
	set("avatar_url", p.AvatarURL != nil, p.AvatarURL)
	set("gender", p.Gender != nil, p.Gender)
	set("birthdate", p.Birthdate != nil, p.Birthdate)
	set("height_cm", p.HeightCm != nil, p.HeightCm)
	set("weight_kg", p.WeightKg != nil, p.WeightKg)
	set("weekly_training_days", p.WeeklyTrainingDays != nil, p.WeeklyTrainingDays)
	set("best_race_distance", p.BestRaceDistance != nil, p.BestRaceDistance)
	set("best_race_time_seconds", p.BestRaceTimeSeconds != nil, p.BestRaceTimeSeconds)
	set("timezone", p.Timezone != nil, p.Timezone)

	res := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return nil, repository.Persistence("update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func rowToUser(row userRow) *domain.User {
	u := &domain.User{
		ID:                  row.ID,
		Provider:            row.Provider,
		ProviderUserID:      row.ProviderUserID,
		DisplayName:         row.DisplayName,
		AvatarURL:           row.AvatarURL,
		Gender:              row.Gender,
		Birthdate:           row.Birthdate,
		HeightCm:            row.HeightCm,
		WeightKg:            row.WeightKg,
		WeeklyTrainingDays:  row.WeeklyTrainingDays,
		BestRaceDistance:    row.BestRaceDistance,
		BestRaceTimeSeconds: row.BestRaceTimeSeconds,
		Timezone:            row.Timezone,
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
	if row.LastLoginAt != nil {
		t := row.LastLoginAt.UTC()
		u.LastLoginAt = &t
	}
	return u
}
