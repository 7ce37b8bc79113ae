package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository/memory"
)

func TestProfileService(t *testing.T) {
	users := memory.NewUserRepository()
	users.Put(domain.User{ID: "u-1", DisplayName: strPtr("Runner"), WeightKg: f64Ptr(70)})
	svc := NewProfileService(users)
	ctx := context.Background()

	u, err := svc.UpdateProfile(ctx, "u-1", domain.ProfileUpdate{
		HeightCm:           f64Ptr(178),
		WeeklyTrainingDays: intPtr(5),
		Birthdate:          strPtr("1990-06-15"),
	})
	require.NoError(t, err)
	assert.Equal(t, 178.0, *u.HeightCm)
	assert.Equal(t, 70.0, *u.WeightKg, "untouched fields survive")
	assert.Equal(t, "Runner", *u.DisplayName)

	got, err := svc.GetProfile(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 5, *got.WeeklyTrainingDays)

	_, err = svc.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.UpdateProfile(ctx, "missing", domain.ProfileUpdate{Timezone: strPtr("Asia/Shanghai")})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestProfileServiceValidation(t *testing.T) {
	svc := NewProfileService(memory.NewUserRepository())
	tests := []struct {
		name string
		in   domain.ProfileUpdate
	}{
		{"training days", domain.ProfileUpdate{WeeklyTrainingDays: intPtr(8)}},
		{"height", domain.ProfileUpdate{HeightCm: f64Ptr(0)}},
		{"weight", domain.ProfileUpdate{WeightKg: f64Ptr(-1)}},
		{"best time", domain.ProfileUpdate{BestRaceTimeSeconds: intPtr(0)}},
		{"birthdate", domain.ProfileUpdate{Birthdate: strPtr("15/06/1990")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(context.Background(), "u-1", tt.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
