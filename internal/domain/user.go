package domain

import (
	"time"
)

// User is an athlete. Identity comes from an external provider; the rest of
// the record is the profile used as generation input.
type User struct {
	ID             string `json:"id"`
	Provider       string `json:"provider"`
	ProviderUserID string `json:"providerUserId"`

	DisplayName *string `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
	Gender      *string `json:"gender"`
	Birthdate   *string `json:"birthdate"` // ISO date; unparsable values are kept as-is

	HeightCm           *float64 `json:"heightCm"`
	WeightKg           *float64 `json:"weightKg"`
	WeeklyTrainingDays *int     `json:"weeklyTrainingDays"`

	BestRaceDistance    *string `json:"bestRaceDistance"`
	BestRaceTimeSeconds *int    `json:"bestRaceTimeSeconds"`
	Timezone            *string `json:"timezone"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
}

// Identity is what the identity provider hands us after a successful login.
type Identity struct {
	Provider       string
	ProviderUserID string
	DisplayName    *string
	AvatarURL      *string
}

// ProfileUpdate is a partial profile update; nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName         *string  `json:"displayName"`
	AvatarURL           *string  `json:"avatarUrl"`
	Gender              *string  `json:"gender"`
	Birthdate           *string  `json:"birthdate"`
	HeightCm            *float64 `json:"heightCm"`
	WeightKg            *float64 `json:"weightKg"`
	WeeklyTrainingDays  *int     `json:"weeklyTrainingDays"`
	BestRaceDistance    *string  `json:"bestRaceDistance"`
	BestRaceTimeSeconds *int     `json:"bestRaceTimeSeconds"`
	Timezone            *string  `json:"timezone"`
}

// Apply copies the non-nil fields of p onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.DisplayName != nil {
		u.DisplayName = p.DisplayName
	}
	if p.AvatarURL != nil {
		u.AvatarURL = p.AvatarURL
	}
	if p.Gender != nil {
		u.Gender = p.Gender
	}
	if p.Birthdate != nil {
		u.Birthdate = p.Birthdate
	}
	if p.HeightCm != nil {
		u.HeightCm = p.HeightCm
	}
	if p.WeightKg != nil {
		u.WeightKg = p.WeightKg
	}
	if p.WeeklyTrainingDays != nil {
		u.WeeklyTrainingDays = p.WeeklyTrainingDays
	}
	if p.BestRaceDistance != nil {
		u.BestRaceDistance = p.BestRaceDistance
	}
	if p.BestRaceTimeSeconds != nil {
		u.BestRaceTimeSeconds = p.BestRaceTimeSeconds
	}
	if p.Timezone != nil {
		u.Timezone = p.Timezone
	}
}
