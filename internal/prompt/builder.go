// Package prompt composes the generation request sent to the plan provider.
// Build is a pure function of its inputs and the injected clock.
package prompt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pbassistant/backend/internal/domain"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "deepseek-chat"

//go:embed plan_schema.json
var planSchema []byte

// Schema returns the compacted output schema every plan response must satisfy.
func Schema() json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, planSchema); err != nil {
		// The embedded document is static; a failure here is a build defect.
		panic(fmt.Sprintf("prompt: invalid embedded schema: %v", err))
	}
	return buf.Bytes()
}

const (
	systemPrompt = "You are PB Assistant, an expert running coach. Respond ONLY with JSON strictly matching the provided schema. Avoid commentary."
	persona      = "You are PB Assistant, an elite running coach focused on helping athletes achieve a personal best."
)

var instructions = []string{
	"Generate a periodised plan that balances intensity, recovery, and progressive overload.",
	"Respect the athlete's available training days and highlight key workouts each week.",
	"Return JSON matching the provided schema. Do not include markdown or additional prose.",
	"Populate the confidence score between 0 and 1 based on how realistic the target appears.",
	"Populate mileage values in kilometres. Include pace using min/km or perceived effort terms.",
}

// Message is one chat message in provider wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProfileSummary is the athlete profile as seen by the provider.
type ProfileSummary struct {
	ID                  string   `json:"id"`
	DisplayName         *string  `json:"displayName"`
	Gender              *string  `json:"gender"`
	Age                 *int     `json:"age"`
	HeightCm            *float64 `json:"heightCm"`
	WeightKg            *float64 `json:"weightKg"`
	WeeklyTrainingDays  *int     `json:"weeklyTrainingDays"`
	Timezone            *string  `json:"timezone"`
	BestRaceDistance    *string  `json:"bestRaceDistance"`
	BestRaceTimeSeconds *int     `json:"bestRaceTimeSeconds"`
}

type Constraints struct {
	WeeklyTrainingDays *int     `json:"weeklyTrainingDays"`
	LongRunDay         *string  `json:"longRunDay"`
	AvailableEquipment []string `json:"availableEquipment"`
}

// Goal is the normalised race goal.
type Goal struct {
	RaceDate                string      `json:"raceDate"`
	RaceDistance            string      `json:"raceDistance"`
	TargetFinishTimeSeconds *int        `json:"targetFinishTimeSeconds"`
	Description             *string     `json:"description"`
	Constraints             Constraints `json:"constraints"`
}

// Context is the snapshot persisted with the plan for audit and reproduction.
type Context struct {
	Profile ProfileSummary  `json:"profile"`
	Goal    Goal            `json:"goal"`
	Schema  json.RawMessage `json:"schema"`
}

// Package is a fully composed generation request.
type Package struct {
	Model         string
	Messages      []Message
	Schema        json.RawMessage
	Context       Context
	PromptContext json.RawMessage // Context, serialised
}

type userContent struct {
	Persona        string          `json:"persona"`
	Instructions   []string        `json:"instructions"`
	AthleteProfile ProfileSummary  `json:"athleteProfile"`
	Goal           Goal            `json:"goal"`
	OutputSchema   json.RawMessage `json:"outputSchema"`
}

// Builder composes prompt packages.
type Builder struct {
	Model string
	Now   func() time.Time
}

func NewBuilder(model string, now func() time.Time) *Builder {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{Model: model, Now: now}
}

// ValidateGoal checks the fields required before a draft may be created.
func ValidateGoal(goal domain.GoalRequest) error {
	if strings.TrimSpace(goal.RaceDistance) == "" {
		return fmt.Errorf("%w: raceDistance is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(goal.RaceDate) == "" {
		return fmt.Errorf("%w: raceDate is required", domain.ErrInvalidInput)
	}
	if _, err := domain.ParseDate(goal.RaceDate); err != nil {
		return fmt.Errorf("%w: raceDate must be a calendar date (YYYY-MM-DD)", domain.ErrInvalidInput)
	}
	if t := goal.TargetTime(); t != nil && *t <= 0 {
		return fmt.Errorf("%w: targetFinishTimeSeconds must be positive", domain.ErrInvalidInput)
	}
	if d := goal.WeeklyTrainingDays; d != nil && (*d < 1 || *d > 7) {
		return fmt.Errorf("%w: weeklyTrainingDays must be between 1 and 7", domain.ErrInvalidInput)
	}
	return nil
}

// Build composes the request for user and goal.
func (b *Builder) Build(user *domain.User, goal domain.GoalRequest) (*Package, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return nil, fmt.Errorf("%w: user context is required", domain.ErrInvalidInput)
	}
	if err := ValidateGoal(goal); err != nil {
		return nil, err
	}

	profile := b.summariseProfile(user)
	normalised := normaliseGoal(goal, user)
	schema := Schema()

	content, err := json.MarshalIndent(userContent{
		Persona:        persona,
		Instructions:   instructions,
		AthleteProfile: profile,
		Goal:           normalised,
		OutputSchema:   schema,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}

	pctx := Context{Profile: profile, Goal: normalised, Schema: schema}
	rawCtx, err := json.Marshal(pctx)
	if err != nil {
		return nil, fmt.Errorf("encode prompt context: %w", err)
	}

	return &Package{
		Model: b.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(content)},
		},
		Schema:        schema,
		Context:       pctx,
		PromptContext: rawCtx,
	}, nil
}

func (b *Builder) summariseProfile(u *domain.User) ProfileSummary {
	return ProfileSummary{
		ID:                  u.ID,
		DisplayName:         u.DisplayName,
		Gender:              u.Gender,
		Age:                 AgeAt(u.Birthdate, b.now()),
		HeightCm:            u.HeightCm,
		WeightKg:            u.WeightKg,
		WeeklyTrainingDays:  u.WeeklyTrainingDays,
		Timezone:            u.Timezone,
		BestRaceDistance:    u.BestRaceDistance,
		BestRaceTimeSeconds: u.BestRaceTimeSeconds,
	}
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func normaliseGoal(g domain.GoalRequest, u *domain.User) Goal {
	days := g.WeeklyTrainingDays
	if days == nil {
		days = u.WeeklyTrainingDays
	}
	date := strings.TrimSpace(g.RaceDate)
	if t, err := domain.ParseDate(date); err == nil {
		date = t.Format(domain.DateLayout)
	}
	return Goal{
		RaceDate:                date,
		RaceDistance:            strings.TrimSpace(g.RaceDistance),
		TargetFinishTimeSeconds: g.TargetTime(),
		Description:             g.Description,
		Constraints: Constraints{
			WeeklyTrainingDays: days,
			LongRunDay:         g.LongRunDay,
			AvailableEquipment: g.AvailableEquipment,
		},
	}
}

// AgeAt returns whole calendar years elapsed between birthdate and now.
// A missing, unparsable or future birthdate yields nil.
func AgeAt(birthdate *string, now time.Time) *int {
	if birthdate == nil {
		return nil
	}
	dob, err := domain.ParseDate(*birthdate)
	if err != nil {
		return nil
	}
	now = now.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return nil
	}
	return &age
}
