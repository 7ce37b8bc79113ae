package generation

import (
	"encoding/json"
	"time"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/prompt"
)

const (
	mockWeeks      = 4
	mockModel      = "mock-model"
	mockDisclaimer = "Mock plan generated without contacting the provider."
)

type mockSession struct {
	offset      int // days after the Monday of the week
	workoutType string
	description string
	distanceKm  float64
	targetPace  string
	effort      string
	notes       string
}

// Monday, Wednesday, Friday, Sunday.
var mockSessions = []mockSession{
	{0, "Easy Run", "Easy effort run for aerobic base.", 6, "5:30-5:45 min/km", "Easy", ""},
	{2, "Quality Session", "Threshold intervals to build speed endurance.", 10, "4:45 min/km", "Hard", ""},
	{4, "Easy Run", "Easy effort run for aerobic base.", 6, "5:30-5:45 min/km", "Easy", ""},
	{6, "Long Run", "Long aerobic run building endurance.", 18, "5:30-5:45 min/km", "Easy", "Fuel well and prioritize recovery."},
}

// MockPlan builds the deterministic offline plan for goal. The last week is
// the race week; an unparsable race date anchors the plan on now.
func MockPlan(goal prompt.Goal, model string, now time.Time) domain.PlanPayload {
	race, err := domain.ParseDate(goal.RaceDate)
	if err != nil {
		race = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if model == "" {
		model = mockModel
	}

	weeks := make([]domain.PlanWeek, 0, mockWeeks)
	for n := 1; n <= mockWeeks; n++ {
		monday := mondayOf(race.AddDate(0, 0, -(mockWeeks-n)*7))
		focus := "Endurance + speed endurance"
		if n == mockWeeks {
			focus = "Taper & sharpen"
		}
		week := domain.PlanWeek{WeekNumber: n, MicrocycleFocus: focus}
		for _, s := range mockSessions {
			w := domain.PlanWorkout{
				Day:         monday.AddDate(0, 0, s.offset).Format(domain.DateLayout),
				WorkoutType: s.workoutType,
				Description: s.description,
				DistanceKm:  float64Ptr(s.distanceKm),
				TargetPace:  stringPtr(s.targetPace),
				Effort:      stringPtr(s.effort),
			}
			if s.notes != "" {
				w.Notes = stringPtr(s.notes)
			}
			week.Workouts = append(week.Workouts, w)
		}
		weeks = append(weeks, week)
	}

	return domain.PlanPayload{
		PlanSummary: &domain.PlanSummary{
			TotalWeeks:           mockWeeks,
			WeeklyMileageRangeKm: domain.MileageRange{Min: 40, Max: 55},
			FocusAreas:           []string{"Aerobic base", "Threshold", "Race specificity"},
			ConfidenceScore:      float64Ptr(0.72),
		},
		Weeks: weeks,
		Metadata: &domain.PlanMetadata{
			ModelVersion:   model,
			GeneratedAtIso: now.UTC().Format(time.RFC3339),
			Disclaimers:    []string{mockDisclaimer},
		},
	}
}

func mockContent(pkg *prompt.Package, now time.Time) (string, error) {
	b, err := json.MarshalIndent(MockPlan(pkg.Context.Goal, pkg.Model, now), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func mondayOf(t time.Time) time.Time {
	back := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -back)
}

func float64Ptr(f float64) *float64 { return &f }
func stringPtr(s string) *string    { return &s }
