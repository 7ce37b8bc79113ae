// Package planparser turns provider output into a plan payload and the flat
// list of workouts that gets persisted for it.
package planparser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"pbassistant/backend/internal/domain"
)

// DefaultWorkoutType is used when a workout carries no type label.
const DefaultWorkoutType = "Workout"

// fencePattern matches a payload wrapped in a markdown code block.
var fencePattern = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*\\n?(.*?)\\s*```$")

// Parse decodes provider content into a plan payload. It returns the payload
// and the compacted JSON it was decoded from. Content that is not a JSON
// object, or whose weeks and workouts are not arrays of objects, is reported
// as domain.ErrMalformedPlan. Off-type fields inside them are dropped.
func Parse(content string) (*domain.PlanPayload, json.RawMessage, error) {
	body := strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(body); len(m) > 1 {
		body = strings.TrimSpace(m[1])
	}
	if body == "" {
		return nil, nil, fmt.Errorf("%w: empty content", domain.ErrMalformedPlan)
	}
	if !strings.HasPrefix(body, "{") {
		return nil, nil, fmt.Errorf("%w: content is not a JSON object", domain.ErrMalformedPlan)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(body)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformedPlan, err)
	}

	payload, err := decodePlan(buf.Bytes())
	if err != nil {
		return nil, nil, err
	}
	if len(payload.Weeks) == 0 {
		return nil, nil, fmt.Errorf("%w: plan contains no weeks", domain.ErrMalformedPlan)
	}
	return payload, json.RawMessage(buf.Bytes()), nil
}

// Flatten converts the nested weeks into workouts for planID, in generation
// order. Each workout keeps its week number and focus in the auxiliary payload.
func Flatten(planID string, payload *domain.PlanPayload) ([]domain.Workout, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", domain.ErrMalformedPlan)
	}
	out := make([]domain.Workout, 0, len(payload.Weeks)*4)
	seq := 0
	for wi, week := range payload.Weeks {
		weekNumber := week.WeekNumber
		if weekNumber <= 0 {
			weekNumber = wi + 1
		}
		for _, pw := range week.Workouts {
			date, err := domain.ParseDate(pw.Day)
			if err != nil {
				return nil, fmt.Errorf("%w: week %d has workout with invalid day %q", domain.ErrMalformedPlan, weekNumber, pw.Day)
			}
			distance := firstFloat(pw.DistanceKm, pw.DistanceKmAlt)
			if distance != nil && *distance < 0 {
				return nil, fmt.Errorf("%w: week %d has negative distance", domain.ErrMalformedPlan, weekNumber)
			}
			out = append(out, domain.Workout{
				TrainingPlanID: planID,
				ScheduledDate:  date,
				Sequence:       seq,
				WorkoutType:    firstString(pw.WorkoutType, pw.Type, DefaultWorkoutType),
				Description:    strings.TrimSpace(pw.Description),
				DistanceKm:     distance,
				TargetPace:     firstStringPtr(pw.TargetPace, pw.Pace),
				Status:         domain.WorkoutStatusScheduled,
				AdditionalPayload: &domain.WorkoutPayload{
					Effort:          pw.Effort,
					Notes:           pw.Notes,
					WeekNumber:      weekNumber,
					MicrocycleFocus: week.MicrocycleFocus,
				},
			})
			seq++
		}
	}
	return out, nil
}

// ConfidenceScore prefers planSummary.confidenceScore, then planSummary.confidence.
// Values outside [0,1] are discarded.
func ConfidenceScore(payload *domain.PlanPayload) *float64 {
	if payload == nil || payload.PlanSummary == nil {
		return nil
	}
	for _, c := range []*float64{payload.PlanSummary.ConfidenceScore, payload.PlanSummary.Confidence} {
		if c != nil && *c >= 0 && *c <= 1 {
			v := *c
			return &v
		}
	}
	return nil
}

// GeneratedAt returns metadata.generatedAtIso when it is a valid timestamp,
// otherwise fallback.
func GeneratedAt(payload *domain.PlanPayload, fallback time.Time) time.Time {
	if payload == nil || payload.Metadata == nil {
		return fallback
	}
	ts := strings.TrimSpace(payload.Metadata.GeneratedAtIso)
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC()
	}
	return fallback
}

// WeekGroup is one week rebuilt from persisted workouts.
type WeekGroup struct {
	WeekNumber      int              `json:"weekNumber"`
	MicrocycleFocus string           `json:"microcycleFocus"`
	Workouts        []domain.Workout `json:"workouts"`
}

// GroupByWeek regroups workouts by the week number stored in their auxiliary
// payload. Groups appear in order of first occurrence; workouts keep input order.
func GroupByWeek(workouts []domain.Workout) []WeekGroup {
	groups := make([]WeekGroup, 0)
	index := make(map[int]int)
	for _, w := range workouts {
		n, focus := 0, ""
		if w.AdditionalPayload != nil {
			n, focus = w.AdditionalPayload.WeekNumber, w.AdditionalPayload.MicrocycleFocus
		}
		i, ok := index[n]
		if !ok {
			i = len(groups)
			index[n] = i
			groups = append(groups, WeekGroup{WeekNumber: n, MicrocycleFocus: focus})
		}
		groups[i].Workouts = append(groups[i].Workouts, w)
	}
	return groups
}

func firstString(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func firstStringPtr(values ...*string) *string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return v
		}
	}
	return nil
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
