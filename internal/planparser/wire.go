package planparser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pbassistant/backend/internal/domain"
)

// Provider output is decoded through these tolerant types first. Only the
// plan structure (weeks and workouts as objects in arrays) is enforced here;
// a field of the wrong type decodes as absent and the usual fallbacks apply.

var jsonNull = []byte("null")

func isNull(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, jsonNull)
}

// number accepts JSON numbers and numeric strings.
type number struct{ v *float64 }

func (n *number) UnmarshalJSON(b []byte) error {
	n.v = nil
	if isNull(b) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		var s string
		if json.Unmarshal(b, &s) != nil {
			return nil
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n.v = &f
	return nil
}

// int returns the value when it is a whole number, else 0.
func (n number) int() int {
	if n.v == nil || *n.v != math.Trunc(*n.v) || math.Abs(*n.v) > math.MaxInt32 {
		return 0
	}
	return int(*n.v)
}

func (n number) float() float64 {
	if n.v == nil {
		return 0
	}
	return *n.v
}

// text accepts strings; other scalars keep their literal form.
type text struct{ v *string }

func (t *text) UnmarshalJSON(b []byte) error {
	t.v = nil
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		t.v = &s
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return nil
	}
	s = string(b)
	t.v = &s
	return nil
}

func (t text) String() string {
	if t.v == nil {
		return ""
	}
	return *t.v
}

// texts accepts an array of scalars or a single string.
type texts []string

func (ts *texts) UnmarshalJSON(b []byte) error {
	*ts = nil
	var items []text
	if err := json.Unmarshal(b, &items); err != nil {
		var one text
		_ = json.Unmarshal(b, &one)
		if one.v != nil {
			*ts = texts{*one.v}
		}
		return nil
	}
	for _, it := range items {
		if it.v != nil {
			*ts = append(*ts, *it.v)
		}
	}
	return nil
}

type wirePlan struct {
	PlanSummary json.RawMessage `json:"planSummary"`
	Weeks       json.RawMessage `json:"weeks"`
	Metadata    json.RawMessage `json:"metadata"`
}

type wireSummary struct {
	TotalWeeks           number    `json:"totalWeeks"`
	WeeklyMileageRangeKm wireRange `json:"weeklyMileageRangeKm"`
	FocusAreas           texts     `json:"focusAreas"`
	ConfidenceScore      number    `json:"confidenceScore"`
	Confidence           number    `json:"confidence"`
}

type wireRange struct{ Min, Max number }

func (r *wireRange) UnmarshalJSON(b []byte) error {
	var p struct {
		Min number `json:"min"`
		Max number `json:"max"`
	}
	if json.Unmarshal(b, &p) == nil {
		r.Min, r.Max = p.Min, p.Max
	}
	return nil
}

type wireMetadata struct {
	ModelVersion   text  `json:"modelVersion"`
	GeneratedAtIso text  `json:"generatedAtIso"`
	Disclaimers    texts `json:"disclaimers"`
}

type wireWeek struct {
	WeekNumber      number          `json:"weekNumber"`
	MicrocycleFocus text            `json:"microcycleFocus"`
	Workouts        json.RawMessage `json:"workouts"`
}

type wireWorkout struct {
	Day           text   `json:"day"`
	WorkoutType   text   `json:"workoutType"`
	Type          text   `json:"type"`
	Description   text   `json:"description"`
	DistanceKm    number `json:"distanceKm"`
	DistanceKmAlt number `json:"distance_km"`
	TargetPace    text   `json:"targetPace"`
	Pace          text   `json:"pace"`
	Effort        text   `json:"effort"`
	Notes         text   `json:"notes"`
}

// decodePlan enforces the plan structure and converts everything else leniently.
func decodePlan(body []byte) (*domain.PlanPayload, error) {
	var wp wirePlan
	if err := json.Unmarshal(body, &wp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPlan, err)
	}

	payload := &domain.PlanPayload{
		PlanSummary: decodeSummary(wp.PlanSummary),
		Metadata:    decodeMetadata(wp.Metadata),
	}

	var weeks []json.RawMessage
	if !isNull(wp.Weeks) {
		if err := json.Unmarshal(wp.Weeks, &weeks); err != nil {
			return nil, fmt.Errorf("%w: weeks must be an array", domain.ErrMalformedPlan)
		}
	}
	for i, rawWeek := range weeks {
		var ww wireWeek
		if err := json.Unmarshal(rawWeek, &ww); err != nil {
			return nil, fmt.Errorf("%w: week %d is not an object", domain.ErrMalformedPlan, i+1)
		}
		week := domain.PlanWeek{
			WeekNumber:      ww.WeekNumber.int(),
			MicrocycleFocus: ww.MicrocycleFocus.String(),
		}
		var workouts []json.RawMessage
		if !isNull(ww.Workouts) {
			if err := json.Unmarshal(ww.Workouts, &workouts); err != nil {
				return nil, fmt.Errorf("%w: week %d workouts must be an array", domain.ErrMalformedPlan, i+1)
			}
		}
		for j, rawWorkout := range workouts {
			var w wireWorkout
			if err := json.Unmarshal(rawWorkout, &w); err != nil {
				return nil, fmt.Errorf("%w: week %d workout %d is not an object", domain.ErrMalformedPlan, i+1, j+1)
			}
			week.Workouts = append(week.Workouts, domain.PlanWorkout{
				Day:           w.Day.String(),
				WorkoutType:   w.WorkoutType.String(),
				Type:          w.Type.String(),
				Description:   w.Description.String(),
				DistanceKm:    w.DistanceKm.v,
				DistanceKmAlt: w.DistanceKmAlt.v,
				TargetPace:    w.TargetPace.v,
				Pace:          w.Pace.v,
				Effort:        w.Effort.v,
				Notes:         w.Notes.v,
			})
		}
		payload.Weeks = append(payload.Weeks, week)
	}
	return payload, nil
}

func decodeSummary(raw json.RawMessage) *domain.PlanSummary {
	var ws wireSummary
	if isNull(raw) || json.Unmarshal(raw, &ws) != nil {
		return nil
	}
	return &domain.PlanSummary{
		TotalWeeks: ws.TotalWeeks.int(),
		WeeklyMileageRangeKm: domain.MileageRange{
			Min: ws.WeeklyMileageRangeKm.Min.float(),
			Max: ws.WeeklyMileageRangeKm.Max.float(),
		},
		FocusAreas:      []string(ws.FocusAreas),
		ConfidenceScore: ws.ConfidenceScore.v,
		Confidence:      ws.Confidence.v,
	}
}

func decodeMetadata(raw json.RawMessage) *domain.PlanMetadata {
	var wm wireMetadata
	if isNull(raw) || json.Unmarshal(raw, &wm) != nil {
		return nil
	}
	return &domain.PlanMetadata{
		ModelVersion:   wm.ModelVersion.String(),
		GeneratedAtIso: wm.GeneratedAtIso.String(),
		Disclaimers:    []string(wm.Disclaimers),
	}
}
