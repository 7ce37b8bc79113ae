package domain

// PlanPayload is the structured plan every generation response must satisfy.
// Alias fields (Confidence, Type, DistanceKmAlt, Pace) are accepted on input
// for providers that drift from the schema's naming; they are never emitted
// by our own generator.
type PlanPayload struct {
	PlanSummary *PlanSummary  `json:"planSummary"`
	Weeks       []PlanWeek    `json:"weeks"`
	Metadata    *PlanMetadata `json:"metadata"`
}

type PlanSummary struct {
	TotalWeeks           int          `json:"totalWeeks"`
	WeeklyMileageRangeKm MileageRange `json:"weeklyMileageRangeKm"`
	FocusAreas           []string     `json:"focusAreas"`
	ConfidenceScore      *float64     `json:"confidenceScore,omitempty"`
	Confidence           *float64     `json:"confidence,omitempty"`
}

type MileageRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type PlanWeek struct {
	WeekNumber      int           `json:"weekNumber"`
	MicrocycleFocus string        `json:"microcycleFocus"`
	Workouts        []PlanWorkout `json:"workouts"`
}

type PlanWorkout struct {
	Day           string   `json:"day"`
	WorkoutType   string   `json:"workoutType,omitempty"`
	Type          string   `json:"type,omitempty"`
	Description   string   `json:"description"`
	DistanceKm    *float64 `json:"distanceKm,omitempty"`
	DistanceKmAlt *float64 `json:"distance_km,omitempty"`
	TargetPace    *string  `json:"targetPace,omitempty"`
	Pace          *string  `json:"pace,omitempty"`
	Effort        *string  `json:"effort,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
}

type PlanMetadata struct {
	ModelVersion   string   `json:"modelVersion"`
	GeneratedAtIso string   `json:"generatedAtIso"`
	Disclaimers    []string `json:"disclaimers,omitempty"`
}
