package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pbassistant/backend/internal/config"
	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/generation"
	"pbassistant/backend/internal/logger"
	"pbassistant/backend/internal/planparser"
	"pbassistant/backend/internal/prompt"
	"pbassistant/backend/internal/repository/factory"
	"pbassistant/backend/internal/service"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "planctl",
		Short:         "PB Assistant plan tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", ".", "Directory containing config.yaml")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	cmd.AddCommand(generateCmd(opts), schemaCmd(), migrateCmd(opts))
	return cmd
}

func (o *rootOptions) logger() (*logger.Logger, error) {
	if !o.verbose {
		return logger.NewNop(), nil
	}
	return logger.New("dev")
}

// --- generate ---

// goalFile is the YAML accepted by generate --file.
type goalFile struct {
	Goal    domain.GoalRequest `yaml:"goal"`
	Profile profileFile        `yaml:"profile"`
}

type profileFile struct {
	Gender              *string  `yaml:"gender"`
	Birthdate           *string  `yaml:"birthdate"`
	HeightCm            *float64 `yaml:"heightCm"`
	WeightKg            *float64 `yaml:"weightKg"`
	WeeklyTrainingDays  *int     `yaml:"weeklyTrainingDays"`
	BestRaceDistance    *string  `yaml:"bestRaceDistance"`
	BestRaceTimeSeconds *int     `yaml:"bestRaceTimeSeconds"`
	Timezone            *string  `yaml:"timezone"`
}

func (p profileFile) update() domain.ProfileUpdate {
	return domain.ProfileUpdate{
		Gender:              p.Gender,
		Birthdate:           p.Birthdate,
		HeightCm:            p.HeightCm,
		WeightKg:            p.WeightKg,
		WeeklyTrainingDays:  p.WeeklyTrainingDays,
		BestRaceDistance:    p.BestRaceDistance,
		BestRaceTimeSeconds: p.BestRaceTimeSeconds,
		Timezone:            p.Timezone,
	}
}

type generateOptions struct {
	file     string
	distance string
	date     string
	target   int
	notes    string
	days     int
	mock     bool
	output   string
}

type planOutput struct {
	PlanID          string       `yaml:"planId" json:"planId"`
	Status          string       `yaml:"status" json:"status"`
	Model           string       `yaml:"model" json:"model"`
	RaceDistance    string       `yaml:"raceDistance" json:"raceDistance"`
	RaceDate        string       `yaml:"raceDate" json:"raceDate"`
	ConfidenceScore *float64     `yaml:"confidenceScore,omitempty" json:"confidenceScore,omitempty"`
	Notes           *string      `yaml:"notes,omitempty" json:"notes,omitempty"`
	Weeks           []weekOutput `yaml:"weeks" json:"weeks"`
}

type weekOutput struct {
	WeekNumber int             `yaml:"weekNumber" json:"weekNumber"`
	Focus      string          `yaml:"focus,omitempty" json:"focus,omitempty"`
	Workouts   []workoutOutput `yaml:"workouts" json:"workouts"`
}

type workoutOutput struct {
	Date        string   `yaml:"date" json:"date"`
	Type        string   `yaml:"type" json:"type"`
	Description string   `yaml:"description" json:"description"`
	DistanceKm  *float64 `yaml:"distanceKm,omitempty" json:"distanceKm,omitempty"`
	TargetPace  *string  `yaml:"targetPace,omitempty" json:"targetPace,omitempty"`
}

func generateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a plan against throwaway in-memory stores",
		Long: `Runs the full plan pipeline for a local athlete and prints the resulting
schedule. The goal comes from flags or from a YAML file (--file) with
"goal" and optional "profile" sections; flags override the file.

Live generation is used when an API key is configured, unless --mock is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "YAML file with goal and profile")
	f.StringVar(&opts.distance, "distance", "", "Race distance, e.g. 10K or Marathon")
	f.StringVar(&opts.date, "date", "", "Race date (YYYY-MM-DD)")
	f.IntVar(&opts.target, "target", 0, "Target finish time in seconds")
	f.StringVar(&opts.notes, "notes", "", "Free-form goal notes")
	f.IntVar(&opts.days, "days", 0, "Weekly training days (1-7)")
	f.BoolVar(&opts.mock, "mock", false, "Force mock generation")
	f.StringVarP(&opts.output, "output", "o", "yaml", "Output format: yaml or json")
	return cmd
}

func (o *generateOptions) load() (goalFile, error) {
	var gf goalFile
	if o.file != "" {
		raw, err := os.ReadFile(o.file)
		if err != nil {
			return gf, fmt.Errorf("read goal file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &gf); err != nil {
			return gf, fmt.Errorf("parse goal file: %w", err)
		}
	}
	if o.distance != "" {
		gf.Goal.RaceDistance = o.distance
	}
	if o.date != "" {
		gf.Goal.RaceDate = o.date
	}
	if o.target > 0 {
		target := o.target
		gf.Goal.TargetFinishTimeSeconds = &target
	}
	if o.notes != "" {
		notes := o.notes
		gf.Goal.Description = &notes
	}
	if o.days > 0 {
		days := o.days
		gf.Goal.WeeklyTrainingDays = &days
	}
	return gf, nil
}

func runGenerate(ctx context.Context, out io.Writer, root *rootOptions, opts *generateOptions) error {
	format := strings.ToLower(opts.output)
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	gf, err := opts.load()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(root.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := root.logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	stores := factory.NewMemoryStores()
	user, err := stores.Users.UpsertIdentity(ctx, domain.Identity{Provider: "cli", ProviderUserID: "local"})
	if err != nil {
		return err
	}
	if _, err := stores.Users.UpdateProfile(ctx, user.ID, gf.Profile.update()); err != nil {
		return err
	}

	svc := service.NewPlanService(service.PlanServiceDeps{
		Users:    stores.Users,
		Plans:    stores.Plans,
		Workouts: stores.Workouts,
		Builder:  prompt.NewBuilder(cfg.Generation.Model, time.Now),
		Generator: generation.New(generation.Options{
			Endpoint: cfg.Generation.Endpoint,
			APIKey:   cfg.Generation.APIKey,
			MockMode: opts.mock || cfg.Generation.MockMode,
			Timeout:  cfg.Generation.Timeout,
		}),
		Logger: log,
	})
	res, err := svc.CreatePlan(ctx, user.ID, gf.Goal)
	if err != nil {
		return err
	}
	return writeOutput(out, format, toPlanOutput(res))
}

func toPlanOutput(res *service.PlanResult) planOutput {
	p := res.Plan
	o := planOutput{
		PlanID:          p.ID,
		Status:          string(p.Status),
		Model:           p.AIModel,
		RaceDistance:    p.GoalRaceDistance,
		RaceDate:        p.GoalRaceDate,
		ConfidenceScore: p.ConfidenceScore,
		Notes:           p.GenerationNotes,
	}
	for _, wk := range planparser.GroupByWeek(res.Workouts) {
		w := weekOutput{WeekNumber: wk.WeekNumber, Focus: wk.MicrocycleFocus}
		for _, s := range wk.Workouts {
			w.Workouts = append(w.Workouts, workoutOutput{
				Date:        s.ScheduledDate.Format(domain.DateLayout),
				Type:        s.WorkoutType,
				Description: s.Description,
				DistanceKm:  s.DistanceKm,
				TargetPace:  s.TargetPace,
			})
		}
		o.Weeks = append(o.Weeks, w)
	}
	return o
}

func writeOutput(out io.Writer, format string, v interface{}) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// --- schema ---

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema plans must satisfy",
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc interface{}
			if err := json.Unmarshal(prompt.Schema(), &doc); err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), "json", doc)
		},
	}
}

// --- migrate ---

func migrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables or indexes for the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := root.logger()
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg.Database.AutoMigrate = true
			stores, err := factory.Open(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer stores.Close()

			if stores.Backend == config.BackendMemory {
				fmt.Fprintln(cmd.OutOrStdout(), "No database configured; nothing to migrate.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready on %s.\n", stores.Backend)
			return nil
		},
	}
}
