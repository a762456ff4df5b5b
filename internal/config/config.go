// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat snake_case koanf keys so env vars map one to one (FAIRWAY_QUEUE_SIZE -> queue_size).
// - New() returns defaults; Load layers file and env on top and validates.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okian/fairway/internal/domain/pricing"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatabaseURL selects the Postgres store when set; empty keeps everything in memory.
	DatabaseURL string `koanf:"database_url"`

	// CORSAllowedOrigins is a comma separated list passed to the CORS wrapper.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// JobQueueSize bounds the in-memory settlement job queue.
	JobQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of batch settlement workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the per-batch contest id dedupe set.
	DedupeSize int `koanf:"dedupe_size"`

	// CacheSize bounds the read-through cache of settled results.
	CacheSize int `koanf:"cache_size"`

	// Pricing.
	PricingMinSalary        int64   `koanf:"pricing_min_salary"`
	PricingMaxSalary        int64   `koanf:"pricing_max_salary"`
	PricingTotalBudget      int64   `koanf:"pricing_total_budget"`
	PricingFeasibilityRatio float64 `koanf:"pricing_feasibility_ratio"`

	// Scoring. Mode is "absolute" or "under_par".
	ScoringMode              string `koanf:"scoring_mode"`
	ScoringPointsPerStroke   int64  `koanf:"scoring_points_per_stroke"`
	ScoringCaptainMultiplier int64  `koanf:"scoring_captain_multiplier"`

	// Settlement defaults, overridable per contest.
	SettlementHouseFeePercent int64  `koanf:"settlement_house_fee_percent"`
	SettlementPrizeCurve      string `koanf:"settlement_prize_curve"`
	SettlementTieBreak        string `koanf:"settlement_tie_break"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		CORSAllowedOrigins: "*",
		JobQueueSize:       1_024,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         10_000,
		CacheSize:          512,

		PricingMinSalary:        60_000,
		PricingMaxSalary:        150_000,
		PricingTotalBudget:      500_000,
		PricingFeasibilityRatio: 0.85,

		ScoringMode:              "absolute",
		ScoringPointsPerStroke:   10,
		ScoringCaptainMultiplier: 2,

		SettlementHouseFeePercent: 10,
		SettlementPrizeCurve:      "50,30,20",
		SettlementTieBreak:        "submitted_at",
	}
}

// PrizeCurve parses SettlementPrizeCurve ("50,30,20") into percentages.
func (c *Config) PrizeCurve() ([]int64, error) {
	parts := strings.Split(c.SettlementPrizeCurve, ",")
	curve := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: prize curve %q: %v", ErrInvalidConfig, c.SettlementPrizeCurve, err)
		}
		curve = append(curve, v)
	}
	if len(curve) == 0 {
		return nil, fmt.Errorf("%w: prize curve is empty", ErrInvalidConfig)
	}
	return curve, nil
}

// FeasibilityLimit is floor(pricing_total_budget × pricing_feasibility_ratio).
func (c *Config) FeasibilityLimit() int64 {
	return decimal.NewFromInt(c.PricingTotalBudget).Mul(decimal.NewFromFloat(c.PricingFeasibilityRatio)).Floor().IntPart()
}

// AllowedOrigins splits CORSAllowedOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.JobQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.PricingMinSalary <= 0 || c.PricingMinSalary >= c.PricingMaxSalary:
		return fmt.Errorf("%w: pricing_min_salary must be positive and below pricing_max_salary", ErrInvalidConfig)
	case c.PricingTotalBudget <= 0:
		return fmt.Errorf("%w: pricing_total_budget must be positive", ErrInvalidConfig)
	case c.PricingFeasibilityRatio <= 0 || c.PricingFeasibilityRatio > 1:
		return fmt.Errorf("%w: pricing_feasibility_ratio must be in (0,1]", ErrInvalidConfig)
	case pricing.RosterSize*c.PricingMinSalary > c.FeasibilityLimit():
		return fmt.Errorf("%w: %d picks at pricing_min_salary %d exceed the feasibility limit %d",
			ErrInvalidConfig, pricing.RosterSize, c.PricingMinSalary, c.FeasibilityLimit())
	case c.ScoringMode != "absolute" && c.ScoringMode != "under_par":
		return fmt.Errorf("%w: unknown scoring_mode %q", ErrInvalidConfig, c.ScoringMode)
	case c.ScoringPointsPerStroke <= 0:
		return fmt.Errorf("%w: scoring_points_per_stroke must be positive", ErrInvalidConfig)
	case c.ScoringCaptainMultiplier < 1:
		return fmt.Errorf("%w: scoring_captain_multiplier must be at least 1", ErrInvalidConfig)
	case c.SettlementHouseFeePercent < 0 || c.SettlementHouseFeePercent > 100:
		return fmt.Errorf("%w: settlement_house_fee_percent must be in 0..100", ErrInvalidConfig)
	case c.SettlementTieBreak != "submitted_at" && c.SettlementTieBreak != "entry_id":
		return fmt.Errorf("%w: unknown settlement_tie_break %q", ErrInvalidConfig, c.SettlementTieBreak)
	}

	curve, err := c.PrizeCurve()
	if err != nil {
		return err
	}
	var total int64
	for _, p := range curve {
		if p < 0 {
			return fmt.Errorf("%w: prize curve has a negative share", ErrInvalidConfig)
		}
		total += p
	}
	if total > 100 {
		return fmt.Errorf("%w: prize curve sums to %d%%", ErrInvalidConfig, total)
	}
	return nil
}
