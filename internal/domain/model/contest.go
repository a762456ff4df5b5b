package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contestant is a participant being priced and scored, e.g. a golfer.
type Contestant struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Ranking int     `json:"ranking"`
	Form    FormTag `json:"form,omitempty"`
}

// PricingRecord is the audited salary of one contestant in one pricing run.
type PricingRecord struct {
	ContestantID     string          `json:"contestant_id"`
	Ranking          int             `json:"ranking"`
	Form             FormTag         `json:"form"`
	Factor           decimal.Decimal `json:"factor"`
	FormMultiplier   decimal.Decimal `json:"form_multiplier"`
	FieldMultiplier  decimal.Decimal `json:"field_multiplier"`
	PreRescaleSalary int64           `json:"pre_rescale_salary"`
	Salary           int64           `json:"salary"`
}

// PricingStats summarizes a priced set.
type PricingStats struct {
	Count              int             `json:"count"`
	Min                int64           `json:"min"`
	Max                int64           `json:"max"`
	Mean               decimal.Decimal `json:"mean"`
	TotalAllocated     int64           `json:"total_allocated"`
	CheapestSixTotal   int64           `json:"cheapest_six_total"`
	CheapestSixPercent decimal.Decimal `json:"cheapest_six_percent"`
	FeasibilityLimit   int64           `json:"feasibility_limit"`
	RescaleRatio       decimal.Decimal `json:"rescale_ratio"` // applied to the share above min salary
	Rescaled           bool            `json:"rescaled"`
}

// PricingRun is one persisted pricing of a contest's field. A newer run supersedes older ones.
type PricingRun struct {
	ID           string          `json:"id"`
	ContestID    string          `json:"contest_id"`
	FieldSize    int             `json:"field_size"`
	Records      []PricingRecord `json:"records"`
	Stats        PricingStats    `json:"stats"`
	Rescaled     bool            `json:"rescaled"`
	CreatedAt    time.Time       `json:"created_at"`
	SupersededAt *time.Time      `json:"superseded_at,omitempty"`
}

// Salary returns the run's salary for a contestant.
func (r *PricingRun) Salary(contestantID string) (int64, bool) {
	for _, rec := range r.Records {
		if rec.ContestantID == contestantID {
			return rec.Salary, true
		}
	}
	return 0, false
}

// Contest is one contest instance with its money rules.
type Contest struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Status          ContestStatus `json:"status"`
	EntryFee        int64         `json:"entry_fee"`
	HouseFeePercent int64         `json:"house_fee_percent"`
	PrizeCurve      []int64       `json:"prize_curve"`
	SalaryCap       int64         `json:"salary_cap"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Performance is one contestant's tournament aggregate for a contest.
type Performance struct {
	ContestantID  string  `json:"contestant_id"`
	RelativeToPar int64   `json:"relative_to_par"`
	Rounds        []int64 `json:"rounds,omitempty"`
}
