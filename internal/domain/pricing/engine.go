// Package pricing converts contestant rankings into bounded, clean-rounded
// salaries under a roster budget.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/domain/model"
)

// RosterSize is the number of picks a roster holds.
const RosterSize = 6

const (
	defaultMinSalary   = 60_000
	defaultMaxSalary   = 150_000
	defaultTotalBudget = 500_000
)

var (
	formMultipliers = map[model.FormTag]decimal.Decimal{
		model.FormExcellent: decimal.RequireFromString("1.20"),
		model.FormGood:      decimal.RequireFromString("1.10"),
		model.FormAverage:   decimal.RequireFromString("1.00"),
		model.FormPoor:      decimal.RequireFromString("0.90"),
	}
	hundred = decimal.NewFromInt(100)
)

// Engine prices a field of contestants. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	minSalary        int64
	maxSalary        int64
	totalBudget      int64
	feasibilityRatio decimal.Decimal
	table            RankTable
}

// New creates an Engine with the standard contest rules.
func New(opts ...Option) *Engine {
	e := &Engine{
		minSalary:        defaultMinSalary,
		maxSalary:        defaultMaxSalary,
		totalBudget:      defaultTotalBudget,
		feasibilityRatio: decimal.RequireFromString("0.85"),
		table:            DefaultRankTable(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TotalBudget returns the configured salary cap.
func (e *Engine) TotalBudget() int64 { return e.totalBudget }

// FeasibilityLimit is the most the cheapest six salaries may sum to.
func (e *Engine) FeasibilityLimit() int64 {
	return decimal.NewFromInt(e.totalBudget).Mul(e.feasibilityRatio).Floor().IntPart()
}

// FieldMultiplier returns the field-size modifier: small fields inflate salaries.
func FieldMultiplier(fieldSize int) decimal.Decimal {
	switch {
	case fieldSize <= 30:
		return decimal.RequireFromString("1.15")
	case fieldSize <= 50:
		return decimal.RequireFromString("1.10")
	case fieldSize <= 70:
		return decimal.RequireFromString("1.05")
	case fieldSize <= 100:
		return decimal.NewFromInt(1)
	default:
		return decimal.RequireFromString("0.95")
	}
}

// Price computes a salary for every contestant, then rescales the whole set once
// if the cheapest six would not fit inside the feasibility share of the budget.
// The rescale shrinks each salary's share above MIN_SALARY by one ratio, so no
// salary drops under the floor and the cheapest six land on the limit within
// clean-rounding tolerance. Records are returned in input order.
func (e *Engine) Price(contestants []model.Contestant, fieldSize int) ([]model.PricingRecord, model.PricingStats, bool, error) {
	const op = "pricing.price"

	if err := e.validate(op, contestants, fieldSize); err != nil {
		return nil, model.PricingStats{}, false, err
	}

	fieldMul := FieldMultiplier(fieldSize)
	span := decimal.NewFromInt(e.maxSalary - e.minSalary)
	minSal := decimal.NewFromInt(e.minSalary)

	records := make([]model.PricingRecord, len(contestants))
	for i, c := range contestants {
		form := c.Form
		if form == "" {
			form = model.FormAverage
		}
		rank := c.Ranking
		if rank < 1 {
			rank = 1
		}
		factor := e.table.Factor(rank)
		formMul := formMultipliers[form]

		raw := minSal.Add(span.Mul(factor)).Mul(formMul).Mul(fieldMul)
		salary := e.clamp(CleanRound(raw.Round(0).IntPart()))

		records[i] = model.PricingRecord{
			ContestantID:     c.ID,
			Ranking:          rank,
			Form:             form,
			Factor:           factor,
			FormMultiplier:   formMul,
			FieldMultiplier:  fieldMul,
			PreRescaleSalary: salary,
			Salary:           salary,
		}
	}

	limit := e.FeasibilityLimit()
	ratio := decimal.NewFromInt(1)
	rescaled := false

	if len(records) >= RosterSize {
		if cheapest := cheapestSix(records); cheapest > limit {
			floor := RosterSize * e.minSalary
			ratio = decimal.NewFromInt(limit - floor).Div(decimal.NewFromInt(cheapest - floor))
			for i := range records {
				above := decimal.NewFromInt(records[i].PreRescaleSalary - e.minSalary).Mul(ratio)
				records[i].Salary = e.clamp(CleanRound(minSal.Add(above).Round(0).IntPart()))
			}
			rescaled = true
		}
	}

	stats := e.stats(records, limit, ratio, rescaled)
	return records, stats, rescaled, nil
}

func (e *Engine) validate(op string, contestants []model.Contestant, fieldSize int) error {
	if e.minSalary <= 0 || e.minSalary >= e.maxSalary || !IsClean(e.minSalary) || !IsClean(e.maxSalary) {
		return failure.Validation(op, "salary bounds [%d,%d] must be positive, ordered and clean", e.minSalary, e.maxSalary)
	}
	if e.totalBudget <= 0 {
		return failure.Validation(op, "total budget %d must be positive", e.totalBudget)
	}
	if !e.feasibilityRatio.IsPositive() || e.feasibilityRatio.GreaterThan(decimal.NewFromInt(1)) {
		return failure.Validation(op, "feasibility ratio %s must be in (0,1]", e.feasibilityRatio)
	}
	if limit := e.FeasibilityLimit(); RosterSize*e.minSalary > limit {
		return failure.Validation(op, "%d picks at min salary %d exceed the feasibility limit %d", RosterSize, e.minSalary, limit)
	}
	if fieldSize < 1 {
		return failure.Validation(op, "field size %d must be at least 1", fieldSize)
	}
	if len(contestants) == 0 {
		return failure.Validation(op, "no contestants to price")
	}
	seen := make(map[string]struct{}, len(contestants))
	for i, c := range contestants {
		if c.ID == "" {
			return failure.Validation(op, "contestant %d has no id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return failure.Validation(op, "duplicate contestant %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		if _, ok := formMultipliers[c.Form]; c.Form != "" && !ok {
			return failure.Validation(op, "contestant %q has unknown form %q", c.ID, c.Form)
		}
	}
	return nil
}

func (e *Engine) clamp(v int64) int64 {
	if v < e.minSalary {
		return e.minSalary
	}
	if v > e.maxSalary {
		return e.maxSalary
	}
	return v
}

// cheapestSix sums the six lowest salaries, or all of them when fewer exist.
func cheapestSix(records []model.PricingRecord) int64 {
	salaries := make([]int64, len(records))
	for i, r := range records {
		salaries[i] = r.Salary
	}
	sort.Slice(salaries, func(i, j int) bool { return salaries[i] < salaries[j] })
	n := min(RosterSize, len(salaries))
	var sum int64
	for _, s := range salaries[:n] {
		sum += s
	}
	return sum
}

func (e *Engine) stats(records []model.PricingRecord, limit int64, ratio decimal.Decimal, rescaled bool) model.PricingStats {
	st := model.PricingStats{
		Count:            len(records),
		FeasibilityLimit: limit,
		RescaleRatio:     ratio.Round(6),
		Rescaled:         rescaled,
	}
	for i, r := range records {
		if i == 0 || r.Salary < st.Min {
			st.Min = r.Salary
		}
		if r.Salary > st.Max {
			st.Max = r.Salary
		}
		st.TotalAllocated += r.Salary
	}
	st.Mean = decimal.NewFromInt(st.TotalAllocated).Div(decimal.NewFromInt(int64(len(records)))).Round(2)
	st.CheapestSixTotal = cheapestSix(records)
	st.CheapestSixPercent = decimal.NewFromInt(st.CheapestSixTotal).Mul(hundred).
		Div(decimal.NewFromInt(e.totalBudget)).Round(2)
	return st
}
