package pricing

import "github.com/shopspring/decimal"

// Option configures an Engine.
type Option func(*Engine)

// WithSalaryBounds sets MIN_SALARY and MAX_SALARY.
func WithSalaryBounds(minSalary, maxSalary int64) Option {
	return func(e *Engine) {
		e.minSalary = minSalary
		e.maxSalary = maxSalary
	}
}

// WithTotalBudget sets the roster salary cap the feasibility check is measured against.
func WithTotalBudget(budget int64) Option {
	return func(e *Engine) {
		e.totalBudget = budget
	}
}

// WithFeasibilityRatio sets the share of the budget the cheapest six may consume.
func WithFeasibilityRatio(ratio float64) Option {
	return func(e *Engine) {
		e.feasibilityRatio = decimal.NewFromFloat(ratio)
	}
}

// WithRankTable replaces the default ranking table.
func WithRankTable(t RankTable) Option {
	return func(e *Engine) {
		if len(t.points) > 0 {
			e.table = t
		}
	}
}
