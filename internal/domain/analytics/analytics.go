// Package analytics derives aggregate statistics from a settled leaderboard.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/okian/fairway/internal/domain/model"
)

// Summary is the aggregate view of a scored entry set.
type Summary struct {
	UniqueParticipants int
	TotalEntries       int
	Mean               decimal.Decimal
	Median             decimal.Decimal
	Max                int64
	Min                int64
}

// Summarize computes participant and score statistics. Mean and median are rounded to 2 places.
func Summarize(rows []model.Standing) Summary {
	if len(rows) == 0 {
		return Summary{Mean: decimal.Zero, Median: decimal.Zero}
	}

	users := make(map[string]struct{}, len(rows))
	points := make([]int64, len(rows))
	var sum int64
	for i, r := range rows {
		users[r.UserID] = struct{}{}
		points[i] = r.Points
		sum += r.Points
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	n := len(points)
	median := decimal.NewFromInt(points[n/2])
	if n%2 == 0 {
		median = decimal.NewFromInt(points[n/2-1] + points[n/2]).Div(decimal.NewFromInt(2))
	}

	return Summary{
		UniqueParticipants: len(users),
		TotalEntries:       n,
		Mean:               decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(n))).Round(2),
		Median:             median.Round(2),
		Max:                points[n-1],
		Min:                points[0],
	}
}
