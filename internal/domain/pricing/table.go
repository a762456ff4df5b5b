package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RankPoint is one known (ranking, factor) pair.
type RankPoint struct {
	Rank   int
	Factor decimal.Decimal
}

// RankTable is a sparse ranking -> factor table sorted by rank, interpolated linearly.
type RankTable struct {
	points []RankPoint
}

// DefaultRankTable returns the standard table. Ranking 500 and beyond is worth nothing.
func DefaultRankTable() RankTable {
	raw := []struct {
		rank   int
		factor string
	}{
		{1, "1.00"}, {2, "0.97"}, {3, "0.94"}, {5, "0.90"}, {10, "0.82"},
		{15, "0.75"}, {20, "0.68"}, {30, "0.58"}, {50, "0.45"}, {75, "0.33"},
		{100, "0.24"}, {150, "0.14"}, {200, "0.08"}, {300, "0.03"}, {500, "0.00"},
	}
	pts := make([]RankPoint, len(raw))
	for i, r := range raw {
		pts[i] = RankPoint{Rank: r.rank, Factor: decimal.RequireFromString(r.factor)}
	}
	return RankTable{points: pts}
}

// NewRankTable validates points: ranks strictly increasing from 1, factors within
// [0,1] and non-increasing.
func NewRankTable(points []RankPoint) (RankTable, error) {
	if len(points) < 2 {
		return RankTable{}, fmt.Errorf("rank table needs at least two points")
	}
	if points[0].Rank != 1 {
		return RankTable{}, fmt.Errorf("rank table must start at ranking 1")
	}
	one := decimal.NewFromInt(1)
	for i, p := range points {
		if p.Factor.IsNegative() || p.Factor.GreaterThan(one) {
			return RankTable{}, fmt.Errorf("factor %s at ranking %d outside [0,1]", p.Factor, p.Rank)
		}
		if i == 0 {
			continue
		}
		prev := points[i-1]
		if p.Rank <= prev.Rank {
			return RankTable{}, fmt.Errorf("rankings must strictly increase (%d after %d)", p.Rank, prev.Rank)
		}
		if p.Factor.GreaterThan(prev.Factor) {
			return RankTable{}, fmt.Errorf("factor rises at ranking %d", p.Rank)
		}
	}
	return RankTable{points: append([]RankPoint(nil), points...)}, nil
}

// Factor returns the normalized factor for a ranking. Rankings below 1 are treated as 1.
// Rankings at or past the last point yield that point's factor.
func (t RankTable) Factor(rank int) decimal.Decimal {
	if rank < 1 {
		rank = 1
	}
	last := t.points[len(t.points)-1]
	if rank >= last.Rank {
		return last.Factor
	}
	for i := 1; i < len(t.points); i++ {
		hi := t.points[i]
		if rank > hi.Rank {
			continue
		}
		if rank == hi.Rank {
			return hi.Factor
		}
		lo := t.points[i-1]
		if rank == lo.Rank {
			return lo.Factor
		}
		// lo.Factor + (hi.Factor-lo.Factor) * (rank-lo.Rank)/(hi.Rank-lo.Rank)
		span := decimal.NewFromInt(int64(hi.Rank - lo.Rank))
		offset := decimal.NewFromInt(int64(rank - lo.Rank))
		return lo.Factor.Add(hi.Factor.Sub(lo.Factor).Mul(offset).Div(span))
	}
	return last.Factor
}
