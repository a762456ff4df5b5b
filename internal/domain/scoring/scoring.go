// Package scoring computes fantasy points for entries from a contest's
// performance feed.
package scoring

import (
	"fmt"
	"sort"

	"github.com/okian/fairway/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultPointsPerStroke   = 10
	defaultCaptainMultiplier = 2
)

// Mode selects how a relative-to-par aggregate becomes points.
type Mode string

// Scoring modes. Absolute discards the sign of the aggregate; UnderPar rewards
// strokes under par and penalizes strokes over par.
const (
	ModeAbsolute Mode = "absolute"
	ModeUnderPar Mode = "under_par"
)

// ParseMode maps a config value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAbsolute:
		return ModeAbsolute, nil
	case ModeUnderPar:
		return ModeUnderPar, nil
	default:
		return "", fmt.Errorf("unknown scoring mode %q", s)
	}
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithPointsPerStroke sets the coefficient applied to the relative-to-par aggregate.
func WithPointsPerStroke(points int64) Option {
	return func(s *Scorer) {
		if points > 0 {
			s.pointsPerStroke = points
		}
	}
}

// WithCaptainMultiplier sets the captain pick's multiplier.
func WithCaptainMultiplier(mult int64) Option {
	return func(s *Scorer) {
		if mult >= 1 {
			s.captainMultiplier = mult
		}
	}
}

// WithMode sets the scoring mode.
func WithMode(mode Mode) Option {
	return func(s *Scorer) {
		if mode != "" {
			s.mode = mode
		}
	}
}

// PickScore is the contribution of one pick.
type PickScore struct {
	ContestantID string `json:"contestant_id"`
	Slot         int    `json:"slot"`
	Captain      bool   `json:"captain"`
	Base         int64  `json:"base"`
	Points       int64  `json:"points"`
	Missing      bool   `json:"missing,omitempty"`
}

// Scorer turns rosters into points. It is stateless and safe for concurrent use.
type Scorer struct {
	pointsPerStroke   int64
	captainMultiplier int64
	mode              Mode
}

// New creates a Scorer with the standard rules: 10 points per stroke, captain doubled.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		pointsPerStroke:   defaultPointsPerStroke,
		captainMultiplier: defaultCaptainMultiplier,
		mode:              ModeAbsolute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the configured scoring mode.
func (s *Scorer) Mode() Mode { return s.mode }

// Score totals an entry's picks. A contestant without performance data
// contributes 0. Only the first captain by slot gets the multiplier.
// Per-pick scores are returned in slot order.
func (s *Scorer) Score(entry model.Entry, perf map[string]model.Performance) (int64, []PickScore) {
	picks := append([]model.Pick(nil), entry.Picks...)
	sort.SliceStable(picks, func(i, j int) bool { return picks[i].Slot < picks[j].Slot })

	var total int64
	captainUsed := false
	out := make([]PickScore, len(picks))
	for i, p := range picks {
		ps := PickScore{ContestantID: p.ContestantID, Slot: p.Slot}
		if rec, ok := perf[p.ContestantID]; ok {
			ps.Base = s.base(rec.RelativeToPar)
		} else {
			ps.Missing = true
		}
		ps.Points = ps.Base
		if p.Captain && !captainUsed {
			captainUsed = true
			ps.Captain = true
			ps.Points = ps.Base * s.captainMultiplier
		}
		total += ps.Points
		out[i] = ps
	}
	return total, out
}

func (s *Scorer) base(relativeToPar int64) int64 {
	if s.mode == ModeUnderPar {
		return -relativeToPar * s.pointsPerStroke
	}
	if relativeToPar < 0 {
		relativeToPar = -relativeToPar
	}
	return relativeToPar * s.pointsPerStroke
}
