// Package seed builds a deterministic demo contest: a priced field of
// contestants, one valid roster per user and a finished performance feed.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/domain/roster"
	"github.com/okian/fairway/pkg/logger"
)

// Generation ranges.
const (
	parPerRound   = 72
	rounds        = 4
	bestToPar     = -18
	toParSpread   = 30
	defaultSeed   = 20260412
	defaultField  = 60
	defaultUsers  = 25
	defaultEntry  = 1_000
	maxRosterSwap = 64
)

var forms = []model.FormTag{model.FormExcellent, model.FormGood, model.FormAverage, model.FormAverage, model.FormPoor}

// Config holds the dataset shape.
type Config struct {
	ContestID   string // Contest id; generated when empty
	Name        string // Contest name
	Contestants int    // Field size
	Users       int    // Number of entries, one per user
	EntryFee    int64  // Entry fee in minor units
	Seed        uint64 // PRNG seed; equal seeds give equal datasets
	Start       bool   // Move the contest to live and record performances
}

// DefaultConfig returns a mid-sized field with two dozen entries.
func DefaultConfig() Config {
	return Config{
		Name:        "Seeded Invitational",
		Contestants: defaultField,
		Users:       defaultUsers,
		EntryFee:    defaultEntry,
		Seed:        defaultSeed,
		Start:       true,
	}
}

// Dataset is the generated input before any salaries exist.
type Dataset struct {
	Contestants  []model.Contestant
	Performances []model.Performance
	Users        []string
}

// Stats summarizes a seeding run.
type Stats struct {
	ContestID    string
	Contestants  int
	Entries      int
	Rescaled     bool
	Performances int
}

// Generate creates contestants, their final performances and user ids.
func Generate(cfg Config) Dataset {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	ds := Dataset{
		Contestants:  make([]model.Contestant, cfg.Contestants),
		Performances: make([]model.Performance, cfg.Contestants),
		Users:        make([]string, cfg.Users),
	}
	for i := range ds.Contestants {
		id := fmt.Sprintf("g%03d", i+1)
		ds.Contestants[i] = model.Contestant{
			ID:      id,
			Name:    fmt.Sprintf("Golfer %d", i+1),
			Ranking: i*3 + 1 + rng.IntN(3),
			Form:    forms[rng.IntN(len(forms))],
		}
		ds.Performances[i] = performance(rng, id)
	}
	for i := range ds.Users {
		ds.Users[i] = fmt.Sprintf("user-%03d", i+1)
	}
	return ds
}

func performance(rng *rand.Rand, id string) model.Performance {
	toPar := int64(bestToPar + rng.IntN(toParSpread))
	p := model.Performance{ContestantID: id, RelativeToPar: toPar, Rounds: make([]int64, rounds)}
	rest := toPar
	for r := 0; r < rounds; r++ {
		share := rest / int64(rounds-r)
		p.Rounds[r] = parPerRound + share
		rest -= share
	}
	return p
}

// Roster picks six distinct contestants that fit under salaryCap. The most
// expensive pick is swapped for a cheaper unused one until the roster fits.
func Roster(rng *rand.Rand, run model.PricingRun, salaryCap int64) ([]model.Pick, error) {
	if len(run.Records) < roster.Size {
		return nil, fmt.Errorf("field of %d cannot fill a roster of %d", len(run.Records), roster.Size)
	}
	order := rng.Perm(len(run.Records))
	chosen := append([]int(nil), order[:roster.Size]...)
	unused := append([]int(nil), order[roster.Size:]...)
	sort.Slice(unused, func(i, j int) bool { return run.Records[unused[i]].Salary < run.Records[unused[j]].Salary })

	total := func() int64 {
		var t int64
		for _, i := range chosen {
			t += run.Records[i].Salary
		}
		return t
	}
	for swaps := 0; total() > salaryCap; swaps++ {
		if swaps > maxRosterSwap || len(unused) == 0 {
			return nil, fmt.Errorf("no roster fits salary cap %d", salaryCap)
		}
		hi := 0
		for k, i := range chosen {
			if run.Records[i].Salary > run.Records[chosen[hi]].Salary {
				hi = k
			}
		}
		if run.Records[unused[0]].Salary >= run.Records[chosen[hi]].Salary {
			return nil, fmt.Errorf("no roster fits salary cap %d", salaryCap)
		}
		chosen[hi], unused[0] = unused[0], chosen[hi]
		sort.Slice(unused, func(i, j int) bool { return run.Records[unused[i]].Salary < run.Records[unused[j]].Salary })
	}

	captain := rng.IntN(roster.Size)
	picks := make([]model.Pick, roster.Size)
	for slot, i := range chosen {
		rec := run.Records[i]
		picks[slot] = model.Pick{ContestantID: rec.ContestantID, Slot: slot, Salary: rec.Salary, Captain: slot == captain}
	}
	return picks, nil
}

// Run creates and fills a contest through svc. With cfg.Start the contest
// ends up live with its performance feed recorded, ready to settle.
func Run(ctx context.Context, svc *service.Service, cfg Config) (Stats, error) {
	log := logger.Named("seed")
	ds := Generate(cfg)

	contest, err := svc.CreateContest(ctx, service.ContestSpec{ID: cfg.ContestID, Name: cfg.Name, EntryFee: cfg.EntryFee})
	if err != nil {
		return Stats{}, fmt.Errorf("create contest: %w", err)
	}
	run, err := svc.PriceContest(ctx, contest.ID, ds.Contestants, len(ds.Contestants))
	if err != nil {
		return Stats{}, fmt.Errorf("price contest: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed+1, cfg.Seed))
	stats := Stats{ContestID: contest.ID, Contestants: len(ds.Contestants), Rescaled: run.Rescaled}
	for _, user := range ds.Users {
		picks, err := Roster(rng, run, contest.SalaryCap)
		if err != nil {
			return stats, err
		}
		if _, err := svc.SubmitEntry(ctx, service.EntrySpec{ContestID: contest.ID, UserID: user, Picks: picks}); err != nil {
			return stats, fmt.Errorf("submit entry for %s: %w", user, err)
		}
		stats.Entries++
	}

	if cfg.Start {
		if _, err := svc.StartContest(ctx, contest.ID); err != nil {
			return stats, fmt.Errorf("start contest: %w", err)
		}
		if err := svc.RecordPerformances(ctx, contest.ID, ds.Performances); err != nil {
			return stats, fmt.Errorf("record performances: %w", err)
		}
		stats.Performances = len(ds.Performances)
	}

	log.Info(ctx, "seeded contest",
		logger.String("contest_id", stats.ContestID),
		logger.Int("contestants", stats.Contestants),
		logger.Int("entries", stats.Entries),
		logger.Bool("rescaled", stats.Rescaled),
	)
	return stats, nil
}
