package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/fairway/internal/adapters/repository"
	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/config"
	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/seed"
	"github.com/okian/fairway/internal/settlement"
	"github.com/okian/fairway/pkg/logger"
)

var errNoDatabase = errors.New("no database configured: pass --db or set FAIRWAY_DATABASE_URL")

// fieldFile is the input of the price command, shaped like the preview request.
type fieldFile struct {
	FieldSize   int                `json:"field_size"`
	Contestants []model.Contestant `json:"contestants"`
}

func (f *flags) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if f.dbURL != "" {
		cfg.DatabaseURL = f.dbURL
	}
	return cfg, nil
}

// openService starts a service on the configured store. Callers must Stop it.
func (f *flags) openService(ctx context.Context) (*service.Service, error) {
	cfg, err := f.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	store, err := repository.Open(ctx, cfg.DatabaseURL, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	svc := service.New(append(opts,
		service.WithStore(store),
		service.WithLogger(logger.Named("fairwayctl")),
	)...)
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func readFieldFile(cmd *cobra.Command, path string) (fieldFile, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		fh, err := os.Open(path)
		if err != nil {
			return fieldFile{}, err
		}
		defer fh.Close()
		r = fh
	}
	var ff fieldFile
	if err := json.NewDecoder(r).Decode(&ff); err != nil {
		return fieldFile{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return ff, nil
}

func (f *flags) price(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ff, err := readFieldFile(cmd, args[0])
	if err != nil {
		return err
	}
	fieldSize := ff.FieldSize
	if f.fieldSize > 0 {
		fieldSize = f.fieldSize
	}
	if fieldSize == 0 {
		fieldSize = len(ff.Contestants)
	}

	cfg, err := f.loadConfig(ctx)
	if err != nil {
		return err
	}
	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	preview, err := service.New(opts...).Price(ctx, ff.Contestants, fieldSize)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTESTANT\tRANK\tFORM\tSALARY")
	for _, r := range preview.Records {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\n", r.ContestantID, r.Ranking, r.Form, r.Salary)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	st := preview.Stats
	fmt.Fprintf(out, "\n%d priced, min %d, max %d, mean %s, cheapest six %d (%s%%)\n",
		st.Count, st.Min, st.Max, st.Mean.StringFixed(2), st.CheapestSixTotal, st.CheapestSixPercent.StringFixed(2))
	if preview.Rescaled {
		fmt.Fprintf(out, "rescaled by %s to stay under %d\n", st.RescaleRatio.String(), st.FeasibilityLimit)
	}
	return nil
}

func (f *flags) migrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := f.loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errNoDatabase
	}
	store, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
	return nil
}

func (f *flags) runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := f.openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Stop()

	stats, err := seed.Run(ctx, svc, seed.Config{
		ContestID:   f.seedContest,
		Name:        f.seedName,
		Contestants: f.seedContestants,
		Users:       f.seedUsers,
		EntryFee:    f.seedFee,
		Seed:        f.seedValue,
		Start:       true,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "seeded %s: %d contestants, %d entries, %d performances (rescaled: %t)\n",
		stats.ContestID, stats.Contestants, stats.Entries, stats.Performances, stats.Rescaled)

	if !f.seedSettle {
		return nil
	}
	outcome, err := svc.Settle(ctx, stats.ContestID)
	if err != nil {
		return err
	}
	printSummary(out, outcome.Summary)
	return nil
}

func (f *flags) settle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := f.openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Stop()

	if len(args) == 1 {
		run := svc.Settle
		if f.repair {
			run = svc.Repair
		}
		outcome, err := run(ctx, args[0])
		if err != nil {
			return describe(args[0], err)
		}
		printSummary(cmd.OutOrStdout(), outcome.Summary)
		return nil
	}

	jobs := make([]model.SettlementJob, len(args))
	for i, id := range args {
		jobs[i] = model.SettlementJob{ContestID: id, Repair: f.repair}
	}
	items, err := svc.SettleBatch(ctx, jobs)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTEST\tOUTCOME\tRESULT\tERROR")
	failed := 0
	for _, it := range items {
		outcome := it.Outcome
		if it.Duplicate {
			outcome = "duplicate"
		}
		if it.Error != "" && !it.Duplicate {
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ContestID, outcome, it.ResultID, it.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d contests did not settle", failed, len(items))
	}
	return nil
}

func (f *flags) repairOne(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := f.openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Stop()

	outcome, err := svc.Repair(ctx, args[0])
	if err != nil {
		return describe(args[0], err)
	}
	printSummary(cmd.OutOrStdout(), outcome.Summary)
	return nil
}

func (f *flags) status(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := f.openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Stop()

	st, err := svc.SettlementStatus(ctx, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// describe labels err with its settlement outcome and, for partial writes, the failed step.
func describe(contestID string, err error) error {
	var pw *failure.PartialWriteError
	if errors.As(err, &pw) {
		return fmt.Errorf("%s: %s at %s, run repair: %w", contestID, settlement.OutcomeLabel(err), pw.Step, err)
	}
	return fmt.Errorf("%s: %s: %w", contestID, settlement.OutcomeLabel(err), err)
}

func printSummary(w io.Writer, s settlement.Summary) {
	fmt.Fprintf(w, "settled %s as %s\n", s.ContestID, s.ResultID)
	fmt.Fprintf(w, "  entries:     %d\n", s.Entries)
	fmt.Fprintf(w, "  gross pool:  %d\n", s.GrossPool)
	fmt.Fprintf(w, "  house fee:   %d\n", s.HouseFee)
	fmt.Fprintf(w, "  net pool:    %d\n", s.NetPool)
	fmt.Fprintf(w, "  paid:        %d positions, %d distributed, %d remainder\n", s.PaidPositions, s.Distributed, s.Remainder)
	fmt.Fprintf(w, "  winner:      %s\n", s.WinnerEntryID)
}
