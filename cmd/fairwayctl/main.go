// Command fairwayctl is the operator tool for the contest service: it prices
// fields offline, migrates the database, seeds demo contests and drives
// settlement against the configured store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/fairway/pkg/logger"
)

// flags shared by the subcommands. Zero values defer to config.Load.
type flags struct {
	dbURL     string
	logLevel  string
	fieldSize int
	repair    bool

	seedContest     string
	seedName        string
	seedContestants int
	seedUsers       int
	seedFee         int64
	seedValue       uint64
	seedSettle      bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           "fairwayctl",
		Short:         "Fairway contest administration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logger.SetLevelString(f.logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&f.dbURL, "db", "", "Postgres connection URL (default FAIRWAY_DATABASE_URL; empty uses an in-process memory store)")
	rootCmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	priceCmd := &cobra.Command{
		Use:   "price FILE",
		Short: "Price a field of contestants read from a JSON file ('-' for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  f.price,
	}
	priceCmd.Flags().IntVar(&f.fieldSize, "field-size", 0, "Tournament field size (default: number of contestants)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		Args:  cobra.NoArgs,
		RunE:  f.migrate,
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a priced contest with generated entries and results",
		Args:  cobra.NoArgs,
		RunE:  f.runSeed,
	}
	seedCmd.Flags().StringVar(&f.seedContest, "contest", "", "Contest id (generated when empty)")
	seedCmd.Flags().StringVar(&f.seedName, "name", "Seeded Invitational", "Contest name")
	seedCmd.Flags().IntVar(&f.seedContestants, "contestants", 60, "Number of contestants in the field")
	seedCmd.Flags().IntVar(&f.seedUsers, "users", 25, "Number of entries, one per user")
	seedCmd.Flags().Int64Var(&f.seedFee, "fee", 1000, "Entry fee in minor units")
	seedCmd.Flags().Uint64Var(&f.seedValue, "seed", 20260412, "Generator seed")
	seedCmd.Flags().BoolVar(&f.seedSettle, "settle", false, "Settle the contest after seeding")

	settleCmd := &cobra.Command{
		Use:   "settle CONTEST_ID...",
		Short: "Settle one contest, or several as a batch",
		Args:  cobra.MinimumNArgs(1),
		RunE:  f.settle,
	}
	settleCmd.Flags().BoolVar(&f.repair, "repair", false, "Repair contests stuck in settling instead of settling live ones")

	repairCmd := &cobra.Command{
		Use:   "repair CONTEST_ID",
		Short: "Complete or re-run a settlement stuck in settling",
		Args:  cobra.ExactArgs(1),
		RunE:  f.repairOne,
	}

	statusCmd := &cobra.Command{
		Use:   "status CONTEST_ID",
		Short: "Show settlement progress of a contest",
		Args:  cobra.ExactArgs(1),
		RunE:  f.status,
	}

	rootCmd.AddCommand(priceCmd, migrateCmd, seedCmd, settleCmd, repairCmd, statusCmd)
	return rootCmd
}

func main() {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
