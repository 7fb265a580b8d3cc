package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/domain/store"
	"github.com/warp/crew-engine/earnings"
	"github.com/warp/crew-engine/factory"
	"github.com/warp/crew-engine/rates"
	"github.com/warp/crew-engine/scenario"
	"github.com/warp/crew-engine/store/sqlite"
)

// repository is what every command reads from.
type repository interface {
	domain.Repository
	factory.PolicyStore
}

type rootOptions struct {
	dbPath     string
	scenarioID string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "crewctl",
		Short: "Crew pay and phase cost tool",
		Long: `crewctl computes weekly payroll, project cost overviews and phase
calendars from the crew-engine database, or from a built-in scenario.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "crew.db", "SQLite database path")
	cmd.PersistentFlags().StringVar(&opts.scenarioID, "scenario", "", "Use a built-in scenario in memory instead of --db")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")

	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newPayrollCmd(opts))
	cmd.AddCommand(newCostsCmd(opts))
	cmd.AddCommand(newCalendarCmd(opts))
	return cmd
}

func (o *rootOptions) logger() *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// open returns the repository to read from and a function releasing it.
func (o *rootOptions) open(ctx context.Context) (repository, func(), error) {
	if o.scenarioID != "" {
		sc, ok := scenario.Get(o.scenarioID)
		if !ok {
			return nil, nil, fmt.Errorf("unknown scenario %q", o.scenarioID)
		}
		repo := store.NewMemory()
		if _, err := scenario.Load(ctx, repo, sc); err != nil {
			return nil, nil, fmt.Errorf("load scenario %s: %w", sc.ID, err)
		}
		return repo, func() {}, nil
	}

	db, err := sqlite.New(o.dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", o.dbPath, err)
	}
	return db, func() { _ = db.Close() }, nil
}

func (o *rootOptions) earnings(repo repository) *earnings.Service {
	return earnings.NewService(rates.NewResolver(repo), repo,
		factory.NewRegistry(repo, earnings.DefaultPolicy()), o.logger())
}

// writeOutput writes data to path, or to the command's stdout when path
// is empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func parseDay(s string) (domain.Date, error) {
	if s == "" {
		return domain.Today(), nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return domain.Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return d, nil
}
