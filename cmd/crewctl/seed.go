package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/crew-engine/scenario"
	"github.com/warp/crew-engine/store/sqlite"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	var (
		file  string
		reset bool
		list  bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a scenario into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				all, err := scenario.Builtins()
				if err != nil {
					return err
				}
				for _, sc := range all {
					fmt.Fprintf(out, "%-14s%s\n", sc.ID, sc.Description)
				}
				return nil
			}

			var sc scenario.Scenario
			switch {
			case file != "":
				var err error
				if sc, err = scenario.LoadFile(file); err != nil {
					return err
				}
			case root.scenarioID != "":
				var ok bool
				if sc, ok = scenario.Get(root.scenarioID); !ok {
					return fmt.Errorf("unknown scenario %q", root.scenarioID)
				}
			default:
				return errors.New("seed needs --scenario or --file")
			}

			db, err := sqlite.New(root.dbPath)
			if err != nil {
				return fmt.Errorf("open %s: %w", root.dbPath, err)
			}
			defer db.Close()

			ctx := cmd.Context()
			if reset {
				if err := db.Reset(ctx); err != nil {
					return err
				}
			}
			counts, err := scenario.Load(ctx, db, sc)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Loaded %s into %s\n", sc.ID, root.dbPath)
			fmt.Fprintln(out, "--------------------------------")
			fmt.Fprintf(out, "%-14s%d\n", "Policies", counts.Policies)
			fmt.Fprintf(out, "%-14s%d\n", "Workers", counts.Workers)
			fmt.Fprintf(out, "%-14s%d\n", "Rates", counts.Rates)
			fmt.Fprintf(out, "%-14s%d\n", "Time sheets", counts.Entries)
			fmt.Fprintf(out, "%-14s%d\n", "Projects", counts.Projects)
			fmt.Fprintf(out, "%-14s%d\n", "Phases", counts.Phases)
			fmt.Fprintf(out, "%-14s%d\n", "Cost lines", counts.CostLines)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML seed file instead of a built-in scenario")
	cmd.Flags().BoolVar(&reset, "reset", false, "Delete all data first")
	cmd.Flags().BoolVar(&list, "list", false, "List the built-in scenarios")
	return cmd
}
