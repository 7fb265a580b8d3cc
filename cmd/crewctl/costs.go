package main

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/crew-engine/costs"
	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/report"
)

func newCostsCmd(root *rootOptions) *cobra.Command {
	var (
		projectID string
		xlsxPath  string
		currency  string
	)
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Cost overview of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, release, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer release()

			project, err := repo.GetProject(ctx, domain.ProjectID(projectID))
			if err != nil {
				return err
			}
			phases, err := repo.ListPhases(ctx, project.ID)
			if err != nil {
				return err
			}
			sum, err := costs.NewService(repo).ProjectSummary(ctx, project.ID)
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				data, err := report.Costs(project, phases, sum)
				if err != nil {
					return err
				}
				return writeOutput(cmd, xlsxPath, data)
			}
			printCosts(cmd.OutOrStdout(), project, phases, sum, currency)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write an xlsx workbook to this path instead")
	cmd.Flags().StringVar(&currency, "currency", domain.DefaultCurrencySymbol, "Currency symbol")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func printCosts(out io.Writer, p domain.Project, phases []domain.Phase, sum costs.ProjectCostSummary, symbol string) {
	names := make(map[domain.PhaseID]string, len(phases))
	for _, ph := range phases {
		names[ph.ID] = ph.Name
	}
	money := func(v *decimal.Decimal) string {
		if v == nil {
			return "-"
		}
		return domain.FormatMoney(*v, symbol)
	}

	fmt.Fprintf(out, "%s\n", p.Name)
	fmt.Fprintln(out, "----------------------------------------------------------------")
	fmt.Fprintf(out, "%-20s%14s%14s%14s\n", "Phase", "Budget", "Committed", "Variance")
	for _, s := range sum.Phases {
		flag := ""
		if s.OverBudget() {
			flag = "  over budget"
		}
		fmt.Fprintf(out, "%-20s%14s%14s%14s%s\n", names[s.PhaseID], money(s.Budget),
			domain.FormatMoney(s.TotalCommitted, symbol), money(s.Variance), flag)
	}
	fmt.Fprintln(out, "----------------------------------------------------------------")
	fmt.Fprintf(out, "%-20s%14s%14s%14s\n", "Total", money(sum.Budget),
		domain.FormatMoney(sum.TotalCommitted, symbol), money(sum.Variance))
}
