package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/earnings"
	"github.com/warp/crew-engine/report"
)

func newPayrollCmd(root *rootOptions) *cobra.Command {
	var (
		workerID string
		date     string
		xlsxPath string
		currency string
	)
	cmd := &cobra.Command{
		Use:   "payroll",
		Short: "Weekly payroll of a worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(date)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			repo, release, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer release()

			worker, err := repo.GetWorker(ctx, domain.WorkerID(workerID))
			if err != nil {
				return err
			}
			p, err := root.earnings(repo).Weekly(ctx, worker.OrgID, worker.ID, day)
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				data, err := report.Payroll(p, worker.Name)
				if err != nil {
					return err
				}
				return writeOutput(cmd, xlsxPath, data)
			}
			printPayroll(cmd.OutOrStdout(), worker, p, currency)
			return nil
		},
	}
	cmd.Flags().StringVar(&workerID, "worker", "", "Worker id")
	cmd.Flags().StringVar(&date, "date", "", "Any day of the week (default today)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write an xlsx workbook to this path instead")
	cmd.Flags().StringVar(&currency, "currency", domain.DefaultCurrencySymbol, "Currency symbol")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func printPayroll(out io.Writer, w domain.Worker, p earnings.Payroll, symbol string) {
	fmt.Fprintf(out, "%s, week %s (%s)\n", w.Name, p.Label, p.Week)
	fmt.Fprintln(out, "--------------------------------------------------------")
	for _, l := range p.Lines {
		if l.Unavailable() {
			fmt.Fprintf(out, "%-12s%8sh  %s\n", l.Entry.WorkDate, l.Entry.Hours.StringFixed(2), "no rate")
			continue
		}
		ot := ""
		if l.Result.IsOvertime {
			ot = fmt.Sprintf("  (%sh overtime)", l.Result.OvertimeHours.StringFixed(2))
		}
		fmt.Fprintf(out, "%-12s%8sh  %12s%s\n", l.Entry.WorkDate, l.Entry.Hours.StringFixed(2),
			domain.FormatMoney(l.Result.GrossPay, symbol), ot)
	}
	fmt.Fprintln(out, "--------------------------------------------------------")
	total := p.Totals.RegularHours.Add(p.Totals.OvertimeHours)
	fmt.Fprintf(out, "%-12s%8sh  %12s\n", "Total", total.StringFixed(2), domain.FormatMoney(p.Totals.GrossPay, symbol))
	if p.Unavailable > 0 {
		fmt.Fprintf(out, "%d line(s) without a rate are not included\n", p.Unavailable)
	}
}
