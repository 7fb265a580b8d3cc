/*
Package report renders payroll and cost overviews as xlsx workbooks.

PURPOSE:
  Office staff work in spreadsheets. The API and crewctl hand out the
  same numbers as the JSON endpoints, laid out as one sheet per report
  with a bold header row and a frozen first row.

KEY CONCEPTS:
  - Payroll: one row per time-sheet entry of the week, then a totals row.
    Entries without a rate show "unavailable" instead of amounts.
  - Costs: one row per phase with budget, committed cost and variance.
    A phase without a budget leaves budget and variance blank, never 0.

  Amounts are written as numbers with a two-decimal format. Conversion to
  float happens here only; all arithmetic upstream stays decimal.

SEE ALSO:
  - earnings/service.go: Payroll
  - costs/aggregate.go: ProjectCostSummary
*/
package report

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/crew-engine/costs"
	"github.com/warp/crew-engine/domain"
	"github.com/warp/crew-engine/earnings"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	PayrollSheet = "Payroll"
	CostsSheet   = "Costs"

	unavailable = "unavailable"
)

var (
	payrollHeader = []string{"Date", "Project", "Hours", "Type", "Rate", "Regular hours", "Overtime hours", "Regular pay", "Overtime pay", "Gross pay"}
	costsHeader   = []string{"Phase", "Status", "Start", "End", "Progress %", "Budget", "Materials", "Labor (planned)", "Labor (actual)", "Expenses", "Total planned", "Total committed", "Variance"}
)

// Payroll builds the weekly payroll workbook of one worker.
func Payroll(p earnings.Payroll, workerName string) ([]byte, error) {
	b, err := newBook(PayrollSheet, payrollHeader)
	if err != nil {
		return nil, err
	}
	defer b.f.Close()

	title := fmt.Sprintf("%s %s (%s)", workerName, p.Label, p.Week)
	if err := b.f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "crew-engine"}); err != nil {
		return nil, fmt.Errorf("set document properties: %w", err)
	}

	row := 2
	for _, line := range p.Lines {
		e := line.Entry
		b.set(1, row, e.WorkDate.String())
		b.set(2, row, string(e.ProjectID))
		b.amount(3, row, e.Hours)
		if line.Unavailable() {
			b.set(4, row, unavailable)
			row++
			continue
		}
		b.set(4, row, string(line.Rate.PaymentType))
		if line.Rate.PaymentType == domain.PaymentSalary {
			b.amount(5, row, line.Rate.MonthlySalary)
		} else {
			b.amount(5, row, line.Rate.HourlyRate)
		}
		b.result(6, row, *line.Result)
		row++
	}

	b.set(1, row, "Total")
	b.set(4, row, string(p.Totals.PaymentType))
	b.result(6, row, p.Totals)
	if p.Unavailable > 0 {
		b.set(2, row, fmt.Sprintf("%d unavailable", p.Unavailable))
	}
	if err := b.bold(row); err != nil {
		return nil, err
	}
	return b.bytes()
}

// Costs builds the cost overview of a project. phases supplies names and
// dates; a summary without a matching phase is listed by id.
func Costs(project domain.Project, phases []domain.Phase, summary costs.ProjectCostSummary) ([]byte, error) {
	b, err := newBook(CostsSheet, costsHeader)
	if err != nil {
		return nil, err
	}
	defer b.f.Close()

	if err := b.f.SetDocProps(&excelize.DocProperties{Title: project.Name + " costs", Creator: "crew-engine"}); err != nil {
		return nil, fmt.Errorf("set document properties: %w", err)
	}

	byID := make(map[domain.PhaseID]domain.Phase, len(phases))
	for _, p := range phases {
		byID[p.ID] = p
	}

	row := 2
	for _, s := range summary.Phases {
		p, ok := byID[s.PhaseID]
		if !ok {
			p = domain.Phase{ID: s.PhaseID, Name: string(s.PhaseID)}
		}
		b.set(1, row, p.Name)
		b.set(2, row, string(p.Status))
		if p.StartDate != nil {
			b.set(3, row, p.StartDate.String())
		}
		if p.EndDate != nil {
			b.set(4, row, p.EndDate.String())
		}
		b.set(5, row, p.Progress)
		b.optional(6, row, s.Budget)
		b.amount(7, row, s.MaterialCost)
		b.amount(8, row, s.LaborCostPlanned)
		b.amount(9, row, s.LaborCostActual)
		b.amount(10, row, s.ExpenseCost)
		b.amount(11, row, s.TotalPlanned)
		b.amount(12, row, s.TotalCommitted)
		b.optional(13, row, s.Variance)
		row++
	}

	b.set(1, row, "Total")
	b.optional(6, row, summary.Budget)
	b.amount(11, row, summary.TotalPlanned)
	b.amount(12, row, summary.TotalCommitted)
	b.optional(13, row, summary.Variance)
	if err := b.bold(row); err != nil {
		return nil, err
	}
	return b.bytes()
}

// =============================================================================
// WORKBOOK HELPERS
// =============================================================================

type book struct {
	f     *excelize.File
	sheet string
	cols  int
	money int
	err   error
}

func newBook(sheet string, header []string) (*book, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	// Built-in format 4 is "#,##0.00".
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("money style: %w", err)
	}

	b := &book{f: f, sheet: sheet, cols: len(header), money: money}
	for i, name := range header {
		b.set(i+1, 1, name)
	}
	lastCol := cellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", lastCol, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	return b, nil
}

// set records the first error and ignores later writes.
func (b *book) set(col, row int, v any) {
	if b.err != nil {
		return
	}
	b.err = b.f.SetCellValue(b.sheet, cellName(col, row), v)
}

func (b *book) amount(col, row int, d decimal.Decimal) {
	b.set(col, row, d.InexactFloat64())
	if b.err == nil {
		cell := cellName(col, row)
		b.err = b.f.SetCellStyle(b.sheet, cell, cell, b.money)
	}
}

// optional leaves the cell empty for nil.
func (b *book) optional(col, row int, d *decimal.Decimal) {
	if d != nil {
		b.amount(col, row, *d)
	}
}

func (b *book) result(col, row int, r earnings.Result) {
	b.amount(col, row, r.RegularHours)
	b.amount(col+1, row, r.OvertimeHours)
	b.amount(col+2, row, r.RegularPay)
	b.amount(col+3, row, r.OvertimePay)
	b.amount(col+4, row, r.GrossPay)
}

func (b *book) bold(row int) error {
	if b.err != nil {
		return b.err
	}
	style, err := b.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	if err != nil {
		return fmt.Errorf("totals style: %w", err)
	}
	return b.f.SetCellStyle(b.sheet, cellName(1, row), cellName(b.cols, row), style)
}

func (b *book) bytes() ([]byte, error) {
	if b.err != nil {
		return nil, fmt.Errorf("write cells: %w", b.err)
	}
	if err := b.f.SetColWidth(b.sheet, "A", "A", 24); err != nil {
		return nil, err
	}
	if err := b.f.SetColWidth(b.sheet, "B", cellCol(b.cols), 15); err != nil {
		return nil, err
	}
	buf, err := b.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func cellCol(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}
