package cli

import (
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"staffplan/internal/calendar"
	"staffplan/internal/cli/formatter"
	"staffplan/internal/finance"
	"staffplan/internal/rollup"
	"staffplan/internal/services"
	"staffplan/internal/writeoff"
)

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show analytics reports",
	}

	cmd.AddCommand(
		newReportFinanceCmd(app),
		newReportWriteOffsCmd(app),
		newReportWorkloadCmd(app),
	)

	return cmd
}

func newReportFinanceCmd(app *App) *cobra.Command {
	var year int
	var vat, asJSON bool

	cmd := &cobra.Command{
		Use:   "finance",
		Short: "Income, cost and profit by month and project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				year = app.Reports.CurrentYear()
			}
			report := app.Reports.Finance(app.State.Snapshot(), year, vat)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderFinance(report))
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Calendar year (default: current year)")
	cmd.Flags().BoolVar(&vat, "vat", false, "Count VAT as an expense")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

func newReportWriteOffsCmd(app *App) *cobra.Command {
	var year int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "writeoffs",
		Short: "Booked hours against staff capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				year = app.Reports.CurrentYear()
			}
			report := app.Reports.WriteOffs(app.State.Snapshot(), year)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderWriteOffs(report))
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Calendar year (default: current year)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

func newReportWorkloadCmd(app *App) *cobra.Command {
	var from string
	var weeks int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "workload",
		Short: "Planned hours per person and week",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := app.Reports.Today()
			if from != "" {
				d, err := calendar.ParseISODateLocal(from)
				if err != nil {
					return fmt.Errorf("invalid --from %q: %w", from, err)
				}
				start = d
			}
			if weeks < 1 || weeks > services.MaxWorkloadWeeks {
				return fmt.Errorf("--weeks must be between 1 and %d", services.MaxWorkloadWeeks)
			}

			rows := app.Reports.Workload(app.State.Snapshot(), calendar.StartOfISOWeek(start), weeks)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderWorkload(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Any day of the first week, YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&weeks, "weeks", 12, "Number of weeks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderFinance(r finance.Report) string {
	headers := []string{"", "Income", "Cost plan", "Cost fact", "Expense", "Profit", "Margin"}
	if r.IncludeVAT {
		headers = append(headers, "VAT")
	}
	row := func(label string, t finance.Totals) []string {
		cells := []string{
			label,
			formatter.Amount(t.Income),
			formatter.Money(t.CostPlan),
			formatter.Money(t.CostFact),
			formatter.Amount(t.Expense),
			formatter.ProfitStyle(int64(t.Profit.Round())).Render(formatter.Amount(t.Profit)),
			formatter.Percent(t.Margin),
		}
		if r.IncludeVAT {
			cells = append(cells, formatter.Amount(t.VAT))
		}
		return cells
	}

	months := make([][]string, 0, len(r.Months)+1)
	for _, m := range r.Months {
		months = append(months, row(m.Month.String()[:3], m.Totals))
	}
	months = append(months, row(formatter.StyleBold.Render(strconv.Itoa(r.Year)), r.Total))

	projects := make([][]string, 0, len(r.Projects))
	for _, p := range r.Projects {
		projects = append(projects, row(p.Name, p.Totals))
	}

	out := formatter.StyleBold.Render(fmt.Sprintf("Finance %d", r.Year)) + "\n\n" +
		formatter.RenderTable(headers, months)
	if len(projects) > 0 {
		headers[0] = "Project"
		out += "\n" + formatter.RenderTable(headers, projects)
	}
	return out
}

func renderWriteOffs(r writeoff.Report) string {
	monthly := make([][]string, len(r.Months))
	for i, key := range r.Months {
		var plan, fact int
		for _, p := range r.People {
			plan += int(p.PlanByMonth[i])
			fact += int(p.FactByMonth[i])
		}
		monthly[i] = []string{key, formatter.Hours(int(r.CapacityByMonth[i])), formatter.Hours(plan), formatter.Hours(fact)}
	}

	people := make([][]string, 0, len(r.People))
	for _, p := range r.People {
		people = append(people, []string{p.Name, p.Role, formatter.Hours(int(p.TotalPlan)), formatter.Hours(int(p.TotalFact))})
	}

	return formatter.StyleBold.Render(fmt.Sprintf("Write-offs %d", r.Year)) + "\n\n" +
		formatter.RenderTable([]string{"Month", "Capacity", "Plan", "Fact"}, monthly) + "\n" +
		formatter.RenderTable([]string{"Person", "Role", "Plan", "Fact"}, people) + "\n" +
		fmt.Sprintf("Capacity %s  plan %s (%s)  fact %s (%s)\n",
			formatter.Hours(int(r.CapacityYear)),
			formatter.Hours(int(r.TotalPlan)), formatter.Percent(r.PlanPercent),
			formatter.Hours(int(r.TotalFact)), formatter.Percent(r.FactPercent))
}

func renderWorkload(rows []rollup.PersonWorkload) string {
	if len(rows) == 0 {
		return formatter.StyleDim.Render("No active staff.") + "\n"
	}

	headers := []string{"Person"}
	for _, w := range rows[0].Weeks {
		label := w.Week
		if d, err := calendar.ParseISODateLocal(w.Week); err == nil {
			label = d.Format("02.01")
		}
		headers = append(headers, label)
	}
	headers = append(headers, "Avg")

	table := make([][]string, 0, len(rows))
	for _, p := range rows {
		cells := []string{p.Name}
		for _, w := range p.Weeks {
			cell := strconv.Itoa(w.PlanHours)
			if w.OnVacation {
				cell += "v"
			}
			cells = append(cells, formatter.LoadStyle(w.PlanHours, w.Overbooked, w.OnVacation).Render(cell))
		}
		cells = append(cells, strconv.Itoa(p.AveragePlanHours))
		table = append(table, cells)
	}

	first := rows[0].Weeks[0].Label
	last := rows[0].Weeks[len(rows[0].Weeks)-1].Label
	return formatter.StyleBold.Render(fmt.Sprintf("Workload %s to %s", first, last)) + "\n" +
		formatter.StyleDim.Render("planned hours per week, v marks a vacation week") + "\n\n" +
		formatter.RenderTable(headers, table)
}
