// Package finance derives income, cost, VAT, profit and margin per month and
// per project for a calendar year.
package finance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"staffplan/internal/calendar"
	"staffplan/internal/core"
	"staffplan/internal/rollup"
)

var (
	// VATRate is applied to every contract; only the inclusion mode varies.
	VATRate    = decimal.RequireFromString("0.2")
	vatDivisor = decimal.NewFromInt(1).Add(VATRate)
	hundred    = decimal.NewFromInt(100)
)

// Totals are the figures shared by months, projects and the year. Costs
// are whole units; the contract side keeps the fraction of the amounts.
type Totals struct {
	Income   core.Amount `json:"income"`
	CostPlan core.Money  `json:"costPlan"`
	CostFact core.Money  `json:"costFact"`
	VAT      core.Amount `json:"vat"`
	Expense  core.Amount `json:"expense"`
	Profit   core.Amount `json:"profit"`
	Margin   float64     `json:"margin"`
}

type MonthTotals struct {
	Month time.Month `json:"month"`
	Totals
}

type ProjectTotals struct {
	ProjectID   string             `json:"projectId"`
	Name        string             `json:"name"`
	Status      core.ProjectStatus `json:"status"`
	ProjectType core.ProjectType   `json:"projectType"`
	Totals
}

// Report is the financial view of one year.
type Report struct {
	Year       int             `json:"year"`
	IncludeVAT bool            `json:"includeVat"`
	Months     []MonthTotals   `json:"months"`
	Projects   []ProjectTotals `json:"projects"`
	Total      Totals          `json:"total"`
}

// Aggregator builds reports using a rollup engine for fact hours.
type Aggregator struct {
	engine rollup.Engine
}

func NewAggregator(engine rollup.Engine) *Aggregator {
	return &Aggregator{engine: engine}
}

// SplitVAT returns the income and VAT carried by a contract. Gross amounts
// have their net part rounded to whole units and VAT is the remainder, so
// income+vat equals the amount exactly. Net amounts are income as-is with
// VAT rounded to whole units on top.
func SplitVAT(c core.Contract) (income, vat core.Amount) {
	if c.VATMode == core.VATGross {
		net := core.AmountOf(core.MoneyFromDecimal(c.Amount.Decimal().Div(vatDivisor)))
		return net, c.Amount.Sub(net)
	}
	return c.Amount, core.AmountOf(core.MoneyFromDecimal(c.Amount.Decimal().Mul(VATRate)))
}

// YearReport aggregates every non-archived project. Contracts count in the
// month of their date; assignments count in the month of their week start.
// An assignment of an unknown person costs nothing.
func (a *Aggregator) YearReport(year int, includeVAT bool, projects []core.Project, people []core.Person, assignments []core.Assignment) Report {
	months := make([]MonthTotals, 12)
	for i := range months {
		months[i].Month = time.Month(i + 1)
	}

	byProject := make(map[string][]core.Assignment)
	for _, as := range assignments {
		byProject[as.ProjectID] = append(byProject[as.ProjectID], as)
	}
	peopleByID := rollup.IndexPeople(people)

	rows := make([]ProjectTotals, 0, len(projects))
	for _, p := range projects {
		if p.IsArchived {
			continue
		}
		row := ProjectTotals{ProjectID: p.ID, Name: p.Name, Status: p.Status, ProjectType: p.ProjectType}

		for _, c := range p.Contracts {
			y, m, ok := calendar.YearMonth(c.Date)
			if !ok || y != year {
				continue
			}
			income, vat := SplitVAT(c)
			row.Income = row.Income.Add(income)
			row.VAT = row.VAT.Add(vat)
			months[m-1].Income = months[m-1].Income.Add(income)
			months[m-1].VAT = months[m-1].VAT.Add(vat)
		}

		for _, as := range byProject[p.ID] {
			y, m, ok := calendar.YearMonth(as.WeekStart)
			if !ok || y != year {
				continue
			}
			var rate core.Money
			if person, found := peopleByID[as.PersonID]; found {
				rate = person.RateFor(p.ProjectType)
			}
			plan := rate.Mul(rollup.FTEToHours(as.FTE))
			fact := rate.Mul(a.engine.EffectiveFactHours(as, as.WeekStart))
			row.CostPlan += plan
			row.CostFact += fact
			months[m-1].CostPlan += plan
			months[m-1].CostFact += fact
		}

		row.Totals.settle(includeVAT)
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Profit.Cmp(rows[j].Profit) > 0
	})

	var total Totals
	for i := range months {
		months[i].Totals.settle(includeVAT)
		total.Income = total.Income.Add(months[i].Income)
		total.CostPlan += months[i].CostPlan
		total.CostFact += months[i].CostFact
		total.VAT = total.VAT.Add(months[i].VAT)
	}
	total.settle(includeVAT)

	return Report{Year: year, IncludeVAT: includeVAT, Months: months, Projects: rows, Total: total}
}

func (t *Totals) settle(includeVAT bool) {
	t.Expense = core.AmountOf(t.CostFact)
	if includeVAT {
		t.Expense = t.Expense.Add(t.VAT)
	}
	t.Profit = t.Income.Sub(t.Expense)
	t.Margin = 0
	if t.Income.Decimal().IsPositive() {
		t.Margin = t.Profit.Decimal().Div(t.Income.Decimal()).Mul(hundred).InexactFloat64()
	}
}
