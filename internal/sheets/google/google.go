package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"staffplan/internal/core"
	"staffplan/internal/finance"
	"staffplan/internal/store"
	"staffplan/internal/writeoff"
)

// Default sheet base names. The report year is prefixed to each.
const (
	DefaultFinanceSheet  = "Finance"
	DefaultWriteOffSheet = "WriteOffs"
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	FinanceSheet       string
	WriteOffSheet      string
}

// Client exports year reports into a Google spreadsheet, one sheet per
// report. Each export replaces the sheet's previous content.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	financeBase   string
	writeOffBase  string
}

var _ store.ReportExporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return NewWithService(svc, spreadsheetID, cfg.FinanceSheet, cfg.WriteOffSheet), nil
}

// NewWithService wraps an existing Sheets service. Empty sheet names take
// the defaults.
func NewWithService(svc *gsheet.Service, spreadsheetID, financeSheet, writeOffSheet string) *Client {
	if strings.TrimSpace(financeSheet) == "" {
		financeSheet = DefaultFinanceSheet
	}
	if strings.TrimSpace(writeOffSheet) == "" {
		writeOffSheet = DefaultWriteOffSheet
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		financeBase:   financeSheet,
		writeOffBase:  writeOffSheet,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// GOOGLE_APPLICATION_CREDENTIALS is the fallback when neither source is set.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportReports writes the finance and write-off reports to
// "<year> <Finance>" and "<year> <WriteOffs>", creating missing sheets.
func (c *Client) ExportReports(ctx context.Context, fin finance.Report, wo writeoff.Report) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	financeSheet := yearPrefixedName(c.financeBase, fin.Year)
	writeOffSheet := yearPrefixedName(c.writeOffBase, wo.Year)

	if err := c.ensureSheets(ctx, financeSheet, writeOffSheet); err != nil {
		return err
	}
	if err := c.replaceValues(ctx, financeSheet, FinanceRows(fin)); err != nil {
		return err
	}
	if err := c.replaceValues(ctx, writeOffSheet, WriteOffRows(wo)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Exported reports to Google Sheets",
		"spreadsheet_id", c.spreadsheetID,
		"finance_sheet", financeSheet,
		"writeoff_sheet", writeOffSheet)
	return nil
}

func (c *Client) ensureSheets(ctx context.Context, titles ...string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	existing := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			existing = append(existing, sh.Properties.Title)
		}
	}

	var reqs []*gsheet.Request
	for _, title := range titles {
		if slices.Contains(existing, title) {
			continue
		}
		reqs = append(reqs, &gsheet.Request{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		})
	}
	if len(reqs) == 0 {
		return nil
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheets: %w", err)
	}
	return nil
}

func (c *Client) replaceValues(ctx context.Context, sheet string, rows [][]any) error {
	rng := quoteSheet(sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}
	vr := &gsheet.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", sheet, err)
	}
	return nil
}

var totalsHeader = []any{"Income", "Cost plan", "Cost fact", "VAT", "Expense", "Profit", "Margin %"}

// FinanceRows lays out the finance report: a month table with a total row,
// a blank row, then one row per project.
func FinanceRows(r finance.Report) [][]any {
	rows := make([][]any, 0, len(r.Months)+len(r.Projects)+4)
	rows = append(rows, append([]any{"Month"}, totalsHeader...))
	for _, m := range r.Months {
		rows = append(rows, append([]any{m.Month.String()}, totalsCells(m.Totals)...))
	}
	rows = append(rows, append([]any{"Total"}, totalsCells(r.Total)...))
	rows = append(rows, []any{})
	rows = append(rows, append([]any{"Project", "Status", "Type"}, totalsHeader...))
	for _, p := range r.Projects {
		rows = append(rows, append([]any{p.Name, string(p.Status), string(p.ProjectType)}, totalsCells(p.Totals)...))
	}
	return rows
}

func totalsCells(t finance.Totals) []any {
	return []any{
		amountCell(t.Income), int64(t.CostPlan), int64(t.CostFact), amountCell(t.VAT),
		amountCell(t.Expense), amountCell(t.Profit), round2(t.Margin),
	}
}

// amountCell writes whole amounts as integers and the rest to the cent.
func amountCell(a core.Amount) any {
	if a.IsWhole() {
		return int64(a.Round())
	}
	return a.Decimal().Round(2).InexactFloat64()
}

// WriteOffRows lays out the write-off report: capacity first, then a plan
// and a fact row per person, then the totals with their share of capacity.
func WriteOffRows(r writeoff.Report) [][]any {
	header := []any{"Person", "Role", "Kind"}
	for _, m := range r.Months {
		header = append(header, m)
	}
	header = append(header, "Total", "% of capacity")

	rows := [][]any{header}
	capacity := []any{"Capacity", "", ""}
	for _, h := range r.CapacityByMonth {
		capacity = append(capacity, int(h))
	}
	rows = append(rows, append(capacity, int(r.CapacityYear), ""))

	for _, p := range r.People {
		plan := []any{p.Name, p.Role, "plan"}
		for _, h := range p.PlanByMonth {
			plan = append(plan, int(h))
		}
		fact := []any{p.Name, p.Role, "fact"}
		for _, h := range p.FactByMonth {
			fact = append(fact, int(h))
		}
		rows = append(rows, append(plan, int(p.TotalPlan), ""), append(fact, int(p.TotalFact), ""))
	}

	pad := make([]any, len(r.Months))
	for i := range pad {
		pad[i] = ""
	}
	rows = append(rows,
		append(append([]any{"Total", "", "plan"}, pad...), int(r.TotalPlan), round2(r.PlanPercent)),
		append(append([]any{"Total", "", "fact"}, pad...), int(r.TotalFact), round2(r.FactPercent)),
	)
	return rows
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

// quoteSheet quotes a sheet title for use in A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
