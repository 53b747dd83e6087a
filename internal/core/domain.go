package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"staffplan/internal/calendar"
)

const (
	// HoursPerWeek is the number of hours in one full-time week (FTE 1.0).
	HoursPerWeek = 40
	// HoursPerWorkingDay is used for monthly capacity.
	HoursPerWorkingDay = 8
	// FallbackRole is assigned to people whose role was deleted.
	FallbackRole = "other"
)

const (
	StatusActive  ProjectStatus = "active"
	StatusOnHold  ProjectStatus = "onhold"
	StatusDone    ProjectStatus = "done"
	StatusPlanned ProjectStatus = "planned"

	ProjectInternal ProjectType = "internal"
	ProjectExternal ProjectType = "external"

	VATNet   VATMode = "net"
	VATGross VATMode = "gross"

	KindPlan WriteOffKind = "plan"
	KindFact WriteOffKind = "fact"
)

type (
	ProjectStatus string
	ProjectType   string
	VATMode       string
	WriteOffKind  string

	Person struct {
		ID              string  `json:"id"`
		Name            string  `json:"name"`
		Role            string  `json:"role"`
		CapacityPerWeek float64 `json:"capacityPerWeek"`
		Active          bool    `json:"active"`
		External        bool    `json:"external"`
		RateInternal    Money   `json:"rateInternal"`
		RateExternal    Money   `json:"rateExternal"`
		Photo           string  `json:"photo,omitempty"`
	}

	// Contract is a dated sale on a project. Amount is VAT-exclusive for
	// VATNet and VAT-inclusive for VATGross.
	Contract struct {
		ID      string  `json:"id"`
		Date    string  `json:"date"`
		Amount  Amount  `json:"amount"`
		VATMode VATMode `json:"vatMode"`
	}

	// WriteOffEntry books hours of one person against a project for a month.
	WriteOffEntry struct {
		ID       string       `json:"id"`
		PersonID string       `json:"personId"`
		MonthStr string       `json:"monthStr"`
		Hours    Hours        `json:"hours"`
		Type     WriteOffKind `json:"type"`
	}

	Project struct {
		ID                  string           `json:"id"`
		Name                string           `json:"name"`
		Status              ProjectStatus    `json:"status"`
		Color               string           `json:"color"`
		BudgetWithVAT       Amount           `json:"budgetWithVAT"`
		BudgetWithoutVAT    Amount           `json:"budgetWithoutVAT"`
		ProjectType         ProjectType      `json:"projectType"`
		CostEditable        Amount           `json:"costEditable"`
		CostEditableTouched bool             `json:"costEditableTouched"`
		StartDate           string           `json:"startDate"`
		EndDate             string           `json:"endDate"`
		Contracts           []Contract       `json:"contracts"`
		IsArchived          bool             `json:"isArchived,omitempty"`
		ServiceName         string           `json:"serviceName,omitempty"`
		DealType            string           `json:"dealType,omitempty"`
		AgreementType       string           `json:"agreementType,omitempty"`
		Comments            string           `json:"comments,omitempty"`
		WriteOffs           []WriteOffEntry  `json:"writeOffs,omitempty"`
		CustomRates         map[string]Money `json:"customRates,omitempty"`
	}

	// Assignment is the planned share (FTE) and optionally the recorded
	// hours of one person on one project for one week.
	Assignment struct {
		ID        string   `json:"id"`
		PersonID  string   `json:"personId"`
		ProjectID string   `json:"projectId"`
		WeekStart string   `json:"weekStart"`
		FTE       float64  `json:"fte"`
		FactHours *float64 `json:"factHours,omitempty"`
	}
)

var (
	ErrEmptyName       = errors.New("empty name")
	ErrInvalidRate     = errors.New("invalid rate")
	ErrInvalidStatus   = errors.New("invalid project status")
	ErrInvalidType     = errors.New("invalid project type")
	ErrInvalidVATMode  = errors.New("invalid vat mode")
	ErrInvalidKind     = errors.New("invalid write-off type")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidWeek     = errors.New("week start must be a monday")
	ErrInvalidFTE      = errors.New("invalid fte")
	ErrInvalidHours    = errors.New("invalid hours")
	ErrMissingIdentity = errors.New("missing identifier")
)

// DefaultRoles returns the initial role list.
func DefaultRoles() []string {
	return []string{"dev", "designer", "manager", "pm", "qa", FallbackRole}
}

func (s ProjectStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusOnHold, StatusDone, StatusPlanned:
		return true
	}
	return false
}

func (t ProjectType) IsValid() bool {
	return t == ProjectInternal || t == ProjectExternal
}

func (m VATMode) IsValid() bool {
	return m == VATNet || m == VATGross
}

func (k WriteOffKind) IsValid() bool {
	return k == KindPlan || k == KindFact
}

func (p Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.RateInternal < 0 || p.RateExternal < 0 {
		return ErrInvalidRate
	}
	return nil
}

// RateFor returns the hourly rate that applies on a project of the given type.
func (p Person) RateFor(t ProjectType) Money {
	if t == ProjectInternal {
		return p.RateInternal
	}
	return p.RateExternal
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, p.Status)
	}
	if !p.ProjectType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, p.ProjectType)
	}
	for _, c := range p.Contracts {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("contract %s: %w", c.ID, err)
		}
	}
	return nil
}

func (c Contract) Validate() error {
	if _, err := calendar.ParseISODateLocal(c.Date); err != nil {
		return err
	}
	if !c.VATMode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidVATMode, c.VATMode)
	}
	return nil
}

func (w WriteOffEntry) Validate() error {
	if w.PersonID == "" {
		return ErrMissingIdentity
	}
	if _, err := ParseMonthKey(w.MonthStr); err != nil {
		return err
	}
	if w.Hours < 0 {
		return ErrInvalidHours
	}
	if !w.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, w.Type)
	}
	return nil
}

func (a Assignment) Validate() error {
	if a.PersonID == "" || a.ProjectID == "" {
		return ErrMissingIdentity
	}
	d, err := calendar.ParseISODateLocal(a.WeekStart)
	if err != nil {
		return err
	}
	if d.Weekday() != time.Monday {
		return fmt.Errorf("%w: %s", ErrInvalidWeek, a.WeekStart)
	}
	if a.FTE < 0 {
		return ErrInvalidFTE
	}
	if a.FactHours != nil && *a.FactHours < 0 {
		return ErrInvalidHours
	}
	return nil
}

// UnmarshalJSON reads fte and factHours leniently. A non-numeric fte is
// zero; a null or non-numeric factHours is treated as not recorded.
func (a *Assignment) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		PersonID  string          `json:"personId"`
		ProjectID string          `json:"projectId"`
		WeekStart string          `json:"weekStart"`
		FTE       json.RawMessage `json:"fte"`
		FactHours json.RawMessage `json:"factHours"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Assignment{
		ID:        raw.ID,
		PersonID:  raw.PersonID,
		ProjectID: raw.ProjectID,
		WeekStart: raw.WeekStart,
		FTE:       lenientNumber(raw.FTE).InexactFloat64(),
	}
	if d, ok := jsonNumber(raw.FactHours); ok {
		h := d.InexactFloat64()
		a.FactHours = &h
	}
	return nil
}

// HasFact reports whether hours were recorded for the assignment.
func (a Assignment) HasFact() bool {
	return a.FactHours != nil
}

// ParseMonthKey parses a YYYY-MM write-off month.
func ParseMonthKey(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return t, nil
}
