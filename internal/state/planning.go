package state

import (
	"fmt"
	"slices"
	"time"

	"staffplan/internal/calendar"
	"staffplan/internal/core"
	"staffplan/internal/rollup"
)

// SetAssignmentCell writes one cell of the weekly planning grid: the plan
// or fact hours of a person on a project in the week starting at week.
// Empty input is zero. The (person, project, week) record is replaced; it
// is removed when both plan and fact end up zero.
func (a *AppState) SetAssignmentCell(personID, projectID, week, value string, kind core.WriteOffKind) error {
	hours, err := core.ParseHours(value)
	if err != nil {
		return err
	}
	if hours < 0 {
		return core.ErrInvalidHours
	}
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}
	if err := checkMonday(week); err != nil {
		return err
	}
	return a.update(func(s *Snapshot) ([]Field, error) {
		match := func(as core.Assignment) bool {
			return as.PersonID == personID && as.ProjectID == projectID && as.WeekStart == week
		}
		i := slices.IndexFunc(s.Assignments, match)

		var plan, fact int
		id := ""
		if i >= 0 {
			cur := s.Assignments[i]
			id = cur.ID
			plan = rollup.FTEToHours(cur.FTE)
			if cur.FactHours != nil {
				fact = int(rollup.Round(*cur.FactHours))
			}
		}
		if kind == core.KindPlan {
			plan = hours
		} else {
			fact = hours
		}

		rest := slices.DeleteFunc(s.Assignments, match)
		if plan == 0 && fact == 0 {
			s.Assignments = rest
			return []Field{FieldAssignments}, nil
		}
		if id == "" {
			id = a.newID()
		}
		factHours := float64(fact)
		next := core.Assignment{
			ID:        id,
			PersonID:  personID,
			ProjectID: projectID,
			WeekStart: week,
			FTE:       rollup.HoursToFTE(float64(plan)),
			FactHours: &factHours,
		}
		if i < 0 {
			s.Assignments = append(rest, next)
		} else {
			s.Assignments = slices.Insert(rest, i, next)
		}
		return []Field{FieldAssignments}, nil
	})
}

// ToggleVacation marks or unmarks the week starting at week as vacation.
func (a *AppState) ToggleVacation(personID, week string) error {
	if err := checkMonday(week); err != nil {
		return err
	}
	return a.update(func(s *Snapshot) ([]Field, error) {
		weeks, ok := s.Vacations[personID]
		if !ok {
			weeks = core.StringSet{}
			s.Vacations[personID] = weeks
		}
		if weeks.Has(week) {
			weeks.Remove(week)
		} else {
			weeks.Add(week)
		}
		return []Field{FieldVacations}, nil
	})
}

// AddVacationRange marks every week touched by the days from..to
// (inclusive) as vacation.
func (a *AppState) AddVacationRange(personID, from, to string) error {
	start, err := calendar.ParseISODateLocal(from)
	if err != nil {
		return err
	}
	end, err := calendar.ParseISODateLocal(to)
	if err != nil {
		return err
	}
	return a.update(func(s *Snapshot) ([]Field, error) {
		weeks, ok := s.Vacations[personID]
		if !ok {
			weeks = core.StringSet{}
		}
		for d := start; !d.After(end); d = calendar.AddDays(d, 1) {
			weeks.Add(calendar.FormatISO(calendar.StartOfISOWeek(d)))
		}
		if len(weeks) == 0 {
			return nil, nil
		}
		s.Vacations[personID] = weeks
		return []Field{FieldVacations}, nil
	})
}

// VacationWeeks returns the vacation weeks of a person in ascending order.
func (a *AppState) VacationWeeks(personID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.Vacations[personID].Sorted()
}

func checkMonday(week string) error {
	d, err := calendar.ParseISODateLocal(week)
	if err != nil {
		return err
	}
	if d.Weekday() != time.Monday || calendar.FormatISO(d) != week {
		return fmt.Errorf("%w: %s", core.ErrInvalidWeek, week)
	}
	return nil
}
