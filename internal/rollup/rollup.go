// Package rollup folds weekly assignment records into plan and fact totals.
//
// Plan is expressed in FTE (1.0 = 40 hours). Fact is the hours recorded for
// a week or, for a week that has already ended without a record, the planned
// hours: untouched past weeks count as worked exactly as planned.
package rollup

import (
	"math"

	"staffplan/internal/calendar"
	"staffplan/internal/core"
)

// Engine evaluates rollups relative to its clock.
type Engine struct {
	clock calendar.Clock
}

// New returns an engine. A nil clock uses the system clock.
func New(clock calendar.Clock) Engine {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	return Engine{clock: clock}
}

// Round rounds half up, matching how hour figures are entered and shown.
func Round(x float64) float64 {
	return math.Floor(x + 0.5)
}

// FTEToHours converts a full-time share to whole weekly hours.
func FTEToHours(fte float64) int {
	if math.IsNaN(fte) {
		return 0
	}
	return int(Round(fte * core.HoursPerWeek))
}

// HoursToFTE converts weekly hours to a full-time share. Negative input is zero.
func HoursToFTE(hours float64) float64 {
	if math.IsNaN(hours) {
		return 0
	}
	h := math.Max(0, Round(hours))
	return h / core.HoursPerWeek
}

// EffectiveFactHours returns the recorded hours of a, or its planned hours
// when week has elapsed with nothing recorded, or zero otherwise.
func (e Engine) EffectiveFactHours(a core.Assignment, week string) int {
	if a.FactHours != nil && !math.IsNaN(*a.FactHours) {
		return int(math.Max(0, Round(*a.FactHours)))
	}
	if calendar.IsWeekElapsed(e.clock, week) {
		return max(0, FTEToHours(a.FTE))
	}
	return 0
}

// WeeklyPlannedFTE sums the FTE of every assignment of the person in week,
// across all projects.
func WeeklyPlannedFTE(assignments []core.Assignment, personID, week string) float64 {
	var total float64
	for _, a := range assignments {
		if a.PersonID == personID && a.WeekStart == week {
			total += a.FTE
		}
	}
	return total
}

// PlannedHours is WeeklyPlannedFTE expressed in hours.
func PlannedHours(assignments []core.Assignment, personID, week string) int {
	return FTEToHours(WeeklyPlannedFTE(assignments, personID, week))
}

// IsOverbooked reports a person planned for more than a full week. It only
// flags the condition; over-allocation is never rejected.
func IsOverbooked(assignments []core.Assignment, personID, week string) bool {
	return PlannedHours(assignments, personID, week) > core.HoursPerWeek
}

// WeeklyFactHours sums effective fact hours of the person in week.
func (e Engine) WeeklyFactHours(assignments []core.Assignment, personID, week string) int {
	total := 0
	for _, a := range assignments {
		if a.PersonID == personID && a.WeekStart == week {
			total += e.EffectiveFactHours(a, week)
		}
	}
	return total
}

// PersonProjectWeekFact narrows WeeklyFactHours to a single project.
func (e Engine) PersonProjectWeekFact(assignments []core.Assignment, personID, projectID, week string) int {
	total := 0
	for _, a := range assignments {
		if a.PersonID == personID && a.ProjectID == projectID && a.WeekStart == week {
			total += e.EffectiveFactHours(a, week)
		}
	}
	return total
}

// PersonProjectWeekPlanFTE narrows WeeklyPlannedFTE to a single project.
func PersonProjectWeekPlanFTE(assignments []core.Assignment, personID, projectID, week string) float64 {
	var total float64
	for _, a := range assignments {
		if a.PersonID == personID && a.ProjectID == projectID && a.WeekStart == week {
			total += a.FTE
		}
	}
	return total
}

// SumFactOverWeeks folds PersonProjectWeekFact over weeks.
func (e Engine) SumFactOverWeeks(assignments []core.Assignment, personID, projectID string, weeks []string) int {
	total := 0
	for _, w := range weeks {
		total += e.PersonProjectWeekFact(assignments, personID, projectID, w)
	}
	return total
}

// ProjectFactCost is the all-time cost of a project: effective fact hours
// times the rate for the project's type. Assignments of unknown people add nothing.
func (e Engine) ProjectFactCost(project core.Project, people []core.Person, assignments []core.Assignment) core.Money {
	byID := IndexPeople(people)
	var total core.Money
	for _, a := range assignments {
		if a.ProjectID != project.ID {
			continue
		}
		person, ok := byID[a.PersonID]
		if !ok {
			continue
		}
		total += person.RateFor(project.ProjectType).Mul(e.EffectiveFactHours(a, a.WeekStart))
	}
	return total
}

// IndexPeople maps people by id.
func IndexPeople(people []core.Person) map[string]core.Person {
	out := make(map[string]core.Person, len(people))
	for _, p := range people {
		out[p.ID] = p
	}
	return out
}
