package services

import (
	"time"

	"staffplan/internal/calendar"
	"staffplan/internal/finance"
	"staffplan/internal/rollup"
	"staffplan/internal/state"
	"staffplan/internal/writeoff"
)

// MaxWorkloadWeeks bounds the workload window a caller may request.
const MaxWorkloadWeeks = 104

// Reports derives the analytics views of a snapshot.
type Reports struct {
	clock   calendar.Clock
	engine  rollup.Engine
	finance *finance.Aggregator
}

func NewReports(clock calendar.Clock) *Reports {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	engine := rollup.New(clock)
	return &Reports{
		clock:   clock,
		engine:  engine,
		finance: finance.NewAggregator(engine),
	}
}

// CurrentYear is the calendar year of the reports' clock.
func (r *Reports) CurrentYear() int {
	return r.clock.Now().Year()
}

// Today is the current time of the reports' clock.
func (r *Reports) Today() time.Time {
	return r.clock.Now()
}

func (r *Reports) Finance(s *state.Snapshot, year int, includeVAT bool) finance.Report {
	return r.finance.YearReport(year, includeVAT, s.Projects, s.People, s.Assignments)
}

func (r *Reports) WriteOffs(s *state.Snapshot, year int) writeoff.Report {
	return writeoff.Build(year, s.OrderedPeople(), s.Projects)
}

// Workload returns the plan/fact series of the team over weeks consecutive
// weeks starting with the week containing from.
func (r *Reports) Workload(s *state.Snapshot, from time.Time, weeks int) []rollup.PersonWorkload {
	window := calendar.WeekWindow(from, 0, min(weeks, MaxWorkloadWeeks))
	return r.engine.TeamWorkload(s.OrderedPeople(), s.Assignments, s.Vacations, window, calendar.FormatWeekRange)
}
