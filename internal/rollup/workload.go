package rollup

import "staffplan/internal/core"

// WeekLoad is one cell of the team workload grid.
type WeekLoad struct {
	Week       string `json:"week"`
	Label      string `json:"label"`
	PlanHours  int    `json:"planHours"`
	FactHours  int    `json:"factHours"`
	Overbooked bool   `json:"overbooked"`
	OnVacation bool   `json:"onVacation"`
}

// PersonWorkload is the plan/fact series of one person over a week window.
type PersonWorkload struct {
	PersonID         string     `json:"personId"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	Weeks            []WeekLoad `json:"weeks"`
	AveragePlanHours int        `json:"averagePlanHours"`
}

// TeamWorkload computes the series for every active, non-external person,
// in the order people are given.
func (e Engine) TeamWorkload(people []core.Person, assignments []core.Assignment, vacations map[string]core.StringSet, weeks []string, label func(string) string) []PersonWorkload {
	out := make([]PersonWorkload, 0, len(people))
	for _, p := range people {
		if !p.Active || p.External {
			continue
		}
		pw := PersonWorkload{PersonID: p.ID, Name: p.Name, Role: p.Role, Weeks: make([]WeekLoad, len(weeks))}
		planSum := 0
		for i, w := range weeks {
			plan := PlannedHours(assignments, p.ID, w)
			planSum += plan
			cell := WeekLoad{
				Week:       w,
				PlanHours:  plan,
				FactHours:  e.WeeklyFactHours(assignments, p.ID, w),
				Overbooked: plan > core.HoursPerWeek,
				OnVacation: vacations[p.ID].Has(w),
			}
			if label != nil {
				cell.Label = label(w)
			}
			pw.Weeks[i] = cell
		}
		if len(weeks) > 0 {
			pw.AveragePlanHours = int(Round(float64(planSum) / float64(len(weeks))))
		}
		out = append(out, pw)
	}
	return out
}
