// Package writeoff reports monthly write-off hours against team capacity
// and maintains write-off entry lists.
package writeoff

import (
	"time"

	"staffplan/internal/calendar"
	"staffplan/internal/core"
)

// PersonRow is the monthly write-off of one staff member.
type PersonRow struct {
	PersonID    string       `json:"personId"`
	Name        string       `json:"name"`
	Role        string       `json:"role"`
	PlanByMonth []core.Hours `json:"planByMonth"`
	FactByMonth []core.Hours `json:"factByMonth"`
	TotalPlan   core.Hours   `json:"totalPlan"`
	TotalFact   core.Hours   `json:"totalFact"`
}

// Report compares write-offs of a year with the available staff hours.
type Report struct {
	Year            int          `json:"year"`
	Months          []string     `json:"months"`
	CapacityByMonth []core.Hours `json:"capacityByMonth"`
	CapacityYear    core.Hours   `json:"capacityYear"`
	People          []PersonRow  `json:"people"`
	TotalPlan       core.Hours   `json:"totalPlan"`
	TotalFact       core.Hours   `json:"totalFact"`
	PlanPercent     float64      `json:"planPercent"`
	FactPercent     float64      `json:"factPercent"`
}

// Build computes the write-off report of year. Staff are active,
// non-external people. Entries of every project count, archived ones
// included. An entry whose type is not plan counts as fact.
func Build(year int, people []core.Person, projects []core.Project) Report {
	r := Report{
		Year:            year,
		Months:          make([]string, 12),
		CapacityByMonth: make([]core.Hours, 12),
	}
	monthIdx := make(map[string]int, 12)
	for i := range r.Months {
		key := calendar.MonthKey(year, time.Month(i+1))
		r.Months[i] = key
		monthIdx[key] = i
	}

	staff := make([]core.Person, 0, len(people))
	for _, p := range people {
		if p.Active && !p.External {
			staff = append(staff, p)
		}
	}

	for i := range r.CapacityByMonth {
		days := calendar.WorkingDaysInMonth(year, time.Month(i+1))
		r.CapacityByMonth[i] = core.Hours(len(staff) * days * core.HoursPerWorkingDay)
		r.CapacityYear += r.CapacityByMonth[i]
	}

	rows := make(map[string]*PersonRow, len(staff))
	r.People = make([]PersonRow, len(staff))
	for i, p := range staff {
		r.People[i] = PersonRow{
			PersonID:    p.ID,
			Name:        p.Name,
			Role:        p.Role,
			PlanByMonth: make([]core.Hours, 12),
			FactByMonth: make([]core.Hours, 12),
		}
		rows[p.ID] = &r.People[i]
	}

	for _, prj := range projects {
		for _, w := range prj.WriteOffs {
			row, ok := rows[w.PersonID]
			if !ok {
				continue
			}
			idx, ok := monthIdx[w.MonthStr]
			if !ok {
				continue
			}
			if w.Type == core.KindPlan {
				row.PlanByMonth[idx] += w.Hours
				row.TotalPlan += w.Hours
			} else {
				row.FactByMonth[idx] += w.Hours
				row.TotalFact += w.Hours
			}
		}
	}

	for _, row := range r.People {
		r.TotalPlan += row.TotalPlan
		r.TotalFact += row.TotalFact
	}
	if r.CapacityYear > 0 {
		r.PlanPercent = float64(r.TotalPlan) / float64(r.CapacityYear) * 100
		r.FactPercent = float64(r.TotalFact) / float64(r.CapacityYear) * 100
	}
	return r
}

type entryKey struct {
	personID string
	month    string
	kind     core.WriteOffKind
}

func keyOf(e core.WriteOffEntry) entryKey {
	return entryKey{e.PersonID, e.MonthStr, e.Type}
}

// Upsert sets the hours of (personID, monthStr, kind) and returns the new
// list. The existing entry keeps its id and position; hours <= 0 remove it.
// newID is called only when an entry has to be created. entries is not
// modified.
func Upsert(entries []core.WriteOffEntry, personID, monthStr string, hours core.Hours, kind core.WriteOffKind, newID func() string) []core.WriteOffEntry {
	key := entryKey{personID, monthStr, kind}
	out := make([]core.WriteOffEntry, 0, len(entries)+1)
	found := false
	for _, e := range entries {
		if keyOf(e) != key {
			out = append(out, e)
			continue
		}
		if found || hours <= 0 {
			continue
		}
		found = true
		e.Hours = hours
		out = append(out, e)
	}
	if !found && hours > 0 {
		out = append(out, core.WriteOffEntry{
			ID:       newID(),
			PersonID: personID,
			MonthStr: monthStr,
			Hours:    hours,
			Type:     kind,
		})
	}
	return out
}

// Merge collapses entries sharing (person, month, type). The last
// occurrence wins and takes the position of the first.
func Merge(entries []core.WriteOffEntry) []core.WriteOffEntry {
	out := make([]core.WriteOffEntry, 0, len(entries))
	seen := make(map[entryKey]int, len(entries))
	for _, e := range entries {
		k := keyOf(e)
		if i, ok := seen[k]; ok {
			out[i] = e
			continue
		}
		seen[k] = len(out)
		out = append(out, e)
	}
	return out
}
