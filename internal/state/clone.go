package state

import (
	"maps"
	"slices"

	"staffplan/internal/core"
)

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		People:               slices.Clone(s.People),
		Roles:                slices.Clone(s.Roles),
		Projects:             make([]core.Project, len(s.Projects)),
		Assignments:          make([]core.Assignment, len(s.Assignments)),
		ProjectTeams:         cloneSets(s.ProjectTeams),
		ProjectWriteOffTeams: cloneSets(s.ProjectWriteOffTeams),
		ProjectMemberHours:   make(MemberHours, len(s.ProjectMemberHours)),
		Vacations:            cloneSets(s.Vacations),
		TeamOrder:            slices.Clone(s.TeamOrder),
	}
	for i, p := range s.Projects {
		out.Projects[i] = cloneProject(p)
	}
	for i, a := range s.Assignments {
		out.Assignments[i] = cloneAssignment(a)
	}
	for k, v := range s.ProjectMemberHours {
		out.ProjectMemberHours[k] = maps.Clone(v)
	}
	return out
}

func cloneProject(p core.Project) core.Project {
	p.Contracts = slices.Clone(p.Contracts)
	p.WriteOffs = slices.Clone(p.WriteOffs)
	p.CustomRates = maps.Clone(p.CustomRates)
	return p
}

func cloneAssignment(a core.Assignment) core.Assignment {
	if a.FactHours != nil {
		h := *a.FactHours
		a.FactHours = &h
	}
	return a
}

func cloneSets[M ~map[string]core.StringSet](m M) M {
	if m == nil {
		return nil
	}
	out := make(M, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}
