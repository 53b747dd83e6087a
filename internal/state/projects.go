package state

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"staffplan/internal/calendar"
	"staffplan/internal/core"
	"staffplan/internal/writeoff"
)

const defaultProjectColor = "#3b82f6"

// AddProject appends p with defaults for id, status, type and color.
func (a *AppState) AddProject(p core.Project) (core.Project, error) {
	if p.ID == "" {
		p.ID = a.newID()
	}
	if p.Status == "" {
		p.Status = core.StatusActive
	}
	if p.ProjectType == "" {
		p.ProjectType = core.ProjectExternal
	}
	if p.Color == "" {
		p.Color = defaultProjectColor
	}
	if p.Contracts == nil {
		p.Contracts = []core.Contract{}
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	p = cloneProject(p)
	err := a.update(func(s *Snapshot) ([]Field, error) {
		if indexProject(s, p.ID) >= 0 {
			return nil, fmt.Errorf("project %s: already exists", p.ID)
		}
		s.Projects = append(s.Projects, p)
		return []Field{FieldProjects}, nil
	})
	if err != nil {
		return core.Project{}, err
	}
	return cloneProject(p), nil
}

// UpdateProject replaces the project with the same id.
func (a *AppState) UpdateProject(p core.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = cloneProject(p)
	return a.update(func(s *Snapshot) ([]Field, error) {
		i := indexProject(s, p.ID)
		if i < 0 {
			return nil, fmt.Errorf("project %s: %w", p.ID, ErrNotFound)
		}
		s.Projects[i] = p
		return []Field{FieldProjects}, nil
	})
}

// DeleteProject removes a project with its assignments, teams and member
// hours.
func (a *AppState) DeleteProject(id string) error {
	return a.update(func(s *Snapshot) ([]Field, error) {
		i := indexProject(s, id)
		if i < 0 {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		s.Projects = slices.Delete(s.Projects, i, i+1)
		s.Assignments = slices.DeleteFunc(s.Assignments, func(as core.Assignment) bool {
			return as.ProjectID == id
		})
		delete(s.ProjectTeams, id)
		delete(s.ProjectWriteOffTeams, id)
		delete(s.ProjectMemberHours, id)
		return []Field{
			FieldProjects, FieldAssignments, FieldProjectTeams,
			FieldProjectWriteOffTeams, FieldProjectMemberHours,
		}, nil
	})
}

// SetProjectArchived archives or restores a project.
func (a *AppState) SetProjectArchived(id string, archived bool) error {
	return a.withProject(id, func(p *core.Project) error {
		p.IsArchived = archived
		return nil
	})
}

// AddContract appends c to a project. An empty date is today and an
// empty VAT mode is net.
func (a *AppState) AddContract(projectID string, c core.Contract) (core.Contract, error) {
	if c.ID == "" {
		c.ID = a.newID()
	}
	if c.Date == "" {
		c.Date = calendar.FormatISO(a.clock.Now())
	}
	if c.VATMode == "" {
		c.VATMode = core.VATNet
	}
	if err := c.Validate(); err != nil {
		return core.Contract{}, err
	}
	err := a.withProject(projectID, func(p *core.Project) error {
		p.Contracts = append(p.Contracts, c)
		return nil
	})
	if err != nil {
		return core.Contract{}, err
	}
	return c, nil
}

// UpdateContract replaces the contract with the same id.
func (a *AppState) UpdateContract(projectID string, c core.Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return a.withProject(projectID, func(p *core.Project) error {
		i := slices.IndexFunc(p.Contracts, func(x core.Contract) bool { return x.ID == c.ID })
		if i < 0 {
			return fmt.Errorf("contract %s: %w", c.ID, ErrNotFound)
		}
		p.Contracts[i] = c
		return nil
	})
}

func (a *AppState) DeleteContract(projectID, contractID string) error {
	return a.withProject(projectID, func(p *core.Project) error {
		i := slices.IndexFunc(p.Contracts, func(x core.Contract) bool { return x.ID == contractID })
		if i < 0 {
			return fmt.Errorf("contract %s: %w", contractID, ErrNotFound)
		}
		p.Contracts = slices.Delete(p.Contracts, i, i+1)
		return nil
	})
}

// SetWriteOff sets the hours a person writes off on a project for a month
// (YYYY-MM). Input that is not a number counts as zero, and zero removes
// the entry.
func (a *AppState) SetWriteOff(projectID, personID, month, value string, kind core.WriteOffKind) error {
	if _, err := core.ParseMonthKey(month); err != nil {
		return err
	}
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}
	hours, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		hours = 0
	}
	return a.withProject(projectID, func(p *core.Project) error {
		p.WriteOffs = writeoff.Upsert(p.WriteOffs, personID, month, core.Hours(hours), kind, a.newID)
		return nil
	})
}

// AddWriteOffMember puts a person on the write-off table of a project with
// a custom hourly rate.
func (a *AppState) AddWriteOffMember(projectID, personID string, rate core.Money) error {
	if rate < 0 {
		return core.ErrInvalidRate
	}
	return a.update(func(s *Snapshot) ([]Field, error) {
		i := indexProject(s, projectID)
		if i < 0 {
			return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		if indexPerson(s, personID) < 0 {
			return nil, fmt.Errorf("person %s: %w", personID, ErrNotFound)
		}
		p := &s.Projects[i]
		if p.CustomRates == nil {
			p.CustomRates = map[string]core.Money{}
		}
		p.CustomRates[personID] = rate
		addToTeam(s.ProjectWriteOffTeams, projectID, personID)
		return []Field{FieldProjects, FieldProjectWriteOffTeams}, nil
	})
}

// RemoveWriteOffMember takes a person off the write-off table. Their
// entries stay as history.
func (a *AppState) RemoveWriteOffMember(projectID, personID string) error {
	return a.update(func(s *Snapshot) ([]Field, error) {
		i := indexProject(s, projectID)
		if i < 0 {
			return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		delete(s.Projects[i].CustomRates, personID)
		if team, ok := s.ProjectWriteOffTeams[projectID]; ok {
			team.Remove(personID)
		}
		return []Field{FieldProjects, FieldProjectWriteOffTeams}, nil
	})
}

// SetCustomRate overrides the hourly rate of a person on one project.
func (a *AppState) SetCustomRate(projectID, personID string, rate core.Money) error {
	if rate < 0 {
		return core.ErrInvalidRate
	}
	return a.withProject(projectID, func(p *core.Project) error {
		if p.CustomRates == nil {
			p.CustomRates = map[string]core.Money{}
		}
		p.CustomRates[personID] = rate
		return nil
	})
}

func (a *AppState) RemoveCustomRate(projectID, personID string) error {
	return a.withProject(projectID, func(p *core.Project) error {
		delete(p.CustomRates, personID)
		return nil
	})
}

// AddProjectMember adds a person to the planning team of a project.
func (a *AppState) AddProjectMember(projectID, personID string) error {
	return a.update(func(s *Snapshot) ([]Field, error) {
		if indexProject(s, projectID) < 0 {
			return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		if indexPerson(s, personID) < 0 {
			return nil, fmt.Errorf("person %s: %w", personID, ErrNotFound)
		}
		addToTeam(s.ProjectTeams, projectID, personID)
		return []Field{FieldProjectTeams}, nil
	})
}

func (a *AppState) RemoveProjectMember(projectID, personID string) error {
	return a.update(func(s *Snapshot) ([]Field, error) {
		team, ok := s.ProjectTeams[projectID]
		if !ok || !team.Has(personID) {
			return nil, nil
		}
		team.Remove(personID)
		return []Field{FieldProjectTeams}, nil
	})
}

// SetMemberHours records the hours planned for a person on a project.
// Zero or less clears the value.
func (a *AppState) SetMemberHours(projectID, personID string, hours core.Hours) error {
	return a.update(func(s *Snapshot) ([]Field, error) {
		if indexProject(s, projectID) < 0 {
			return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		if hours <= 0 {
			delete(s.ProjectMemberHours[projectID], personID)
			return []Field{FieldProjectMemberHours}, nil
		}
		m, ok := s.ProjectMemberHours[projectID]
		if !ok {
			m = map[string]core.Hours{}
			s.ProjectMemberHours[projectID] = m
		}
		m[personID] = hours
		return []Field{FieldProjectMemberHours}, nil
	})
}

// withProject applies fn to a copy of the project and stores it on success.
func (a *AppState) withProject(id string, fn func(p *core.Project) error) error {
	return a.update(func(s *Snapshot) ([]Field, error) {
		i := indexProject(s, id)
		if i < 0 {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		p := cloneProject(s.Projects[i])
		if err := fn(&p); err != nil {
			return nil, err
		}
		s.Projects[i] = p
		return []Field{FieldProjects}, nil
	})
}

func addToTeam(teams TeamMap, projectID, personID string) {
	team, ok := teams[projectID]
	if !ok {
		team = core.StringSet{}
		teams[projectID] = team
	}
	team.Add(personID)
}

func indexProject(s *Snapshot, id string) int {
	return slices.IndexFunc(s.Projects, func(p core.Project) bool { return p.ID == id })
}
