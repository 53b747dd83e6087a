package state

import (
	"fmt"
	"slices"
	"strings"

	"staffplan/internal/core"
)

// AddPerson appends p, assigning an id when it has none, and returns the
// stored person.
func (a *AppState) AddPerson(p core.Person) (core.Person, error) {
	if err := p.Validate(); err != nil {
		return core.Person{}, err
	}
	if p.ID == "" {
		p.ID = a.newID()
	}
	if p.Role == "" {
		p.Role = core.FallbackRole
	}
	err := a.update(func(s *Snapshot) ([]Field, error) {
		if indexPerson(s, p.ID) >= 0 {
			return nil, fmt.Errorf("person %s: already exists", p.ID)
		}
		s.People = append(s.People, p)
		reconcileTeamOrder(s)
		return []Field{FieldPeople, FieldTeamOrder}, nil
	})
	if err != nil {
		return core.Person{}, err
	}
	return p, nil
}

// UpdatePerson replaces the person with the same id.
func (a *AppState) UpdatePerson(p core.Person) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return a.update(func(s *Snapshot) ([]Field, error) {
		i := indexPerson(s, p.ID)
		if i < 0 {
			return nil, fmt.Errorf("person %s: %w", p.ID, ErrNotFound)
		}
		s.People[i] = p
		return []Field{FieldPeople}, nil
	})
}

// DeletePerson removes a person together with their assignments,
// vacations, team memberships, member hours and custom rates. Write-off
// entries are kept as history.
func (a *AppState) DeletePerson(id string) error {
	return a.update(func(s *Snapshot) ([]Field, error) {
		i := indexPerson(s, id)
		if i < 0 {
			return nil, fmt.Errorf("person %s: %w", id, ErrNotFound)
		}
		s.People = slices.Delete(s.People, i, i+1)
		s.Assignments = slices.DeleteFunc(s.Assignments, func(as core.Assignment) bool {
			return as.PersonID == id
		})
		delete(s.Vacations, id)
		for _, team := range s.ProjectTeams {
			team.Remove(id)
		}
		for _, team := range s.ProjectWriteOffTeams {
			team.Remove(id)
		}
		for _, hours := range s.ProjectMemberHours {
			delete(hours, id)
		}
		for j := range s.Projects {
			delete(s.Projects[j].CustomRates, id)
		}
		reconcileTeamOrder(s)
		return []Field{
			FieldPeople, FieldProjects, FieldAssignments, FieldProjectTeams,
			FieldProjectWriteOffTeams, FieldProjectMemberHours, FieldVacations, FieldTeamOrder,
		}, nil
	})
}

// AddRole appends a role name.
func (a *AppState) AddRole(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}
	return a.update(func(s *Snapshot) ([]Field, error) {
		if slices.Contains(s.Roles, name) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRole, name)
		}
		s.Roles = append(s.Roles, name)
		return []Field{FieldRoles}, nil
	})
}

// RenameRole renames a role in place and moves every person holding it to
// the new name. An empty or unchanged name is a no-op.
func (a *AppState) RenameRole(from, to string) error {
	to = strings.TrimSpace(to)
	if to == "" || to == from {
		return nil
	}
	return a.update(func(s *Snapshot) ([]Field, error) {
		i := slices.Index(s.Roles, from)
		if i < 0 {
			return nil, fmt.Errorf("role %s: %w", from, ErrNotFound)
		}
		if slices.Contains(s.Roles, to) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRole, to)
		}
		s.Roles[i] = to
		for j := range s.People {
			if s.People[j].Role == from {
				s.People[j].Role = to
			}
		}
		return []Field{FieldRoles, FieldPeople}, nil
	})
}

// DeleteRole removes a role; people holding it fall back to "other".
func (a *AppState) DeleteRole(name string) error {
	return a.update(func(s *Snapshot) ([]Field, error) {
		if !slices.Contains(s.Roles, name) {
			return nil, fmt.Errorf("role %s: %w", name, ErrNotFound)
		}
		s.Roles = slices.DeleteFunc(s.Roles, func(r string) bool { return r == name })
		for j := range s.People {
			if s.People[j].Role == name {
				s.People[j].Role = core.FallbackRole
			}
		}
		return []Field{FieldRoles, FieldPeople}, nil
	})
}

// ReconcileTeamOrder drops ids of deleted people from the team order and
// appends people missing from it in list order.
func (a *AppState) ReconcileTeamOrder() {
	_ = a.update(func(s *Snapshot) ([]Field, error) {
		if !reconcileTeamOrder(s) {
			return nil, nil
		}
		return []Field{FieldTeamOrder}, nil
	})
}

// MovePerson moves the entry at index from of the team order to index to.
func (a *AppState) MovePerson(from, to int) error {
	return a.update(func(s *Snapshot) ([]Field, error) {
		n := len(s.TeamOrder)
		if from < 0 || from >= n || to < 0 || to >= n {
			return nil, fmt.Errorf("move %d to %d of %d: %w", from, to, n, ErrInvalidIndex)
		}
		if from == to {
			return nil, nil
		}
		id := s.TeamOrder[from]
		order := slices.Delete(s.TeamOrder, from, from+1)
		s.TeamOrder = slices.Insert(order, to, id)
		return []Field{FieldTeamOrder}, nil
	})
}

// OrderedPeople returns the people in team order.
func (a *AppState) OrderedPeople() []core.Person {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.OrderedPeople()
}

// OrderedPeople returns the people in team order. People missing from the
// order follow in list order, so an unreconciled document still lists
// everyone once.
func (s *Snapshot) OrderedPeople() []core.Person {
	byID := make(map[string]core.Person, len(s.People))
	for _, p := range s.People {
		byID[p.ID] = p
	}
	out := make([]core.Person, 0, len(s.People))
	for _, id := range s.TeamOrder {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}
	for _, p := range s.People {
		if _, ok := byID[p.ID]; ok {
			out = append(out, p)
			delete(byID, p.ID)
		}
	}
	return out
}

func reconcileTeamOrder(s *Snapshot) bool {
	live := make(map[string]struct{}, len(s.People))
	for _, p := range s.People {
		live[p.ID] = struct{}{}
	}
	listed := make(map[string]struct{}, len(s.TeamOrder))
	order := make([]string, 0, len(s.People))
	for _, id := range s.TeamOrder {
		if _, ok := live[id]; !ok {
			continue
		}
		if _, dup := listed[id]; dup {
			continue
		}
		listed[id] = struct{}{}
		order = append(order, id)
	}
	for _, p := range s.People {
		if _, ok := listed[p.ID]; !ok {
			listed[p.ID] = struct{}{}
			order = append(order, p.ID)
		}
	}
	if slices.Equal(order, s.TeamOrder) {
		return false
	}
	s.TeamOrder = order
	return true
}

func indexPerson(s *Snapshot, id string) int {
	return slices.IndexFunc(s.People, func(p core.Person) bool { return p.ID == id })
}
