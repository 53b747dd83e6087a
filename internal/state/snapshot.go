// Package state holds the planner's application state: people, projects,
// weekly assignments and the team maps around them. AppState is the single
// in-memory owner; Snapshot is its wire form.
package state

import (
	"bytes"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"staffplan/internal/core"
	"staffplan/internal/writeoff"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateRole   = errors.New("role already exists")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrInvalidIndex    = errors.New("index out of range")
)

// Field names one top-level collection of the state.
type Field string

const (
	FieldPeople               Field = "people"
	FieldRoles                Field = "roles"
	FieldProjects             Field = "projects"
	FieldAssignments          Field = "assignments"
	FieldProjectTeams         Field = "projectTeams"
	FieldProjectWriteOffTeams Field = "projectWriteOffTeams"
	FieldProjectMemberHours   Field = "projectMemberHours"
	FieldVacations            Field = "vacations"
	FieldTeamOrder            Field = "teamOrder"
)

// AllFields lists every field in wire order.
var AllFields = []Field{
	FieldPeople,
	FieldRoles,
	FieldProjects,
	FieldAssignments,
	FieldProjectTeams,
	FieldProjectWriteOffTeams,
	FieldProjectMemberHours,
	FieldVacations,
	FieldTeamOrder,
}

// Key is the local store key of the field.
func (f Field) Key() string { return "pw_" + string(f) }

type (
	// TeamMap maps a project id to the ids of its members.
	TeamMap map[string]core.StringSet
	// VacationMap maps a person id to the Mondays of their vacation weeks.
	VacationMap map[string]core.StringSet
	// MemberHours maps project id, then person id, to planned hours.
	MemberHours map[string]map[string]core.Hours
)

// Snapshot is the complete state document exchanged with the server and
// the local store.
type Snapshot struct {
	People               []core.Person     `json:"people"`
	Roles                []string          `json:"roles"`
	Projects             []core.Project    `json:"projects"`
	Assignments          []core.Assignment `json:"assignments"`
	ProjectTeams         TeamMap           `json:"projectTeams"`
	ProjectWriteOffTeams TeamMap           `json:"projectWriteOffTeams"`
	ProjectMemberHours   MemberHours       `json:"projectMemberHours"`
	Vacations            VacationMap       `json:"vacations"`
	TeamOrder            []string          `json:"teamOrder"`
}

// wireSnapshot tells absent or null fields apart from empty ones.
type wireSnapshot struct {
	People               *[]core.Person     `json:"people"`
	Roles                *[]string          `json:"roles"`
	Projects             *[]core.Project    `json:"projects"`
	Assignments          *[]core.Assignment `json:"assignments"`
	ProjectTeams         TeamMap            `json:"projectTeams"`
	ProjectWriteOffTeams TeamMap            `json:"projectWriteOffTeams"`
	ProjectMemberHours   MemberHours        `json:"projectMemberHours"`
	Vacations            VacationMap        `json:"vacations"`
	TeamOrder            *[]string          `json:"teamOrder"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Seed returns the initial state of a fresh installation.
func Seed() *Snapshot {
	s := &Snapshot{
		People:   SeedPeople(),
		Roles:    core.DefaultRoles(),
		Projects: SeedProjects(),
	}
	s.normalize()
	return s
}

func SeedPeople() []core.Person {
	return []core.Person{
		{ID: "p1", Name: "Sasha", Role: "manager", CapacityPerWeek: 1, Active: true, RateInternal: 1500, RateExternal: 2500},
		{ID: "p2", Name: "Katya K.", Role: "designer", CapacityPerWeek: 1, Active: true, RateInternal: 1400, RateExternal: 2600},
		{ID: "p3", Name: "Igor", Role: "dev", CapacityPerWeek: 1, Active: true, RateInternal: 1800, RateExternal: 3200},
	}
}

func SeedProjects() []core.Project {
	return []core.Project{
		{ID: "pr1", Name: "HR Podcasts", Status: core.StatusActive, Color: "#3b82f6", ProjectType: core.ProjectExternal, Contracts: []core.Contract{}},
		{ID: "pr2", Name: "Arctic Media", Status: core.StatusOnHold, Color: "#f43f5e", ProjectType: core.ProjectExternal, Contracts: []core.Contract{}},
	}
}

// DecodeSnapshot parses a stored or transmitted document. The document may
// be wrapped as {"data": ...}. A null document returns nil and no error.
// Absent or null fields take their seed defaults; a document that is not an
// object or whose fields have the wrong shape fails with ErrInvalidSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("%w: document is not an object", ErrInvalidSnapshot)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err == nil {
		inner := bytes.TrimSpace(env.Data)
		if len(inner) > 0 && inner[0] == '{' {
			data = inner
		}
	}

	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	s := &Snapshot{
		ProjectTeams:         w.ProjectTeams,
		ProjectWriteOffTeams: w.ProjectWriteOffTeams,
		ProjectMemberHours:   w.ProjectMemberHours,
		Vacations:            w.Vacations,
	}
	if w.People != nil {
		s.People = *w.People
	} else {
		s.People = SeedPeople()
	}
	if w.Roles != nil {
		s.Roles = *w.Roles
	} else {
		s.Roles = core.DefaultRoles()
	}
	if w.Projects != nil {
		s.Projects = *w.Projects
	} else {
		s.Projects = SeedProjects()
	}
	if w.Assignments != nil {
		s.Assignments = *w.Assignments
	}
	if w.TeamOrder != nil {
		s.TeamOrder = *w.TeamOrder
	}
	s.normalize()
	return s, nil
}

// Encode returns the JSON document of s.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// EncodeField returns the JSON value of one field.
func (s *Snapshot) EncodeField(f Field) ([]byte, error) {
	ref, err := s.ref(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ref)
}

// DecodeField replaces one field from its JSON value. A null value keeps
// the current content; a malformed one returns ErrInvalidSnapshot and
// leaves s unchanged.
func (s *Snapshot) DecodeField(f Field, data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var tmp Snapshot
	ref, err := tmp.ref(f)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, ref); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSnapshot, f, err)
	}
	tmp.normalize()
	s.copyField(f, &tmp)
	return nil
}

func (s *Snapshot) ref(f Field) (any, error) {
	switch f {
	case FieldPeople:
		return &s.People, nil
	case FieldRoles:
		return &s.Roles, nil
	case FieldProjects:
		return &s.Projects, nil
	case FieldAssignments:
		return &s.Assignments, nil
	case FieldProjectTeams:
		return &s.ProjectTeams, nil
	case FieldProjectWriteOffTeams:
		return &s.ProjectWriteOffTeams, nil
	case FieldProjectMemberHours:
		return &s.ProjectMemberHours, nil
	case FieldVacations:
		return &s.Vacations, nil
	case FieldTeamOrder:
		return &s.TeamOrder, nil
	}
	return nil, fmt.Errorf("unknown field %q", f)
}

func (s *Snapshot) copyField(f Field, from *Snapshot) {
	switch f {
	case FieldPeople:
		s.People = from.People
	case FieldRoles:
		s.Roles = from.Roles
	case FieldProjects:
		s.Projects = from.Projects
	case FieldAssignments:
		s.Assignments = from.Assignments
	case FieldProjectTeams:
		s.ProjectTeams = from.ProjectTeams
	case FieldProjectWriteOffTeams:
		s.ProjectWriteOffTeams = from.ProjectWriteOffTeams
	case FieldProjectMemberHours:
		s.ProjectMemberHours = from.ProjectMemberHours
	case FieldVacations:
		s.Vacations = from.Vacations
	case FieldTeamOrder:
		s.TeamOrder = from.TeamOrder
	}
}

// normalize replaces nil collections with empty ones so the document never
// carries nulls, and collapses duplicate write-off entries.
func (s *Snapshot) normalize() {
	if s.People == nil {
		s.People = []core.Person{}
	}
	if s.Roles == nil {
		s.Roles = []string{}
	}
	if s.Projects == nil {
		s.Projects = []core.Project{}
	}
	for i := range s.Projects {
		p := &s.Projects[i]
		if p.Contracts == nil {
			p.Contracts = []core.Contract{}
		}
		if len(p.WriteOffs) > 0 {
			p.WriteOffs = writeoff.Merge(p.WriteOffs)
		}
	}
	if s.Assignments == nil {
		s.Assignments = []core.Assignment{}
	}
	if s.ProjectTeams == nil {
		s.ProjectTeams = TeamMap{}
	}
	fillSets(s.ProjectTeams)
	if s.ProjectWriteOffTeams == nil {
		s.ProjectWriteOffTeams = TeamMap{}
	}
	fillSets(s.ProjectWriteOffTeams)
	if s.ProjectMemberHours == nil {
		s.ProjectMemberHours = MemberHours{}
	}
	for k, v := range s.ProjectMemberHours {
		if v == nil {
			s.ProjectMemberHours[k] = map[string]core.Hours{}
		}
	}
	if s.Vacations == nil {
		s.Vacations = VacationMap{}
	}
	fillSets(s.Vacations)
	if s.TeamOrder == nil {
		s.TeamOrder = []string{}
	}
}

func fillSets[M ~map[string]core.StringSet](m M) {
	for k, v := range m {
		if v == nil {
			m[k] = core.StringSet{}
		}
	}
}
