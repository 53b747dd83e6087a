package state

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffplan/internal/calendar"
	"staffplan/internal/core"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]Field
}

func (r *recorder) observe(changed []Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, changed)
}

func (r *recorder) last() []Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func newTestState(t *testing.T) (*AppState, *recorder) {
	t.Helper()
	n := 0
	st := New(nil,
		WithClock(calendar.Today(2024, time.March, 13)),
		WithIDGenerator(func() string {
			n++
			return "id" + strconv.Itoa(n)
		}),
	)
	rec := &recorder{}
	st.Subscribe(rec.observe)
	return st, rec
}

func TestNewReconcilesTeamOrder(t *testing.T) {
	st, _ := newTestState(t)
	assert.Equal(t, []string{"p1", "p2", "p3"}, st.Snapshot().TeamOrder)
}

func TestSnapshotIsACopy(t *testing.T) {
	st, _ := newTestState(t)
	snap := st.Snapshot()
	snap.People[0].Name = "mutated"
	snap.Projects[0].Contracts = append(snap.Projects[0].Contracts, core.Contract{ID: "x"})
	fresh := st.Snapshot()
	assert.NotEqual(t, "mutated", fresh.People[0].Name)
	assert.Empty(t, fresh.Projects[0].Contracts)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	st, rec := newTestState(t)
	other := &recorder{}
	stop := st.Subscribe(other.observe)

	require.NoError(t, st.AddRole("ops"))
	assert.Equal(t, []Field{FieldRoles}, rec.last())
	assert.Equal(t, []Field{FieldRoles}, other.last())

	stop()
	require.NoError(t, st.AddRole("sales"))
	assert.Len(t, other.calls, 1)
	assert.Len(t, rec.calls, 2)
}

func TestFailedMutationDoesNotNotify(t *testing.T) {
	st, rec := newTestState(t)
	assert.ErrorIs(t, st.AddRole("dev"), ErrDuplicateRole)
	assert.ErrorIs(t, st.UpdatePerson(core.Person{ID: "nobody", Name: "N"}), ErrNotFound)
	assert.Empty(t, rec.calls)
}

func TestAddPerson(t *testing.T) {
	st, rec := newTestState(t)
	p, err := st.AddPerson(core.Person{Name: "Dana", RateInternal: 100})
	require.NoError(t, err)
	assert.Equal(t, "id1", p.ID)
	assert.Equal(t, core.FallbackRole, p.Role)
	assert.Equal(t, []Field{FieldPeople, FieldTeamOrder}, rec.last())
	assert.Equal(t, []string{"p1", "p2", "p3", "id1"}, st.Snapshot().TeamOrder)

	_, err = st.AddPerson(core.Person{Name: "  "})
	assert.ErrorIs(t, err, core.ErrEmptyName)
}

func TestDeletePersonCascades(t *testing.T) {
	st, _ := newTestState(t)
	require.NoError(t, st.SetAssignmentCell("p1", "pr1", "2024-03-04", "20", core.KindPlan))
	require.NoError(t, st.SetAssignmentCell("p2", "pr1", "2024-03-04", "10", core.KindPlan))
	require.NoError(t, st.ToggleVacation("p1", "2024-03-11"))
	require.NoError(t, st.AddProjectMember("pr1", "p1"))
	require.NoError(t, st.AddWriteOffMember("pr1", "p1", 900))
	require.NoError(t, st.SetMemberHours("pr1", "p1", 120))
	require.NoError(t, st.SetWriteOff("pr1", "p1", "2024-03", "8", core.KindFact))

	require.NoError(t, st.DeletePerson("p1"))
	s := st.Snapshot()

	for _, p := range s.People {
		assert.NotEqual(t, "p1", p.ID)
	}
	require.Len(t, s.Assignments, 1)
	assert.Equal(t, "p2", s.Assignments[0].PersonID)
	assert.NotContains(t, s.Vacations, "p1")
	assert.False(t, s.ProjectTeams["pr1"].Has("p1"))
	assert.False(t, s.ProjectWriteOffTeams["pr1"].Has("p1"))
	assert.NotContains(t, s.ProjectMemberHours["pr1"], "p1")
	assert.NotContains(t, s.Projects[0].CustomRates, "p1")
	assert.Len(t, s.Projects[0].WriteOffs, 1, "write-off history is kept")
	assert.Equal(t, []string{"p2", "p3"}, s.TeamOrder)

	assert.ErrorIs(t, st.DeletePerson("p1"), ErrNotFound)
}

func TestRoles(t *testing.T) {
	st, _ := newTestState(t)

	require.NoError(t, st.RenameRole("dev", "engineer"))
	s := st.Snapshot()
	assert.Equal(t, "engineer", s.Roles[0])
	assert.Equal(t, "engineer", s.People[2].Role)

	assert.ErrorIs(t, st.RenameRole("engineer", "qa"), ErrDuplicateRole)
	assert.ErrorIs(t, st.RenameRole("missing", "x"), ErrNotFound)
	assert.NoError(t, st.RenameRole("qa", "  "), "blank rename is ignored")

	require.NoError(t, st.DeleteRole("manager"))
	s = st.Snapshot()
	assert.NotContains(t, s.Roles, "manager")
	assert.Equal(t, core.FallbackRole, s.People[0].Role)
	assert.ErrorIs(t, st.DeleteRole("manager"), ErrNotFound)

	assert.ErrorIs(t, st.AddRole(""), core.ErrEmptyName)
}

func TestTeamOrder(t *testing.T) {
	st, rec := newTestState(t)

	require.NoError(t, st.MovePerson(0, 2))
	assert.Equal(t, []string{"p2", "p3", "p1"}, st.Snapshot().TeamOrder)
	require.NoError(t, st.MovePerson(2, 0))
	assert.Equal(t, []string{"p1", "p2", "p3"}, st.Snapshot().TeamOrder)
	assert.ErrorIs(t, st.MovePerson(0, 3), ErrInvalidIndex)

	names := []string{}
	for _, p := range st.OrderedPeople() {
		names = append(names, p.ID)
	}
	assert.Equal(t, []string{"p1", "p2", "p3"}, names)

	calls := len(rec.calls)
	st.ReconcileTeamOrder()
	assert.Len(t, rec.calls, calls, "no change, no notification")

	snap := st.Snapshot()
	snap.TeamOrder = []string{"p3", "ghost", "p3"}
	st.Replace(snap)
	assert.Equal(t, []string{"p3", "p1", "p2"}, st.Snapshot().TeamOrder)
	assert.Equal(t, AllFields, rec.last())
}

func TestSetAssignmentCell(t *testing.T) {
	st, _ := newTestState(t)
	week := "2024-03-04"

	require.NoError(t, st.SetAssignmentCell("p1", "pr1", week, "20", core.KindPlan))
	s := st.Snapshot()
	require.Len(t, s.Assignments, 1)
	a := s.Assignments[0]
	assert.Equal(t, "id1", a.ID)
	assert.Equal(t, 0.5, a.FTE)
	require.NotNil(t, a.FactHours)
	assert.Equal(t, 0.0, *a.FactHours)

	require.NoError(t, st.SetAssignmentCell("p1", "pr1", week, "6", core.KindFact))
	a = st.Snapshot().Assignments[0]
	assert.Equal(t, "id1", a.ID, "id survives replace-on-write")
	assert.Equal(t, 0.5, a.FTE)
	assert.Equal(t, 6.0, *a.FactHours)

	require.NoError(t, st.SetAssignmentCell("p1", "pr1", week, "", core.KindPlan))
	a = st.Snapshot().Assignments[0]
	assert.Equal(t, 0.0, a.FTE)

	require.NoError(t, st.SetAssignmentCell("p1", "pr1", week, "0", core.KindFact))
	assert.Empty(t, st.Snapshot().Assignments, "both zero removes the record")

	assert.ErrorIs(t, st.SetAssignmentCell("p1", "pr1", week, "abc", core.KindPlan), core.ErrInvalidHours)
	assert.ErrorIs(t, st.SetAssignmentCell("p1", "pr1", "2024-03-05", "8", core.KindPlan), core.ErrInvalidWeek)
	assert.ErrorIs(t, st.SetAssignmentCell("p1", "pr1", "garbage", "8", core.KindPlan), calendar.ErrInvalidDate)
	assert.ErrorIs(t, st.SetAssignmentCell("p1", "pr1", week, "8", "other"), core.ErrInvalidKind)
}

func TestVacations(t *testing.T) {
	st, _ := newTestState(t)

	require.NoError(t, st.ToggleVacation("p1", "2024-03-04"))
	assert.Equal(t, []string{"2024-03-04"}, st.VacationWeeks("p1"))
	require.NoError(t, st.ToggleVacation("p1", "2024-03-04"))
	assert.Empty(t, st.VacationWeeks("p1"))

	// Saturday to the following Tuesday spans two ISO weeks.
	require.NoError(t, st.AddVacationRange("p2", "2024-03-09", "2024-03-12"))
	assert.Equal(t, []string{"2024-03-04", "2024-03-11"}, st.VacationWeeks("p2"))

	require.NoError(t, st.AddVacationRange("p3", "2024-03-12", "2024-03-09"))
	assert.Empty(t, st.VacationWeeks("p3"))

	assert.ErrorIs(t, st.AddVacationRange("p3", "x", "2024-03-09"), calendar.ErrInvalidDate)
}

func TestProjects(t *testing.T) {
	st, rec := newTestState(t)

	p, err := st.AddProject(core.Project{Name: "Gamma"})
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, p.Status)
	assert.Equal(t, core.ProjectExternal, p.ProjectType)
	assert.Equal(t, []Field{FieldProjects}, rec.last())

	c, err := st.AddContract(p.ID, core.Contract{Amount: core.AmountOf(1000)})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-13", c.Date)
	assert.Equal(t, core.VATNet, c.VATMode)

	c.VATMode = core.VATGross
	require.NoError(t, st.UpdateContract(p.ID, c))
	assert.ErrorIs(t, st.UpdateContract(p.ID, core.Contract{ID: "none", Date: "2024-01-01", VATMode: core.VATNet}), ErrNotFound)
	assert.ErrorIs(t, st.UpdateContract(p.ID, core.Contract{ID: c.ID, Date: "2024-01-01", VATMode: "both"}), core.ErrInvalidVATMode)

	require.NoError(t, st.SetProjectArchived(p.ID, true))
	s := st.Snapshot()
	assert.True(t, s.Projects[2].IsArchived)
	assert.Equal(t, core.VATGross, s.Projects[2].Contracts[0].VATMode)

	require.NoError(t, st.DeleteContract(p.ID, c.ID))
	assert.Empty(t, st.Snapshot().Projects[2].Contracts)

	p.Name = ""
	assert.ErrorIs(t, st.UpdateProject(p), core.ErrEmptyName)
}

func TestDeleteProjectCascades(t *testing.T) {
	st, _ := newTestState(t)
	require.NoError(t, st.SetAssignmentCell("p1", "pr1", "2024-03-04", "8", core.KindPlan))
	require.NoError(t, st.SetAssignmentCell("p1", "pr2", "2024-03-04", "8", core.KindPlan))
	require.NoError(t, st.AddProjectMember("pr1", "p1"))
	require.NoError(t, st.AddWriteOffMember("pr1", "p2", 100))
	require.NoError(t, st.SetMemberHours("pr1", "p1", 40))

	require.NoError(t, st.DeleteProject("pr1"))
	s := st.Snapshot()
	require.Len(t, s.Projects, 1)
	require.Len(t, s.Assignments, 1)
	assert.Equal(t, "pr2", s.Assignments[0].ProjectID)
	assert.NotContains(t, s.ProjectTeams, "pr1")
	assert.NotContains(t, s.ProjectWriteOffTeams, "pr1")
	assert.NotContains(t, s.ProjectMemberHours, "pr1")
}

func TestWriteOffsAndRates(t *testing.T) {
	st, _ := newTestState(t)

	require.NoError(t, st.SetWriteOff("pr1", "p1", "2024-02", "12", core.KindPlan))
	require.NoError(t, st.SetWriteOff("pr1", "p1", "2024-02", "16", core.KindPlan))
	wo := st.Snapshot().Projects[0].WriteOffs
	require.Len(t, wo, 1)
	assert.Equal(t, core.Hours(16), wo[0].Hours)
	assert.Equal(t, "id1", wo[0].ID)

	require.NoError(t, st.SetWriteOff("pr1", "p1", "2024-02", "n/a", core.KindPlan))
	assert.Empty(t, st.Snapshot().Projects[0].WriteOffs, "non-numeric input counts as zero")

	assert.ErrorIs(t, st.SetWriteOff("pr1", "p1", "2024-2-1", "1", core.KindPlan), core.ErrInvalidMonth)
	assert.ErrorIs(t, st.SetWriteOff("nope", "p1", "2024-02", "1", core.KindPlan), ErrNotFound)

	require.NoError(t, st.AddWriteOffMember("pr1", "p2", 700))
	s := st.Snapshot()
	assert.Equal(t, core.Money(700), s.Projects[0].CustomRates["p2"])
	assert.True(t, s.ProjectWriteOffTeams["pr1"].Has("p2"))

	require.NoError(t, st.SetCustomRate("pr1", "p2", 800))
	assert.Equal(t, core.Money(800), st.Snapshot().Projects[0].CustomRates["p2"])
	assert.ErrorIs(t, st.SetCustomRate("pr1", "p2", -1), core.ErrInvalidRate)

	require.NoError(t, st.RemoveCustomRate("pr1", "p2"))
	assert.NotContains(t, st.Snapshot().Projects[0].CustomRates, "p2")

	require.NoError(t, st.RemoveWriteOffMember("pr1", "p2"))
	assert.False(t, st.Snapshot().ProjectWriteOffTeams["pr1"].Has("p2"))
	assert.ErrorIs(t, st.AddWriteOffMember("pr1", "ghost", 1), ErrNotFound)
}

func TestMembersAndHours(t *testing.T) {
	st, _ := newTestState(t)

	require.NoError(t, st.AddProjectMember("pr2", "p3"))
	assert.True(t, st.Snapshot().ProjectTeams["pr2"].Has("p3"))
	require.NoError(t, st.RemoveProjectMember("pr2", "p3"))
	assert.False(t, st.Snapshot().ProjectTeams["pr2"].Has("p3"))
	assert.ErrorIs(t, st.AddProjectMember("pr9", "p3"), ErrNotFound)

	require.NoError(t, st.SetMemberHours("pr2", "p3", 80))
	assert.Equal(t, core.Hours(80), st.Snapshot().ProjectMemberHours["pr2"]["p3"])
	require.NoError(t, st.SetMemberHours("pr2", "p3", 0))
	assert.NotContains(t, st.Snapshot().ProjectMemberHours["pr2"], "p3")
}

func TestConcurrentMutations(t *testing.T) {
	st, _ := newTestState(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = st.ToggleVacation("p1", calendar.FormatISO(calendar.AddWeeks(time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local), i)))
			_ = st.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Len(t, st.VacationWeeks("p1"), 20)
}
