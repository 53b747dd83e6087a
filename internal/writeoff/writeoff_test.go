package writeoff

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffplan/internal/core"
)

func TestBuild(t *testing.T) {
	people := []core.Person{
		{ID: "p1", Name: "Ann", Role: "dev", Active: true},
		{ID: "p2", Name: "Bob", Role: "qa", Active: true},
		{ID: "p3", Name: "Cid", Active: false},
		{ID: "p4", Name: "Dan", Active: true, External: true},
	}
	projects := []core.Project{
		{ID: "a", WriteOffs: []core.WriteOffEntry{
			{PersonID: "p1", MonthStr: "2024-01", Hours: 10, Type: core.KindPlan},
			{PersonID: "p1", MonthStr: "2024-01", Hours: 4, Type: core.KindFact},
			{PersonID: "p2", MonthStr: "2024-02", Hours: 6, Type: core.KindPlan},
			{PersonID: "p1", MonthStr: "2023-12", Hours: 99, Type: core.KindPlan},
			{PersonID: "p1", MonthStr: "2024-1", Hours: 99, Type: core.KindPlan},
			{PersonID: "p3", MonthStr: "2024-01", Hours: 99, Type: core.KindPlan},
			{PersonID: "p4", MonthStr: "2024-01", Hours: 99, Type: core.KindFact},
			{PersonID: "ghost", MonthStr: "2024-01", Hours: 99, Type: core.KindFact},
		}},
		{ID: "z", IsArchived: true, WriteOffs: []core.WriteOffEntry{
			{PersonID: "p2", MonthStr: "2024-12", Hours: 8, Type: "legacy"},
		}},
	}

	r := Build(2024, people, projects)

	require.Len(t, r.Months, 12)
	assert.Equal(t, "2024-01", r.Months[0])
	assert.Equal(t, "2024-12", r.Months[11])

	assert.Equal(t, core.Hours(2*23*8), r.CapacityByMonth[0])
	assert.Equal(t, core.Hours(2*21*8), r.CapacityByMonth[1])
	var sum core.Hours
	for _, c := range r.CapacityByMonth {
		sum += c
	}
	assert.Equal(t, sum, r.CapacityYear)

	require.Len(t, r.People, 2)
	ann, bob := r.People[0], r.People[1]
	assert.Equal(t, "p1", ann.PersonID)
	assert.Equal(t, core.Hours(10), ann.PlanByMonth[0])
	assert.Equal(t, core.Hours(4), ann.FactByMonth[0])
	assert.Equal(t, core.Hours(10), ann.TotalPlan)
	assert.Equal(t, core.Hours(4), ann.TotalFact)

	assert.Equal(t, core.Hours(6), bob.PlanByMonth[1])
	assert.Equal(t, core.Hours(8), bob.FactByMonth[11], "archived projects and unknown types count as fact")

	assert.Equal(t, core.Hours(16), r.TotalPlan)
	assert.Equal(t, core.Hours(12), r.TotalFact)
	assert.InDelta(t, 16.0/float64(r.CapacityYear)*100, r.PlanPercent, 1e-9)
	assert.InDelta(t, 12.0/float64(r.CapacityYear)*100, r.FactPercent, 1e-9)
}

func TestBuildWithoutStaff(t *testing.T) {
	r := Build(2024, []core.Person{{ID: "x", External: true, Active: true}}, nil)
	assert.Zero(t, r.CapacityYear)
	assert.Zero(t, r.PlanPercent)
	assert.Zero(t, r.FactPercent)
	assert.Empty(t, r.People)
}

func sequence() func() string {
	n := 0
	return func() string {
		n++
		return "new-" + strconv.Itoa(n)
	}
}

func TestUpsert(t *testing.T) {
	t.Run("creates entry", func(t *testing.T) {
		out := Upsert(nil, "p1", "2024-01", 5, core.KindPlan, sequence())
		require.Len(t, out, 1)
		assert.Equal(t, core.WriteOffEntry{ID: "new-1", PersonID: "p1", MonthStr: "2024-01", Hours: 5, Type: core.KindPlan}, out[0])
	})

	t.Run("last write wins and keeps id", func(t *testing.T) {
		in := []core.WriteOffEntry{
			{ID: "a", PersonID: "p1", MonthStr: "2024-01", Hours: 5, Type: core.KindPlan},
			{ID: "b", PersonID: "p1", MonthStr: "2024-01", Hours: 3, Type: core.KindFact},
		}
		out := Upsert(in, "p1", "2024-01", 7, core.KindPlan, sequence())
		require.Len(t, out, 2)
		assert.Equal(t, "a", out[0].ID)
		assert.Equal(t, core.Hours(7), out[0].Hours)
		assert.Equal(t, core.Hours(5), in[0].Hours, "input is not modified")
	})

	t.Run("zero removes entry", func(t *testing.T) {
		in := []core.WriteOffEntry{
			{ID: "a", PersonID: "p1", MonthStr: "2024-01", Hours: 5, Type: core.KindPlan},
		}
		assert.Empty(t, Upsert(in, "p1", "2024-01", 0, core.KindPlan, sequence()))
		assert.Empty(t, Upsert(in, "p1", "2024-01", -3, core.KindPlan, sequence()))
	})

	t.Run("zero on missing entry is a no-op", func(t *testing.T) {
		out := Upsert(nil, "p1", "2024-01", 0, core.KindFact, func() string {
			require.Fail(t, "id requested for a removal")
			return ""
		})
		assert.Empty(t, out)
	})

	t.Run("collapses duplicates of the key", func(t *testing.T) {
		in := []core.WriteOffEntry{
			{ID: "a", PersonID: "p1", MonthStr: "2024-01", Hours: 5, Type: core.KindPlan},
			{ID: "b", PersonID: "p1", MonthStr: "2024-01", Hours: 9, Type: core.KindPlan},
		}
		out := Upsert(in, "p1", "2024-01", 2, core.KindPlan, sequence())
		require.Len(t, out, 1)
		assert.Equal(t, "a", out[0].ID)
		assert.Equal(t, core.Hours(2), out[0].Hours)
	})
}

func TestMerge(t *testing.T) {
	in := []core.WriteOffEntry{
		{ID: "a", PersonID: "p1", MonthStr: "2024-01", Hours: 5, Type: core.KindPlan},
		{ID: "b", PersonID: "p2", MonthStr: "2024-01", Hours: 1, Type: core.KindPlan},
		{ID: "c", PersonID: "p1", MonthStr: "2024-01", Hours: 8, Type: core.KindPlan},
	}
	out := Merge(in)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, core.Hours(8), out[0].Hours)
	assert.Equal(t, "b", out[1].ID)

	r := Build(2024, []core.Person{{ID: "p1", Active: true}}, []core.Project{{WriteOffs: out}})
	assert.Equal(t, core.Hours(8), r.TotalPlan)
}
