package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/job"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	models := []catalog.ModelDescriptor{
		{Name: "ex1221", Class: catalog.ClassMINLP, Sense: catalog.Minimize, Reference: catalog.OptimalValue(7.67)},
		{Name: "ex1222", Class: catalog.ClassMINLP, Sense: catalog.Minimize, Reference: catalog.OptimalValue(1.08)},
		{Name: "jobshop", Class: catalog.ClassGDP, Sense: catalog.Minimize, Reference: catalog.OptimalValue(11)},
		{Name: "knap", Class: catalog.ClassMILP, Sense: catalog.Maximize, Reference: catalog.Infeasible()},
	}
	for _, m := range models {
		require.NoError(t, c.Models.Register(m))
	}
	solvers := []catalog.SolverDescriptor{
		{Name: "BARON", Compatible: catalog.NewClassSet(catalog.ClassMINLP, catalog.ClassMILP), Global: catalog.NewClassSet(catalog.ClassMINLP)},
		{Name: "LOA", Compatible: catalog.NewClassSet(catalog.ClassGDP)},
		{Name: "ipopt", Compatible: catalog.NewClassSet(catalog.ClassNLP)},
	}
	for _, s := range solvers {
		require.NoError(t, c.Solvers.Register(s))
	}
	return c
}

func TestBuild_Unfiltered(t *testing.T) {
	c := testCatalog(t)
	jobs, err := Build(c, Filter{})
	require.NoError(t, err)

	assert.Equal(t, []job.Job{
		job.New("ex1221", "BARON"),
		job.New("ex1222", "BARON"),
		job.New("jobshop", "LOA"),
		job.New("knap", "BARON"),
	}, jobs.Sorted())

	for j := range jobs {
		m, _ := c.Models.Get(j.Model)
		s, _ := c.Solvers.Get(j.Solver)
		assert.True(t, s.CanSolve(m.Class), "%s must be compatible", j)
	}
}

func TestBuild_Filters(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name   string
		filter Filter
		want   []job.Job
	}{
		{
			name:   "glob model",
			filter: Filter{Models: []string{"ex12*"}},
			want:   []job.Job{job.New("ex1221", "BARON"), job.New("ex1222", "BARON")},
		},
		{
			name:   "solver",
			filter: Filter{Solvers: []string{"LOA"}},
			want:   []job.Job{job.New("jobshop", "LOA")},
		},
		{
			name:   "class",
			filter: Filter{Classes: []string{"milp"}},
			want:   []job.Job{job.New("knap", "BARON")},
		},
		{
			name:   "incompatible solver yields nothing",
			filter: Filter{Models: []string{"jobshop"}, Solvers: []string{"BARON"}},
			want:   []job.Job{},
		},
		{
			name:   "brace alternatives",
			filter: Filter{Models: []string{"{knap,jobshop}"}},
			want:   []job.Job{job.New("jobshop", "LOA"), job.New("knap", "BARON")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := Build(c, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, jobs.Sorted())
		})
	}
}

func TestBuild_UnknownNames(t *testing.T) {
	c := testCatalog(t)

	_, err := Build(c, Filter{Models: []string{"nosuch"}})
	require.ErrorIs(t, err, catalog.ErrUnknownModel)

	_, err = Build(c, Filter{Solvers: []string{"gurobi*"}})
	require.ErrorIs(t, err, catalog.ErrUnknownSolver)

	_, err = Build(c, Filter{Classes: []string{"QP"}})
	require.ErrorIs(t, err, catalog.ErrUnknownClass)

	_, err = Build(c, Filter{Models: []string{"ex[12"}})
	require.ErrorIs(t, err, ErrInvalidPattern)
}

func TestCompiled_Apply(t *testing.T) {
	c := testCatalog(t)
	cf, err := Filter{Solvers: []string{"BARON"}}.Compile(c)
	require.NoError(t, err)

	in := job.NewSet(job.New("ex1221", "BARON"), job.New("jobshop", "LOA"), job.New("gone", "BARON"))
	assert.Equal(t, []job.Job{job.New("ex1221", "BARON"), job.New("gone", "BARON")}, cf.Apply(in).Sorted())

	var nilFilter *Compiled
	assert.True(t, nilFilter.Allows(job.New("x", "y")))
}
