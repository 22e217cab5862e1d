package stress

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	var progress atomic.Int64
	rep, err := Run(context.Background(), Options{
		Iterations: 500,
		Workers:    4,
		Progress:   func(done, total int) { progress.Add(1); assert.Equal(t, 500, total) },
	})
	require.NoError(t, err)

	assert.True(t, rep.OK(), "%+v", rep)
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, 500, rep.Iterations)
	assert.Equal(t, 4, rep.Workers)
	assert.Equal(t, 500, rep.Upgrades+rep.Failed)
	assert.Zero(t, rep.Violations)
	assert.Equal(t, 500, rep.Destroyed)
	assert.Zero(t, rep.Leaked)
	assert.Equal(t, int64(500), progress.Load())
}

func TestRunDefaults(t *testing.T) {
	rep, err := Run(context.Background(), Options{ID: "fixed", Iterations: 3, Workers: 16})
	require.NoError(t, err)
	assert.Equal(t, "fixed", rep.ID)
	assert.Equal(t, 3, rep.Workers, "workers are capped at iterations")
	assert.True(t, rep.OK())
}

func TestRunInvalidOptions(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := Run(ctx, Options{Iterations: 100, Workers: 2})
	require.Error(t, err)
	assert.Zero(t, rep.Iterations)
}

func TestCounters(t *testing.T) {
	it0, up0, fail0, _ := Counters()
	_, err := Run(context.Background(), Options{Iterations: 10, Workers: 1})
	require.NoError(t, err)

	it1, up1, fail1, viol := Counters()
	assert.Equal(t, it0+10, it1)
	assert.Equal(t, up0+fail0+10, up1+fail1)
	assert.Zero(t, viol)
}

func TestScenarios(t *testing.T) {
	for _, s := range Scenarios() {
		t.Run(s.Name, func(t *testing.T) {
			steps, err := s.Run(context.Background())
			require.NoError(t, err)
			require.NotEmpty(t, steps)
			for _, step := range steps {
				assert.True(t, step.OK, step.Description)
			}
			assert.True(t, Passed(steps))
		})
	}
}

func TestLookup(t *testing.T) {
	s, ok := Lookup("mapped-keeps-owner")
	require.True(t, ok)
	assert.Equal(t, "mapped-keeps-owner", s.Name)

	_, ok = Lookup("nope")
	assert.False(t, ok)

	assert.False(t, Passed([]Step{{OK: true}, {OK: false}}))
}
