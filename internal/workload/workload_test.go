package workload_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/workload"
	"github.com/stretchr/testify/assert"
)

func TestConvolveLeavesEdgesUntouched(t *testing.T) {
	g := workload.NewGrid()
	orig := *g

	workload.Convolve(g, new(workload.Grid))

	last := workload.GridSize - 1
	for k := range workload.GridSize {
		assert.Equal(t, orig[0][k], g[0][k], "top row %d", k)
		assert.Equal(t, orig[last][k], g[last][k], "bottom row %d", k)
		assert.Equal(t, orig[k][0], g[k][0], "left column %d", k)
		assert.Equal(t, orig[k][last], g[k][last], "right column %d", k)
	}
}

func TestConvolveUniformInteriorIsZero(t *testing.T) {
	// The kernel sums to zero, so a constant field maps to zero everywhere
	// the 3x3 neighbourhood is constant.
	g := new(workload.Grid)
	for i := range g {
		for j := range g[i] {
			g[i][j] = 3
		}
	}

	workload.Convolve(g, new(workload.Grid))

	assert.InDelta(t, 0, g[1][1], 1e-6)
	assert.InDelta(t, 0, g[128][128], 1e-6)
	assert.InDelta(t, 3, g[0][0], 1e-6)
}

func TestConvolveSingleImpulse(t *testing.T) {
	g := new(workload.Grid)
	g[10][10] = 1

	workload.Convolve(g, new(workload.Grid))

	assert.InDelta(t, 8, g[10][10], 1e-6)
	assert.InDelta(t, -1, g[9][9], 1e-6)
	assert.InDelta(t, -1, g[11][10], 1e-6)
	assert.InDelta(t, 0, g[12][10], 1e-6)
}

func TestConvolutionSimulateReportsElapsed(t *testing.T) {
	sim := workload.NewConvolution()

	assert.Positive(t, sim.Simulate(1))
	assert.Positive(t, sim.Simulate(0), "non-positive intensity runs one pass")
}

func TestFuncAdapter(t *testing.T) {
	var got int
	sim := workload.Func(func(intensity int) time.Duration {
		got = intensity
		return 3 * time.Millisecond
	})

	assert.Equal(t, 3*time.Millisecond, sim.Simulate(4))
	assert.Equal(t, 4, got)
}

func BenchmarkSimulate(b *testing.B) {
	sim := workload.NewConvolution()
	for range b.N {
		sim.Simulate(1)
	}
}
