package workload

import (
	"math/rand/v2"
	"time"
)

// GridSize is the edge length of the square buffer the convolution runs over
const GridSize = 256

// Simulator performs a unit of simulated frame work and reports how long it took
type Simulator interface {
	Simulate(intensity int) time.Duration
}

// Func adapts a plain function to the Simulator interface
type Func func(intensity int) time.Duration

func (f Func) Simulate(intensity int) time.Duration {
	return f(intensity)
}

// kernel is a 3x3 edge-detection kernel
var kernel = [3][3]float32{
	{-1, -1, -1},
	{-1, 8, -1},
	{-1, -1, -1},
}

// Convolution runs intensity passes of a 3x3 convolution over a freshly
// randomised GridSize x GridSize buffer. Each call allocates its own buffers,
// so a single Convolution may be shared between goroutines.
type Convolution struct{}

// NewConvolution returns the CPU-bound simulator
func NewConvolution() *Convolution {
	return &Convolution{}
}

// Simulate blocks for the duration of the work. It is not interruptible.
func (*Convolution) Simulate(intensity int) time.Duration {
	start := time.Now()

	grid := NewGrid()
	scratch := new(Grid)
	for range max(1, intensity) {
		Convolve(grid, scratch)
	}

	return time.Since(start)
}

// Grid is the square buffer transformed by the simulator
type Grid [GridSize][GridSize]float32

// NewGrid returns a grid filled with values in [0, 1)
func NewGrid() *Grid {
	g := new(Grid)
	for i := range g {
		for j := range g[i] {
			g[i][j] = rand.Float32()
		}
	}
	return g
}

// Convolve applies the kernel to the interior of g in place, using scratch
// as the output buffer. Edge rows and columns are left untouched.
func Convolve(g, scratch *Grid) {
	for i := 1; i < GridSize-1; i++ {
		for j := 1; j < GridSize-1; j++ {
			var sum float32
			for ki := range 3 {
				for kj := range 3 {
					sum += g[i-1+ki][j-1+kj] * kernel[ki][kj]
				}
			}
			scratch[i][j] = sum
		}
	}

	for i := 1; i < GridSize-1; i++ {
		copy(g[i][1:GridSize-1], scratch[i][1:GridSize-1])
	}
}
