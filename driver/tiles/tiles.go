// Package tiles renders a compiled shape over a 2D grid of square tiles in
// parallel: an atomic cursor hands out tile indices to a fixed worker pool,
// and each worker evaluates its own tile straight into a disjoint region of
// the shared output buffer. There is no results channel and no per-tile
// lock — workers never write the same output index — matching spec.md
// §5's shared-immutable-tape / thread-local-scratch / atomic-counter
// model, grounded on search.WorkerPool/RunTasks' counter-plus-waitgroup
// shape but with the channel replaced by a raw fetch_add, as the
// concurrency model explicitly calls for (rather than the teacher's
// closed input channel of pre-built tasks).
//
// This package is an external collaborator: it only ever calls into the
// core through the vm.Evaluator ABI, never into schedule/regalloc/ssabuild.
package tiles

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	vm "github.com/oisee/fidget"
)

// Grid describes a pixel-space render target in square tiles.
type Grid struct {
	Width, Height int
	TileSize      int
}

func (g Grid) tilesAcross() int { return (g.Width + g.TileSize - 1) / g.TileSize }
func (g Grid) tilesDown() int   { return (g.Height + g.TileSize - 1) / g.TileSize }

func (g Grid) tileCount() int { return g.tilesAcross() * g.tilesDown() }

// bounds returns tile i's pixel-space rectangle [x0,x1) x [y0,y1), clamped
// to the grid (edge tiles may be smaller than TileSize).
func (g Grid) bounds(i int) (x0, y0, x1, y1 int) {
	across := g.tilesAcross()
	tx, ty := i%across, i/across
	x0, y0 = tx*g.TileSize, ty*g.TileSize
	x1 = x0 + g.TileSize
	if x1 > g.Width {
		x1 = g.Width
	}
	y1 = y0 + g.TileSize
	if y1 > g.Height {
		y1 = g.Height
	}
	return x0, y0, x1, y1
}

// WorkQueue hands out tile indices via a single atomic counter: every
// worker calls next until it reports done, with no shared mutable state
// beyond the counter itself.
type WorkQueue struct {
	grid   Grid
	cursor atomic.Int64
	total  int64
}

// NewWorkQueue builds a queue over every tile in grid.
func NewWorkQueue(grid Grid) *WorkQueue {
	return &WorkQueue{grid: grid, total: int64(grid.tileCount())}
}

func (q *WorkQueue) next() (tile int, ok bool) {
	i := q.cursor.Add(1) - 1
	if i >= q.total {
		return 0, false
	}
	return int(i), true
}

// Sample maps a pixel-space tile back to the world-space sample grid: Origin
// is the world coordinate of pixel (0,0) and PixelSize is the world-space
// edge length of one pixel.
type Sample struct {
	OriginX, OriginY float32
	PixelSize        float32
}

func (s Sample) world(px, py int) (x, y float32) {
	return s.OriginX + float32(px)*s.PixelSize, s.OriginY + float32(py)*s.PixelSize
}

// Render evaluates tape over grid's pixels, writing a row-major
// Width*Height float32 image. numWorkers <= 0 selects runtime.NumCPU().
// Each worker owns a private vm.Evaluator (not safe for concurrent use)
// and writes only the pixels inside the tiles it pulled from the queue, so
// the output buffer needs no synchronization.
func Render(tape *vm.Tape, grid Grid, sample Sample, numWorkers int) ([]float32, error) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	out := make([]float32, grid.Width*grid.Height)
	queue := NewWorkQueue(grid)

	var firstErr atomic.Pointer[error]
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := vm.NewEvaluator(tape)
			for {
				tile, ok := queue.next()
				if !ok {
					return
				}
				if err := renderTile(ev, grid, sample, tile, out); err != nil {
					firstErr.CompareAndSwap(nil, &err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if p := firstErr.Load(); p != nil {
		return nil, fmt.Errorf("tiles: %w", *p)
	}
	return out, nil
}

func renderTile(ev *vm.Evaluator, grid Grid, sample Sample, tile int, out []float32) error {
	x0, y0, x1, y1 := grid.bounds(tile)
	width := x1 - x0
	n := width * (y1 - y0)
	xs := make([]float32, n)
	ys := make([]float32, n)
	zs := make([]float32, n)

	k := 0
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			wx, wy := sample.world(px, py)
			xs[k], ys[k] = wx, wy
			k++
		}
	}

	values, err := ev.Slice(xs, ys, zs, nil)
	if err != nil {
		return err
	}

	k = 0
	for py := y0; py < y1; py++ {
		row := py * grid.Width
		copy(out[row+x0:row+x1], values[k:k+width])
		k += width
	}
	return nil
}
