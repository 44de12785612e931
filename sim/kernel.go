package sim

import (
	"math/rand"

	"golang.org/x/sync/errgroup"

	"evogrid/world"
	"evogrid/xorshift"
)

// write is one cell-value commit into the next buffer.
type write struct {
	pos  world.Pos
	cell world.Cell
}

// intent is the full output of one per-cell task: at most the cell's own
// next value plus one neighbour write (a move target or a child).
type intent struct {
	writes [2]write
	n      int
}

func (in *intent) add(p world.Pos, c world.Cell) {
	in.writes[in.n] = write{p, c}
	in.n++
}

// kernel owns the double buffer, the per-cell random streams, and the tick
// counter. One step reads prev everywhere, computes an intent per cell in
// parallel, then commits all intents serially in ascending cell order into
// next and swaps. The serial commit realises the conflict-free-write rule on
// a CPU: contended cells resolve deterministically by index order rather
// than by scheduling.
type kernel struct {
	prev, next *world.Grid
	rng        *xorshift.Field
	workers    int
	intents    []intent
	tick       uint64
	active     int
}

func newKernel(w, h, workers int) *kernel {
	return &kernel{
		prev:    world.NewGrid(w, h),
		next:    world.NewGrid(w, h),
		rng:     xorshift.NewField(w*h, 0),
		workers: workers,
		intents: make([]intent, w*h),
	}
}

// splitRange divides [0, n) into near-equal contiguous segments, one per
// worker.
func splitRange(n, workers int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	base := n / workers
	rem := n % workers

	segs := make([][2]int, 0, workers)
	i := 0
	for w := 0; w < workers; w++ {
		h := base
		if rem > 0 {
			h++
			rem--
		}
		segs = append(segs, [2]int{i, i + h})
		i += h
	}
	return segs
}

// step advances the world one tick.
func (k *kernel) step(cfg Config) {
	env := cfg.Environment()
	h := k.prev.H
	n := k.prev.Cells()

	var eg errgroup.Group
	for _, seg := range splitRange(n, k.workers) {
		i0, i1 := seg[0], seg[1]
		eg.Go(func() error {
			for i := i0; i < i1; i++ {
				pos := world.Pos{X: i / h, Y: i % h}
				switch k.prev.KindAt(pos) {
				case world.Air:
					k.intents[i] = intent{}
				case world.Wall:
					k.intents[i] = intent{}
					k.intents[i].add(pos, world.WallCell)
				case world.Food:
					k.intents[i] = stepFood(k.prev, pos)
				case world.Active:
					k.intents[i] = stepActive(k.prev, k.rng, env, cfg, pos)
				}
			}
			return nil
		})
	}
	// The workers cannot fail; Wait is the barrier between the parallel
	// phase and the commit.
	_ = eg.Wait()

	k.next.Clear()
	for i := range k.intents {
		in := &k.intents[i]
		for j := 0; j < in.n; j++ {
			k.next.Put(in.writes[j].pos, in.writes[j].cell)
		}
	}
	k.prev, k.next = k.next, k.prev
	k.active = countActive(k.prev)
	k.tick++
}

// countActive is the reduction behind ActiveCount. Reading only the kind
// bits keeps it a single pass over word 0 of every record.
func countActive(g *world.Grid) (n int) {
	words := g.Words()
	for i := 0; i < g.Cells(); i++ {
		if world.Kind(words[i*world.CellWords]&0x7) == world.Active {
			n++
		}
	}
	return
}

// reset reseeds the random field, clears the world, and scatters setup.Nodes
// agents across the sunlit band, skipping occupied cells. Both buffers end
// up identical and the tick counter returns to zero.
func (k *kernel) reset(cfg Config, setup Setup) {
	k.rng = xorshift.NewField(k.prev.Cells(), setup.Seed)
	k.prev.Clear()
	k.tick = 0

	band := minInt(cfg.SunAmount*cfg.SunLevelHeight, cfg.WorldHeight)
	placed := 0
	if band > 0 {
		src := rand.New(rand.NewSource(setup.Seed))
		// The band can fill up; cap the retries rather than spin.
		for tries := 0; placed < setup.Nodes && tries < setup.Nodes*100+100; tries++ {
			pos := world.Pos{X: src.Intn(cfg.WorldWidth), Y: src.Intn(band)}
			if k.prev.KindAt(pos) != world.Air {
				continue
			}
			k.prev.Put(pos, world.Cell{
				Kind:      world.Active,
				Direction: src.Intn(world.NumDirections),
				Energy:    setup.Energy,
				Genome:    setup.Genome,
			})
			placed++
		}
	}
	k.next.CopyFrom(k.prev)
	k.active = placed
}
