package sim

import (
	"fmt"
	"runtime"
	"sync"

	"evogrid/world"
)

// Setup parameterises a world reset. Zero fields fall back to defaults: the
// node count comes from the config, energy from DefaultStartEnergy, and the
// zero genome becomes the all-PHOTOSYNTHESIZE starter.
type Setup struct {
	Seed   int64
	Nodes  int
	Energy int
	Genome world.Genome
}

// DefaultStartEnergy is the energy of freshly seeded agents.
const DefaultStartEnergy = 100

// Simulator is the public surface of the engine: reset, step, single-cell
// reads, snapshot copies, and between-step config updates. All methods are
// safe for concurrent use; a single mutex serialises the surface while the
// kernel underneath stays lock-free.
type Simulator struct {
	mu    sync.Mutex
	cfg   Config
	k     *kernel
	setup Setup
}

// New validates the config and builds a simulator with the given worker
// count. workers == 0 means one worker per CPU; a negative count cannot
// describe a pool and is ErrBackendUnavailable. The world starts empty;
// call Reset to populate it.
func New(cfg Config, workers int) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if workers < 0 {
		return nil, fmt.Errorf("%w: %d workers", ErrBackendUnavailable, workers)
	}
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return &Simulator{
		cfg: cfg,
		k:   newKernel(cfg.WorldWidth, cfg.WorldHeight, workers),
	}, nil
}

// Reset reseeds the world per setup and zeroes the tick counter.
func (s *Simulator) Reset(setup Setup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(setup)
}

func (s *Simulator) resetLocked(setup Setup) {
	if setup.Nodes == 0 {
		setup.Nodes = s.cfg.StartNodeNum
	}
	if setup.Energy == 0 {
		setup.Energy = DefaultStartEnergy
	}
	if setup.Genome == (world.Genome{}) {
		setup.Genome = world.UniformGenome(GenePhotosynthesize)
	}
	s.setup = setup
	s.k.reset(s.cfg, setup)
}

// Step advances the world one tick. A step is all-or-nothing; there is no
// mid-step cancellation.
func (s *Simulator) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.k.step(s.cfg)
}

// Get returns the decoded cell at (x, y). Unlike kernel-internal reads, Get
// does not wrap x: out-of-range coordinates are the caller's error.
func (s *Simulator) Get(x, y int) (world.Cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if x < 0 || x >= s.cfg.WorldWidth || y < 0 || y >= s.cfg.WorldHeight {
		return world.Cell{}, fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, x, y)
	}
	return s.k.prev.At(world.Pos{X: x, Y: y}), nil
}

// Snapshot copies the packed world buffer into dst (grown as needed) and
// returns it. The layout is the column-major 18-words-per-cell wire format;
// the copy keeps callers decoupled from the double buffer.
func (s *Simulator) Snapshot(dst []uint32) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	words := s.k.prev.Words()
	if cap(dst) < len(words) {
		dst = make([]uint32, len(words))
	}
	dst = dst[:len(words)]
	copy(dst, words)
	return dst
}

// Tick returns the number of steps since the last reset.
func (s *Simulator) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.k.tick
}

// ActiveCount returns the number of living agents after the last step.
func (s *Simulator) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.k.active
}

// Config returns the current configuration block.
func (s *Simulator) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig updates a single recognized field between steps. Resizing the
// world reallocates the buffers and replays the last reset; START_NODE_NUM
// is read only by a later Reset whose Setup.Nodes is zero; every other field
// takes effect on the next step.
func (s *Simulator) SetConfig(name string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevW, prevH := s.cfg.WorldWidth, s.cfg.WorldHeight
	if err := s.cfg.Set(name, value); err != nil {
		return err
	}
	if s.cfg.WorldWidth != prevW || s.cfg.WorldHeight != prevH {
		s.k = newKernel(s.cfg.WorldWidth, s.cfg.WorldHeight, s.k.workers)
		s.resetLocked(s.setup)
	}
	return nil
}
