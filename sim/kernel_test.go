package sim

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"evogrid/world"
)

// scenarioSim builds a simulator over an empty world so tests can stage
// exact cell layouts.
func scenarioSim(cfg Config) *Simulator {
	cfg.StartNodeNum = 0
	s, err := New(cfg, 2)
	So(err, ShouldBeNil)
	s.Reset(Setup{Seed: 7})
	return s
}

// place stages a cell in both buffers, as if it had been there since reset.
func place(s *Simulator, x, y int, c world.Cell) {
	s.k.prev.Put(world.Pos{X: x, Y: y}, c)
	s.k.next.CopyFrom(s.k.prev)
}

func kindAt(s *Simulator, x, y int) world.Kind {
	c, err := s.Get(x, y)
	So(err, ShouldBeNil)
	return c.Kind
}

func quietConfig(w, h int) Config {
	cfg := DefaultConfig()
	cfg.WorldWidth, cfg.WorldHeight = w, h
	cfg.SunAmount = 0
	cfg.MineralAmount = 0
	return cfg
}

func TestFoodFalls(t *testing.T) {
	Convey("Food falls south and drops off the world", t, func() {
		s := scenarioSim(quietConfig(3, 3))
		place(s, 1, 0, world.FoodCell(5))

		s.Step()
		s.Step()
		So(kindAt(s, 1, 2), ShouldEqual, world.Food)
		So(kindAt(s, 1, 0), ShouldEqual, world.Air)
		So(kindAt(s, 1, 1), ShouldEqual, world.Air)

		s.Step()
		So(kindAt(s, 1, 2), ShouldEqual, world.Air)
	})
}

func TestTurning(t *testing.T) {
	Convey("A clockwise turn in a one-cell world", t, func() {
		s := scenarioSim(quietConfig(1, 1))
		genome := world.UniformGenome(GenePhotosynthesize)
		genome[0] = GeneTurnCW
		place(s, 0, 0, world.Cell{Kind: world.Active, Direction: 0, Energy: 10, Genome: genome})

		s.Step()
		c, err := s.Get(0, 0)
		So(err, ShouldBeNil)
		So(c.Direction, ShouldEqual, 3)
		So(c.Age, ShouldEqual, 1)
		So(c.CurrentGene, ShouldEqual, 1)
	})
}

func TestPhotosynthesisFillsEnergy(t *testing.T) {
	Convey("Sunlight tops up an agent at the surface", t, func() {
		cfg := quietConfig(1, 1)
		cfg.SunAmount = 5
		cfg.SunLevelHeight = 1
		s := scenarioSim(cfg)
		place(s, 0, 0, world.Cell{
			Kind:   world.Active,
			Energy: 10,
			Genome: world.UniformGenome(GenePhotosynthesize),
		})

		s.Step()
		c, err := s.Get(0, 0)
		So(err, ShouldBeNil)
		So(c.Energy, ShouldEqual, 14)
		So(c.Age, ShouldEqual, 1)
		So(c.Diet.Photo, ShouldEqual, 1)
	})
}

func TestMovementContention(t *testing.T) {
	genome := world.UniformGenome(GeneMoveForward)

	Convey("Two movers contest one empty cell", t, func() {
		s := scenarioSim(quietConfig(5, 1))
		place(s, 0, 0, world.Cell{Kind: world.Active, Direction: world.East, Energy: 10, Genome: genome})
		place(s, 2, 0, world.Cell{Kind: world.Active, Direction: world.West, Energy: 20, Genome: genome})

		s.Step()

		Convey("the stronger agent takes it", func() {
			c, err := s.Get(1, 0)
			So(err, ShouldBeNil)
			So(c.Kind, ShouldEqual, world.Active)
			So(c.Energy, ShouldEqual, 19)
			So(c.Direction, ShouldEqual, world.West)
			So(kindAt(s, 2, 0), ShouldEqual, world.Air)
		})

		Convey("the weaker agent stays put", func() {
			c, err := s.Get(0, 0)
			So(err, ShouldBeNil)
			So(c.Kind, ShouldEqual, world.Active)
			So(c.Energy, ShouldEqual, 9)
		})
	})

	Convey("Equal energies lose on both sides", t, func() {
		s := scenarioSim(quietConfig(5, 1))
		place(s, 0, 0, world.Cell{Kind: world.Active, Direction: world.East, Energy: 10, Genome: genome})
		place(s, 2, 0, world.Cell{Kind: world.Active, Direction: world.West, Energy: 10, Genome: genome})

		s.Step()
		So(kindAt(s, 1, 0), ShouldEqual, world.Air)
		So(kindAt(s, 0, 0), ShouldEqual, world.Active)
		So(kindAt(s, 2, 0), ShouldEqual, world.Active)
	})
}

func TestPredation(t *testing.T) {
	Convey("An agent eats the neighbour it faces", t, func() {
		s := scenarioSim(quietConfig(3, 1))
		place(s, 0, 0, world.Cell{
			Kind:      world.Active,
			Direction: world.East,
			Energy:    10,
			Genome:    world.UniformGenome(GeneEatForward),
		})
		place(s, 1, 0, world.Cell{
			Kind:   world.Active,
			Energy: 30,
			Genome: world.UniformGenome(GenePhotosynthesize),
		})

		s.Step()
		So(kindAt(s, 1, 0), ShouldEqual, world.Air)
		c, err := s.Get(0, 0)
		So(err, ShouldBeNil)
		So(c.Energy, ShouldEqual, 10+30-1)
		So(c.Diet.Eat, ShouldEqual, 1)
	})
}

func TestDeathByAge(t *testing.T) {
	Convey("An agent at the age cap turns to food", t, func() {
		cfg := quietConfig(1, 1)
		s := scenarioSim(cfg)
		place(s, 0, 0, world.Cell{
			Kind:   world.Active,
			Energy: 100,
			Age:    cfg.NodeMaxAge,
			Genome: world.UniformGenome(GenePhotosynthesize),
		})

		s.Step()
		c, err := s.Get(0, 0)
		So(err, ShouldBeNil)
		So(c, ShouldResemble, world.FoodCell(cfg.FoodEnergy))
	})
}

func TestKernelLaws(t *testing.T) {
	// A genome that moves, feeds and breeds enough to churn the world and
	// exercise the per-cell random streams.
	genome := world.UniformGenome(GenePhotosynthesize)
	genome[0] = GeneReproduceForward
	genome[3] = GeneMoveForward
	genome[4] = GeneTurnCCW

	run := func(seed int64, ticks int) *Simulator {
		cfg := DefaultConfig()
		cfg.WorldWidth, cfg.WorldHeight = 40, 30
		cfg.StartNodeNum = 40
		s, err := New(cfg, 4)
		So(err, ShouldBeNil)
		s.Reset(Setup{Seed: seed, Genome: genome})
		for i := 0; i < ticks; i++ {
			s.Step()
		}
		return s
	}

	Convey("Identical seeds reproduce the world exactly", t, func() {
		a := run(99, 20)
		b := run(99, 20)
		So(a.Tick(), ShouldEqual, 20)
		So(a.Snapshot(nil), ShouldResemble, b.Snapshot(nil))
		So(a.ActiveCount(), ShouldEqual, b.ActiveCount())
	})

	Convey("Every cell holds exactly one kind", t, func() {
		s := run(5, 15)
		snap := s.Snapshot(nil)
		for i := 0; i < len(snap); i += world.CellWords {
			So(snap[i]&0x7, ShouldBeLessThanOrEqualTo, uint32(world.Active))
		}
	})

	Convey("No agent exceeds the energy ceiling", t, func() {
		s := run(13, 30)
		cfg := s.Config()
		for x := 0; x < cfg.WorldWidth; x++ {
			for y := 0; y < cfg.WorldHeight; y++ {
				c, err := s.Get(x, y)
				So(err, ShouldBeNil)
				if c.Kind == world.Active {
					So(c.Energy, ShouldBeLessThanOrEqualTo, cfg.NodeMaxEnergy)
					So(c.Energy, ShouldBeGreaterThan, 0)
				}
			}
		}
	})

	Convey("The tick counter is monotonic", t, func() {
		s := run(1, 3)
		So(s.Tick(), ShouldEqual, 3)
		s.Step()
		So(s.Tick(), ShouldEqual, 4)
	})
}

func TestSplitRange(t *testing.T) {
	Convey("splitRange partitions the index space", t, func() {
		Convey("segments are contiguous and disjoint", func() {
			segs := splitRange(100, 7)
			So(len(segs), ShouldEqual, 7)
			next := 0
			for _, seg := range segs {
				So(seg[0], ShouldEqual, next)
				So(seg[1], ShouldBeGreaterThan, seg[0])
				next = seg[1]
			}
			So(next, ShouldEqual, 100)
		})

		Convey("more workers than cells collapses to one each", func() {
			segs := splitRange(3, 16)
			So(len(segs), ShouldEqual, 3)
			So(segs[2][1], ShouldEqual, 3)
		})

		Convey("a degenerate worker count still covers everything", func() {
			segs := splitRange(10, 0)
			So(len(segs), ShouldEqual, 1)
			So(segs[0], ShouldResemble, [2]int{0, 10})
		})
	})
}
