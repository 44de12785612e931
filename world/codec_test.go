package world

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func randomActive(src *rand.Rand) Cell {
	c := Cell{
		Kind:        Active,
		Direction:   src.Intn(NumDirections),
		Age:         src.Intn(MaxAge + 1),
		Energy:      src.Intn(MaxEnergy + 1),
		Minerals:    src.Intn(MaxMinerals + 1),
		Diet:        Diet{Eat: src.Intn(4), Photo: src.Intn(4), Mineral: src.Intn(4)},
		Color:       src.Intn(MaxColor + 1),
		CurrentGene: src.Intn(GenomeLen),
	}
	for i := range c.Genome {
		c.Genome[i] = byte(src.Intn(256))
	}
	return c
}

func TestCodec(t *testing.T) {
	Convey("When cells are packed and unpacked", t, func() {
		Convey("Air packs to the all-zero record", func() {
			w := Pack(AirCell)
			for _, word := range w {
				So(word, ShouldEqual, 0)
			}
		})

		Convey("Air with stray payload still packs to all-zero", func() {
			w := Pack(Cell{Kind: Air, Energy: 99, Age: 3})
			for _, word := range w {
				So(word, ShouldEqual, 0)
			}
		})

		Convey("Wall carries only its kind", func() {
			c := Unpack(Pack(Cell{Kind: Wall, Energy: 42, Color: 7}))
			So(c, ShouldResemble, WallCell)
		})

		Convey("Food round-trips energy and nothing else", func() {
			c := Unpack(Pack(Cell{Kind: Food, Energy: 200, Direction: 3, Age: 12}))
			So(c.Kind, ShouldEqual, Food)
			So(c.Energy, ShouldEqual, 200)
			So(c.Direction, ShouldEqual, 0)
			So(c.Age, ShouldEqual, 0)
		})

		Convey("Active cells round-trip every field", func() {
			src := rand.New(rand.NewSource(7))
			for i := 0; i < 200; i++ {
				c := randomActive(src)
				So(Unpack(Pack(c)), ShouldResemble, c)
			}
		})

		Convey("The ninth age bit lands in word 1", func() {
			c := Cell{Kind: Active, Age: 511, Energy: 1}
			w := Pack(c)
			So(w[1]>>30&0x1, ShouldEqual, 1)
			So(Unpack(w).Age, ShouldEqual, 511)
		})

		Convey("The genome is little-endian, four genes per word", func() {
			c := Cell{Kind: Active, Energy: 1}
			c.Genome[0], c.Genome[1], c.Genome[2], c.Genome[3] = 0x11, 0x22, 0x33, 0x44
			w := Pack(c)
			So(w[2], ShouldEqual, uint32(0x44332211))
		})
	})
}
