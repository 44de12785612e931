package world

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGenome(t *testing.T) {
	Convey("Genome relatedness", t, func() {
		base := UniformGenome(70)

		Convey("identical genomes are at distance zero", func() {
			So(base.Distance(base), ShouldEqual, 0)
			So(base.Related(base, 0), ShouldBeTrue)
		})

		Convey("distance counts differing bytes", func() {
			other := base
			other[3] = 1
			other[40] = 2
			So(base.Distance(other), ShouldEqual, 2)
		})

		Convey("the threshold is inclusive", func() {
			other := base
			other[0] = 1
			other[1] = 1
			So(base.Related(other, 2), ShouldBeTrue)
			So(base.Related(other, 1), ShouldBeFalse)
		})
	})

	Convey("The current gene indexes the genome", t, func() {
		c := Cell{Kind: Active, Genome: UniformGenome(5)}
		c.Genome[0] = 9
		c.CurrentGene = 0
		So(c.Gene(), ShouldEqual, 9)
		c.CurrentGene = 63
		So(c.Gene(), ShouldEqual, 5)
	})
}
