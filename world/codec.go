package world

// The packed cell record is 18 little-endian u32 words and is the renderer
// contract; changing the layout is a breaking version bump.
//
//	word 0: bits 0-2 kind, 3-5 direction, 6-7 diet.eat, 8-15 age[0..7],
//	        16-23 energy, 24-27 minerals, 28-29 diet.photo, 30-31 diet.mineral
//	word 1: bits 0-7 color, 24-29 currentGene, 30 age[8]
//	words 2-17: genome, 4 genes per word, little-endian byte order
const CellWords = 18

// Sentinels. AirCell packs to the all-zero record; WallCell carries no
// payload beyond its kind.
var (
	AirCell  = Cell{}
	WallCell = Cell{Kind: Wall}
)

// normalize drops the fields that do not apply to the cell's kind, so that
// packing enforces the all-payload-bits-zero invariant for AIR and WALL and
// the energy-only invariant for FOOD.
func normalize(c Cell) Cell {
	switch c.Kind {
	case Air:
		return Cell{}
	case Wall:
		return Cell{Kind: Wall}
	case Food:
		return Cell{Kind: Food, Energy: c.Energy}
	}
	return c
}

// Pack encodes a cell into its fixed record. It never allocates and is safe
// to call from any goroutine. A field that does not fit its bit width is an
// invariant violation and panics.
func Pack(c Cell) (w [CellWords]uint32) {
	c = normalize(c)
	if c.Kind < 0 || c.Kind > 0x7 || c.Direction < 0 || c.Direction > 0x7 ||
		c.Diet.Eat < 0 || c.Diet.Eat > DietMax || c.Diet.Photo < 0 || c.Diet.Photo > DietMax ||
		c.Diet.Mineral < 0 || c.Diet.Mineral > DietMax ||
		c.Age < 0 || c.Age > MaxAge || c.Energy < 0 || c.Energy > MaxEnergy ||
		c.Minerals < 0 || c.Minerals > MaxMinerals || c.Color < 0 || c.Color > MaxColor ||
		c.CurrentGene < 0 || c.CurrentGene >= GenomeLen {
		panic("world: cell field overflows its bit width")
	}
	age := uint32(c.Age) & 0x1ff
	w[0] = uint32(c.Kind)&0x7 |
		uint32(c.Direction)&0x7<<3 |
		uint32(c.Diet.Eat)&0x3<<6 |
		(age&0xff)<<8 |
		uint32(c.Energy)&0xff<<16 |
		uint32(c.Minerals)&0xf<<24 |
		uint32(c.Diet.Photo)&0x3<<28 |
		uint32(c.Diet.Mineral)&0x3<<30
	w[1] = uint32(c.Color)&0xff |
		uint32(c.CurrentGene)&0x3f<<24 |
		(age>>8)<<30
	for i := 0; i < GenomeLen/4; i++ {
		w[2+i] = uint32(c.Genome[4*i]) |
			uint32(c.Genome[4*i+1])<<8 |
			uint32(c.Genome[4*i+2])<<16 |
			uint32(c.Genome[4*i+3])<<24
	}
	return
}

// Unpack decodes a fixed record back into a cell. Round-trip law:
// Unpack(Pack(c)) == c for every field defined by c's kind.
func Unpack(w [CellWords]uint32) (c Cell) {
	c.Kind = Kind(w[0] & 0x7)
	c.Direction = int(w[0] >> 3 & 0x7)
	c.Diet.Eat = int(w[0] >> 6 & 0x3)
	c.Energy = int(w[0] >> 16 & 0xff)
	c.Minerals = int(w[0] >> 24 & 0xf)
	c.Diet.Photo = int(w[0] >> 28 & 0x3)
	c.Diet.Mineral = int(w[0] >> 30 & 0x3)
	c.Color = int(w[1] & 0xff)
	c.CurrentGene = int(w[1] >> 24 & 0x3f)
	c.Age = int(w[0]>>8&0xff | w[1]>>30&0x1<<8)
	for i := 0; i < GenomeLen/4; i++ {
		c.Genome[4*i] = byte(w[2+i])
		c.Genome[4*i+1] = byte(w[2+i] >> 8)
		c.Genome[4*i+2] = byte(w[2+i] >> 16)
		c.Genome[4*i+3] = byte(w[2+i] >> 24)
	}
	return normalize(c)
}
