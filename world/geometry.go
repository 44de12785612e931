package world

// Pos is a grid coordinate. X wraps around the world's width; Y does not
// wrap, and out-of-range Y addresses the WALL sentinel.
type Pos struct {
	X, Y int
}

// deltas maps a direction to its unit offset. Y grows downward: y=0 is the
// sunlit top row, so South points toward the mineral-rich bottom.
var deltas = [NumDirections]Pos{
	East:  {1, 0},
	North: {0, -1},
	West:  {-1, 0},
	South: {0, 1},
}

// Step returns the neighbouring position one cell away in dir.
func (p Pos) Step(dir int) Pos {
	d := deltas[dir%NumDirections]
	return Pos{p.X + d.X, p.Y + d.Y}
}

// Neighbors returns the four von Neumann neighbours of p, indexed by the
// direction from p toward the neighbour.
func (p Pos) Neighbors() (n [NumDirections]Pos) {
	for dir := 0; dir < NumDirections; dir++ {
		n[dir] = p.Step(dir)
	}
	return
}

// Opposite returns the direction pointing back the way dir points.
func Opposite(dir int) int {
	return (dir + 2) % NumDirections
}

// wrapX folds an x coordinate into [0, w).
func wrapX(x, w int) int {
	x %= w
	if x < 0 {
		x += w
	}
	return x
}

// Grid is a W×H field of packed cell records stored column-major:
// index(x,y) = x·H + y. It is the double-buffer element of the kernel and
// the snapshot exposed to renderers.
type Grid struct {
	W, H  int
	words []uint32
}

// NewGrid returns an all-AIR grid.
func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, words: make([]uint32, w*h*CellWords)}
}

// Index returns the cell index of (x, y) with x wrapped. The caller must
// ensure y is in range.
func (g *Grid) Index(x, y int) int {
	return wrapX(x, g.W)*g.H + y
}

// InRange reports whether p addresses a real cell. Only Y can be out of
// range since X wraps.
func (g *Grid) InRange(p Pos) bool {
	return p.Y >= 0 && p.Y < g.H
}

// At reads the cell at p. Out-of-range positions read as WALL, which keeps
// the per-cell kernel code free of bounds branches.
func (g *Grid) At(p Pos) Cell {
	if !g.InRange(p) {
		return WallCell
	}
	off := g.Index(p.X, p.Y) * CellWords
	var w [CellWords]uint32
	copy(w[:], g.words[off:off+CellWords])
	return Unpack(w)
}

// KindAt reads just the kind at p, without decoding the whole record.
func (g *Grid) KindAt(p Pos) Kind {
	if !g.InRange(p) {
		return Wall
	}
	return Kind(g.words[g.Index(p.X, p.Y)*CellWords] & 0x7)
}

// Put writes the cell at p. Out-of-range writes are dropped.
func (g *Grid) Put(p Pos, c Cell) {
	if !g.InRange(p) {
		return
	}
	w := Pack(c)
	off := g.Index(p.X, p.Y) * CellWords
	copy(g.words[off:off+CellWords], w[:])
}

// Words exposes the packed buffer. Callers own the aliasing discipline; the
// simulator only hands out copies.
func (g *Grid) Words() []uint32 {
	return g.words
}

// Clear resets every cell to AIR.
func (g *Grid) Clear() {
	for i := range g.words {
		g.words[i] = 0
	}
}

// CopyFrom makes g an exact copy of src. The grids must be the same size.
func (g *Grid) CopyFrom(src *Grid) {
	if g.W != src.W || g.H != src.H {
		panic("world: grid size mismatch")
	}
	copy(g.words, src.words)
}

// Cells returns the number of cells in the grid.
func (g *Grid) Cells() int {
	return g.W * g.H
}
