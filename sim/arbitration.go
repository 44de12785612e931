package sim

import "evogrid/world"

// Contention is resolved without locks: every cell derives the same answers
// about its neighbours from the previous snapshot alone, so all candidate
// writers for a target agree on the single winner. The two primitives below
// are the whole coordination protocol; do not add per-cell locks or atomics
// around them.

// canon folds a position's x into the grid so positions compare equal across
// the wrap seam.
func canon(g *world.Grid, p world.Pos) world.Pos {
	return world.Pos{X: ((p.X % g.W) + g.W) % g.W, Y: p.Y}
}

// canMove reports whether actor, standing at from, wins the empty cell at
// to. The target must be AIR, and for every other neighbour of the target
// that also wants it this tick — an agent executing MOVE_FORWARD facing the
// target, or food about to fall into it from above — the actor must carry
// strictly more energy. Ties lose on both sides, leaving the cell empty.
func canMove(prev *world.Grid, actor world.Cell, from, to world.Pos) bool {
	if prev.KindAt(to) != world.Air {
		return false
	}
	self := canon(prev, from)
	for dir, n := range to.Neighbors() {
		if canon(prev, n) == self {
			continue
		}
		c := prev.At(n)
		switch {
		case c.Kind == world.Active &&
			c.Gene() == GeneMoveForward &&
			world.Opposite(c.Direction) == dir:
			if actor.Energy <= c.Energy {
				return false
			}
		case c.Kind == world.Food && dir == world.North:
			// Food falls south, so only the cell above the target competes.
			if actor.Energy <= c.Energy {
				return false
			}
		}
	}
	return true
}

// isEaten reports whether the cell at pos is consumed this tick: some
// neighbour is an agent executing EAT_FORWARD and facing pos. The eaten cell
// erases itself and the eater records the gain at its own position, so the
// two writes can never collide.
func isEaten(prev *world.Grid, pos world.Pos) bool {
	for dir, n := range pos.Neighbors() {
		c := prev.At(n)
		if c.Kind == world.Active &&
			c.Gene() == GeneEatForward &&
			world.Opposite(c.Direction) == dir {
			return true
		}
	}
	return false
}
