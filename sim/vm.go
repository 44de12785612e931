package sim

import (
	"evogrid/world"
	"evogrid/xorshift"
)

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// satIncr bumps a diet counter, saturating at its two-bit capacity.
func satIncr(v int) int {
	return minInt(v+1, world.DietMax)
}

// stepActive executes one gene for the agent at pos against the previous
// snapshot and returns the writes it commits this tick: its own next value
// (possibly at a new position) and, on reproduction, a child. The instruction
// dispatch is a single branch table over the gene code; per-cell state never
// escapes, so the function is safe to run for every cell in parallel.
func stepActive(
	prev *world.Grid,
	rng *xorshift.Field,
	env world.Environment,
	cfg Config,
	pos world.Pos,
) (in intent) {
	if isEaten(prev, pos) {
		// Erased where it stands; the eater books the gain at its own cell.
		return
	}

	c := prev.At(pos)
	idx := prev.Index(pos.X, pos.Y)
	arg := func(k int) int {
		return int(c.Genome[(c.CurrentGene+k)%world.GenomeLen])
	}

	advance := 1
	newPos := pos
	var child *world.Cell
	var childPos world.Pos

	code := int(c.Gene())
	switch {
	case code < NumJumpGenes:
		// An unconditional relative jump; a zero byte is a no-op.
		if code != 0 {
			advance = code
		}

	case code == GeneMoveForward:
		if to := pos.Step(c.Direction); canMove(prev, c, pos, to) {
			newPos = to
		}

	case code == GeneTurnCCW:
		c.Direction = (c.Direction + 1) % world.NumDirections

	case code == GeneTurnCW:
		c.Direction = (c.Direction + 3) % world.NumDirections

	case code == GeneEatForward:
		if t := prev.At(pos.Step(c.Direction)); t.Kind >= world.Food {
			c.Energy += t.Energy
			c.Diet.Eat = satIncr(c.Diet.Eat)
			advance = arg(1)
		} else {
			advance = arg(2)
		}

	case code == GeneReproduceForward:
		child, childPos, advance = reproduce(prev, rng, cfg, &c, pos, c.Direction, idx, arg)

	case code == GeneReproduceBackward:
		child, childPos, advance = reproduce(prev, rng, cfg, &c, pos, world.Opposite(c.Direction), idx, arg)

	case code == GenePhotosynthesize:
		if sun := env.SunAt(pos.Y); sun > 0 {
			c.Energy += sun
			c.Diet.Photo = satIncr(c.Diet.Photo)
		}

	case code == GeneCheckForward:
		t := prev.At(pos.Step(c.Direction))
		switch {
		case t.Kind == world.Active && c.Genome.Related(t.Genome, cfg.RelativeThreshold):
			advance = arg(1)
		case t.Kind == world.Active:
			advance = arg(2)
		case t.Kind == world.Food:
			advance = arg(3)
		case t.Kind == world.Air:
			advance = arg(4)
		default:
			advance = arg(5)
		}

	case code == GeneCheckEnergy:
		// Both arms read slot 2.
		if c.Energy > arg(1) {
			advance = arg(2)
		} else {
			advance = arg(2)
		}

	case code == GeneConvertMinerals:
		if c.Minerals > 0 {
			c.Energy += c.Minerals * cfg.MineralEnergy
			c.Minerals = 0
			c.Diet.Mineral = satIncr(c.Diet.Mineral)
		}

	default:
		// Codes past the table are inert.
	}

	// Per-tick bookkeeping, in fixed order: gene cursor, upkeep, mineral
	// intake at the destination row, ageing.
	c.CurrentGene = (c.CurrentGene + advance) % world.GenomeLen
	c.Energy = minInt(cfg.NodeMaxEnergy, c.Energy-1)
	c.Minerals = minInt(cfg.NodeMaxMinerals, c.Minerals+env.MineralAt(newPos.Y))
	c.Age++

	if c.Energy <= 0 || c.Age > cfg.NodeMaxAge {
		in.add(newPos, world.FoodCell(cfg.FoodEnergy))
	} else {
		in.add(newPos, c)
	}
	if child != nil {
		in.add(childPos, *child)
	}
	return
}

// reproduce implements the forward/backward split: the child gets half the
// energy left after the reproduction cost, and the parent loses that same
// half (the cost itself is not deducted from the parent).
// A failed attempt (not enough energy, or the nursery cell is lost to a
// stronger contender) branches to arg 3; success branches to arg 2.
func reproduce(
	prev *world.Grid,
	rng *xorshift.Field,
	cfg Config,
	c *world.Cell,
	pos world.Pos,
	dir int,
	idx int,
	arg func(int) int,
) (child *world.Cell, childPos world.Pos, advance int) {
	half := (c.Energy - cfg.ReproductionCost) / 2
	childPos = pos.Step(dir)
	if half <= 0 || !canMove(prev, *c, pos, childPos) {
		return nil, childPos, arg(3)
	}

	genome := c.Genome
	color := c.Color
	if rng.Intn(idx, 100) < cfg.MutationRate {
		genome[rng.Intn(idx, world.GenomeLen)] = byte(rng.Intn(idx, NumGeneCodes))
		color = (color + 1) % (world.MaxColor + 1)
	}

	child = &world.Cell{
		Kind:        world.Active,
		Direction:   c.Direction,
		Energy:      half,
		CurrentGene: arg(1) % world.GenomeLen,
		Color:       color,
		Genome:      genome,
	}
	c.Energy -= half
	return child, childPos, arg(2)
}

// stepFood handles falling organic matter: eaten food is erased, food on the
// bottom row drops out of the world, and otherwise it falls one row south
// when it wins the cell below.
func stepFood(prev *world.Grid, pos world.Pos) (in intent) {
	if isEaten(prev, pos) {
		return
	}
	c := prev.At(pos)
	south := pos.Step(world.South)
	if !prev.InRange(south) {
		return
	}
	if canMove(prev, c, pos, south) {
		in.add(south, c)
	} else {
		in.add(pos, c)
	}
	return
}
