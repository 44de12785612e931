// Package xorshift provides a field of independent xorshift32 streams, one
// per grid cell. The step kernel partitions the field by cell index: each
// parallel task touches only the slot it owns, so no locking is needed and
// the combined stream is deterministic for a given seed and update order.
package xorshift

import "math/rand"

// Field holds one xorshift32 state word per cell.
type Field struct {
	state []uint32
}

// NewField returns a field of n streams seeded from seed. The xorshift32
// recurrence has an all-zero fixed point, so zero draws from the seeding
// generator are re-drawn.
func NewField(n int, seed int64) *Field {
	src := rand.New(rand.NewSource(seed))
	state := make([]uint32, n)
	for i := range state {
		for state[i] == 0 {
			state[i] = src.Uint32()
		}
	}
	return &Field{state: state}
}

// Next advances stream i and returns its next value.
func (f *Field) Next(i int) uint32 {
	x := f.state[i]
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	f.state[i] = x
	return x
}

// Intn advances stream i and returns a value in [0, n).
func (f *Field) Intn(i, n int) int {
	return int(f.Next(i) % uint32(n))
}

// Range advances stream i and returns a value in [lo, hi).
func (f *Field) Range(i, lo, hi int) int {
	return lo + int(f.Next(i)%uint32(hi-lo))
}

// Len returns the number of streams.
func (f *Field) Len() int {
	return len(f.state)
}
