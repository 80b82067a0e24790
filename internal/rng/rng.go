// Package rng provides the seeded uniform source that drives trajectory sampling.
//
// The generator is Mulberry32 with a non-standard mixing multiplier. Every
// operation is done on uint32 so a given seed yields the same sequence of
// floats on any platform.
package rng

// #region source
// Source yields uniform floats in [0,1). Each call advances the stream.
type Source interface {
	Next() float64
}

// #endregion source

// #region constants
const (
	seedOffset uint32  = 0x6D2B79F5
	multiplier uint32  = 3812017321
	twoTo32    float64 = 4294967296
)

// #endregion constants

// #region mulberry
// Mulberry32 is a deterministic 32-bit generator. Not safe for concurrent use;
// every trajectory run owns its own instance.
type Mulberry32 struct {
	state uint32
	draws uint64
}

// New creates a generator whose stream is a pure function of seed.
func New(seed uint32) *Mulberry32 {
	return &Mulberry32{state: seed + seedOffset}
}

// Next advances the state and returns state / 2^32.
func (m *Mulberry32) Next() float64 {
	t := multiplier * (m.state ^ (m.state >> 15))
	t ^= t << 13
	t ^= t >> 17
	t ^= t << 5
	m.state = t
	m.draws++
	return float64(t) / twoTo32
}

// Draws reports how many values have been produced so far.
func (m *Mulberry32) Draws() uint64 {
	return m.draws
}

// #endregion mulberry

// #region fixed
// Fixed replays a fixed list of values, then repeats the last one. An empty
// Fixed always returns 0.5. Used by tests that need to pin individual draws.
type Fixed struct {
	Values []float64
	pos    int
}

// Next returns the next pinned value.
func (f *Fixed) Next() float64 {
	if len(f.Values) == 0 {
		return 0.5
	}
	v := f.Values[f.pos]
	if f.pos < len(f.Values)-1 {
		f.pos++
	}
	return v
}

// #endregion fixed
