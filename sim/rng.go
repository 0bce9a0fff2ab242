package sim

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// === Entropy ===

// Entropy is the master seed from which every stream of a run is derived.
// Two runs with the same Entropy and identical configuration MUST produce
// bit-for-bit identical results.
type Entropy int64

// === Seed splitting ===

const (
	splitmixGamma = 0x9e3779b97f4a7c15
)

// splitmix64 is the SplitMix64 output function applied to state.
func splitmix64(state uint64) uint64 {
	z := state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// ChildSeed derives the PCG seed pair of stream index from entropy.
//
// Derivation formula:
//   - state_i = uint64(entropy) + (2*index + 1) * gamma
//   - seed    = (splitmix64(state_i), splitmix64(state_i + gamma))
//
// Each index walks a disjoint pair of positions of the SplitMix64 sequence
// rooted at entropy, so children are unique per index and reproducible
// regardless of how many siblings are derived.
func ChildSeed(entropy Entropy, index int) (uint64, uint64) {
	state := uint64(entropy) + uint64(2*index+1)*splitmixGamma
	return splitmix64(state), splitmix64(state + splitmixGamma)
}

// === RandomStream ===

// RandomStream is a reproducible generator bound to one logical purpose.
// Thread-safety: NOT thread-safe.
type RandomStream struct {
	index   int
	purpose string
	src     *rand.PCG
	rnd     *rand.Rand
}

func newRandomStream(entropy Entropy, index int) *RandomStream {
	hi, lo := ChildSeed(entropy, index)
	src := rand.NewPCG(hi, lo)
	return &RandomStream{index: index, src: src, rnd: rand.New(src)}
}

// Index returns the position of the stream within its Streams set.
func (s *RandomStream) Index() int { return s.index }

// Purpose returns the purpose the stream was bound to, or "" if unbound.
func (s *RandomStream) Purpose() string { return s.purpose }

// SampleExponential draws from an exponential distribution with the given mean.
func (s *RandomStream) SampleExponential(mean float64) (float64, error) {
	if math.IsNaN(mean) || math.IsInf(mean, 0) || mean <= 0 {
		return 0, fmt.Errorf("%w: exponential mean must be > 0, got %v", ErrInvalidParameter, mean)
	}
	d := distuv.Exponential{Rate: 1 / mean, Src: s.src}
	return d.Rand(), nil
}

// SampleUniform draws uniformly from [lo, hi).
func (s *RandomStream) SampleUniform(lo, hi float64) (float64, error) {
	if math.IsNaN(lo) || math.IsNaN(hi) || !(lo < hi) {
		return 0, fmt.Errorf("%w: uniform bounds must satisfy lo < hi, got [%v, %v)", ErrInvalidParameter, lo, hi)
	}
	d := distuv.Uniform{Min: lo, Max: hi, Src: s.src}
	return d.Rand(), nil
}

// Uint64 returns the next raw 64-bit output, for callers that need bits
// rather than variates.
func (s *RandomStream) Uint64() uint64 {
	return s.rnd.Uint64()
}

// === Streams ===

// Streams holds the independent streams derived from one entropy value.
// Each stream is bound to at most one purpose so no two random processes
// share a generator.
type Streams struct {
	entropy Entropy
	streams []*RandomStream
	bound   map[string]int
}

// NewStreams derives n independent streams from entropy.
func NewStreams(entropy Entropy, n int) (*Streams, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: need at least one stream, got %d", ErrConfiguration, n)
	}
	s := &Streams{
		entropy: entropy,
		streams: make([]*RandomStream, n),
		bound:   make(map[string]int, n),
	}
	for i := range s.streams {
		s.streams[i] = newRandomStream(entropy, i)
	}
	return s, nil
}

// Entropy returns the master seed.
func (s *Streams) Entropy() Entropy { return s.entropy }

// Len returns the number of derived streams.
func (s *Streams) Len() int { return len(s.streams) }

// Stream returns stream i. Panics if i is out of range.
func (s *Streams) Stream(i int) *RandomStream {
	return s.streams[i]
}

// Bind assigns stream i to purpose and returns it. A stream serves exactly
// one purpose and a purpose owns exactly one stream.
func (s *Streams) Bind(i int, purpose string) (*RandomStream, error) {
	if i < 0 || i >= len(s.streams) {
		return nil, fmt.Errorf("%w: stream %d out of range [0, %d)", ErrConfiguration, i, len(s.streams))
	}
	if purpose == "" {
		return nil, fmt.Errorf("%w: stream %d needs a purpose", ErrConfiguration, i)
	}
	if j, ok := s.bound[purpose]; ok {
		return nil, fmt.Errorf("%w: purpose %q already bound to stream %d", ErrConfiguration, purpose, j)
	}
	st := s.streams[i]
	if st.purpose != "" {
		return nil, fmt.Errorf("%w: stream %d already serves %q", ErrConfiguration, i, st.purpose)
	}
	st.purpose = purpose
	s.bound[purpose] = i
	return st, nil
}

// ForPurpose returns the stream bound to purpose, or nil.
func (s *Streams) ForPurpose(purpose string) *RandomStream {
	i, ok := s.bound[purpose]
	if !ok {
		return nil
	}
	return s.streams[i]
}
