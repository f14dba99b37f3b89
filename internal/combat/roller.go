package combat

import (
	"math/rand/v2"
	"sync"
)

// Roller supplies the randomness used by combat resolution and turn ordering.
type Roller interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

type randRoller struct{}

// NewRandRoller returns a Roller backed by the runtime-seeded math/rand/v2 source.
// It is safe for concurrent use.
func NewRandRoller() Roller {
	return randRoller{}
}

func (randRoller) Float64() float64 {
	return rand.Float64()
}

func (randRoller) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// SequenceRoller replays a fixed list of rolls. Once the list is exhausted it returns
// Fallback. Shuffle leaves the order untouched.
type SequenceRoller struct {
	mu       sync.Mutex
	rolls    []float64
	Fallback float64
}

// NewSequenceRoller returns a roller replaying rolls in order.
func NewSequenceRoller(fallback float64, rolls ...float64) *SequenceRoller {
	return &SequenceRoller{rolls: rolls, Fallback: fallback}
}

// Push appends rolls to the sequence.
func (s *SequenceRoller) Push(rolls ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolls = append(s.rolls, rolls...)
}

// Remaining returns the number of queued rolls.
func (s *SequenceRoller) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rolls)
}

func (s *SequenceRoller) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rolls) == 0 {
		return s.Fallback
	}
	v := s.rolls[0]
	s.rolls = s.rolls[1:]
	return v
}

func (s *SequenceRoller) Shuffle(int, func(i, j int)) {}
