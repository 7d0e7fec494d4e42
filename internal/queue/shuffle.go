package queue

import (
	"math/rand/v2"
	"slices"
	"time"
)

// shuffler derives a traversal order over queue positions from a seeded
// generator. The order is independent of the physical sequence and always
// starts at the entry that was current when it was built.
type shuffler struct {
	enabled bool
	rng     *rand.Rand
	order   []int
}

func newShuffler(seed uint64) *shuffler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &shuffler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// rebuild regenerates the order for n positions with current first. It is a
// no-op while shuffle is disabled.
func (s *shuffler) rebuild(n, current int) {
	if !s.enabled || n == 0 {
		s.order = nil
		return
	}
	rest := make([]int, 0, n-1)
	for i := range n {
		if i != current {
			rest = append(rest, i)
		}
	}
	s.rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	s.order = append([]int{current}, rest...)
}

// step returns the position delta slots away from current in the order,
// wrapping at either end.
func (s *shuffler) step(current, delta int) int {
	n := len(s.order)
	if n == 0 {
		return current
	}
	slot := slices.Index(s.order, current)
	if slot < 0 {
		slot = 0
	}
	return s.order[((slot+delta)%n+n)%n]
}

// Order returns the current shuffle order, or nil when shuffle is off.
func (m *Manager) Order() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.shuffle.order)
}
