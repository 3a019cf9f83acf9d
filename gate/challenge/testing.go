package challenge

import (
	"sync"
)

// Generator which hands out a predetermined sequence of tokens (repeating the last one), and
// decoy lists with the real identity first. For tests.
type FixedGenerator struct {
	lk     sync.Mutex
	Tokens []string
	next   int
}

var _ Generator = (*FixedGenerator)(nil)

func NewFixedGenerator(tokens ...string) *FixedGenerator {
	if len(tokens) == 0 {
		tokens = []string{"K7m"}
	}
	return &FixedGenerator{Tokens: tokens}
}

func (g *FixedGenerator) NewToken() string {
	g.lk.Lock()
	defer g.lk.Unlock()
	idx := g.next
	if idx >= len(g.Tokens) {
		idx = len(g.Tokens) - 1
	} else {
		g.next++
	}
	return g.Tokens[idx]
}

func (g *FixedGenerator) DecoyIdentities(realUsername string, count int) []string {
	out := []string{realUsername}
	if realUsername == "" {
		return out
	}
	for i := 0; i < count; i++ {
		r := []rune(realUsername)
		r[len(r)-1] = rune('0' + i%10)
		if string(r) == realUsername {
			r[len(r)-1] = 'X'
		}
		out = append(out, string(r))
	}
	return out
}
