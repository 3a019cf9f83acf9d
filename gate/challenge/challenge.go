package challenge

import (
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v6"
)

const (
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// characters easily confused with each other on screen or by screen readers
	ambiguous = "0Oo1lI"

	DefaultMinTokenLen = 3
	DefaultMaxTokenLen = 5
	DefaultDecoyCount  = 5
)

// Source of challenge material. The state machine takes this as a dependency so tests can pin
// tokens.
type Generator interface {
	NewToken() string
	DecoyIdentities(realUsername string, count int) []string
}

// Default Generator, backed by a cryptographically seeded faker.
type RandomGenerator struct {
	MinLen           int
	MaxLen           int
	ExcludeAmbiguous bool

	lk    sync.Mutex
	faker *gofakeit.Faker
}

var _ Generator = (*RandomGenerator)(nil)

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{
		MinLen:           DefaultMinTokenLen,
		MaxLen:           DefaultMaxTokenLen,
		ExcludeAmbiguous: true,
		faker:            gofakeit.NewCrypto(),
	}
}

func (g *RandomGenerator) NewToken() string {
	return g.token(g.MinLen, g.MaxLen, g.ExcludeAmbiguous)
}

func (g *RandomGenerator) token(minLen, maxLen int, excludeAmbiguous bool) string {
	g.lk.Lock()
	defer g.lk.Unlock()
	if minLen < 1 {
		minLen = 1
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	n := g.faker.Number(minLen, maxLen)
	return g.randomString(n, charset(excludeAmbiguous))
}

// caller must hold lk
func (g *RandomGenerator) randomString(n int, chars string) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(chars[g.faker.Number(0, len(chars)-1)])
	}
	return sb.String()
}

// Returns the real username plus count synthetic look-alikes of the same length (in characters),
// in random order.
//
// Generation gives up after a bounded number of collisions, so fewer than count decoys come back
// when the username is too short to have that many distinct look-alikes (an empty username gets
// none).
func (g *RandomGenerator) DecoyIdentities(realUsername string, count int) []string {
	g.lk.Lock()
	defer g.lk.Unlock()

	size := utf8.RuneCountInString(realUsername)
	seen := map[string]bool{strings.ToLower(realUsername): true}
	out := []string{realUsername}
	for tries := 0; len(out) < count+1 && tries < count*20; tries++ {
		d := g.lookAlike(size)
		if seen[strings.ToLower(d)] {
			continue
		}
		seen[strings.ToLower(d)] = true
		out = append(out, d)
	}
	g.faker.ShuffleStrings(out)
	return out
}

// ASCII only, so byte and character lengths agree. caller must hold lk
func (g *RandomGenerator) lookAlike(size int) string {
	base := strings.Map(func(r rune) rune {
		if strings.ContainsRune(alphanumeric+"_-", r) {
			return r
		}
		return -1
	}, g.faker.Username())
	if len(base) >= size {
		return base[:size]
	}
	return base + g.randomString(size-len(base), alphanumeric)
}

// NewToken returns a random alphanumeric token with length in [minLen, maxLen].
func NewToken(minLen, maxLen int, excludeAmbiguous bool) string {
	return defaultGenerator.token(minLen, maxLen, excludeAmbiguous)
}

// DecoyIdentities is the package-level form of RandomGenerator.DecoyIdentities.
func DecoyIdentities(realUsername string, count int) []string {
	return defaultGenerator.DecoyIdentities(realUsername, count)
}

var defaultGenerator = NewRandomGenerator()

func charset(excludeAmbiguous bool) string {
	if !excludeAmbiguous {
		return alphanumeric
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(ambiguous, r) {
			return -1
		}
		return r
	}, alphanumeric)
}

// Compares an entered token against the displayed one as a multiset of characters: case and
// surrounding whitespace are ignored, and so is character order (transposed characters still
// match). An empty displayed token never matches.
func TokensMatch(displayed, entered string) bool {
	d := []rune(strings.ToLower(strings.TrimSpace(displayed)))
	e := []rune(strings.ToLower(strings.TrimSpace(entered)))
	if len(d) == 0 || len(d) != len(e) {
		return false
	}
	slices.Sort(d)
	slices.Sort(e)
	return slices.Equal(d, e)
}
