// Package roomcode generates short, human-typeable room codes.
package roomcode

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"math/rand"
	"strings"
)

const (
	// Alphabet is the set of characters a code is drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Length of every generated code.
	Length = 6
	// DefaultRetries bounds collision retries when none is configured.
	DefaultRetries = 10
)

// ErrCodeExhausted is returned when every attempt collided with an existing room.
var ErrCodeExhausted = errors.New("room code space exhausted")

// ExistsFunc reports whether a code is already assigned to a game.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator produces room codes from an injected random source.
type Generator struct {
	rng     *rand.Rand
	retries int
}

// NewGenerator returns a generator drawing from rng. A nil rng is replaced
// by a cryptographically seeded one; retries <= 0 means DefaultRetries.
func NewGenerator(rng *rand.Rand, retries int) *Generator {
	if rng == nil {
		rng = NewSeededRand()
	}
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &Generator{rng: rng, retries: retries}
}

// NewSeededRand returns a math/rand source seeded from crypto/rand.
func NewSeededRand() *rand.Rand {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("roomcode: crypto seed unavailable: " + err.Error())
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}

// Generate returns one code. It does not check for collisions.
func (g *Generator) Generate() string {
	code := make([]byte, Length)
	for i := range code {
		code[i] = Alphabet[g.rng.Intn(len(Alphabet))]
	}
	return string(code)
}

// Unique generates codes until exists reports a free one, giving up with
// ErrCodeExhausted after the configured number of attempts.
func (g *Generator) Unique(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < g.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := g.Generate()
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// Normalize upper-cases and trims user input so lookups are case-insensitive.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the generated shape.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
