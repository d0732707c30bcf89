// Package token issues the opaque access tokens that identify a guest's
// invitation link.
package token

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"wedding-rsvp/internal/models"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// DefaultLength gives roughly 190 bits of entropy over the alphabet
	DefaultLength = 32

	// MaxAttempts bounds the search for an unused token
	MaxAttempts = 10
)

// TakenFunc reports whether a candidate token is already in use
type TakenFunc func(ctx context.Context, candidate string) (bool, error)

// Generator produces random alphanumeric tokens
type Generator struct {
	Length int
	Rand   io.Reader
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{Length: DefaultLength, Rand: rand.Reader}
}

// Generate returns a fresh token. Bytes that would bias the alphabet are
// rejected and redrawn.
func (g *Generator) Generate() (string, error) {
	n := g.Length
	if n <= 0 {
		n = DefaultLength
	}
	src := g.Rand
	if src == nil {
		src = rand.Reader
	}

	// 248 is the largest multiple of len(alphabet) that fits in a byte
	const limit = 256 - 256%len(alphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// Unique generates tokens until taken reports one as unused.
// It gives up with ErrTokenGeneration after MaxAttempts candidates.
func (g *Generator) Unique(ctx context.Context, taken TakenFunc) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		candidate, err := g.Generate()
		if err != nil {
			return "", err
		}
		inUse, err := taken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check token uniqueness: %w", err)
		}
		if !inUse {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", models.ErrTokenGeneration, MaxAttempts)
}

// InSet checks candidates against a set of known tokens
func InSet(set map[string]struct{}) TakenFunc {
	return func(_ context.Context, candidate string) (bool, error) {
		_, ok := set[candidate]
		return ok, nil
	}
}

// BuildGuestURL composes the public invitation link for a token
func BuildGuestURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/i/" + token
}
