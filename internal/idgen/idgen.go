// Package idgen issues the surrogate row IDs used by the SQL link stores.
// IDs are UUID v7 so rows sort by insertion time.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator generates unique identifiers. Safe for concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// Func adapts a function to Generator.
type Func func() (uuid.UUID, error)

func (f Func) Generate() (uuid.UUID, error) { return f() }

type v7Gen struct {
	maxRetries int
	source     func() (uuid.UUID, error)
}

type V7Option func(*v7Gen)

// WithRetries sets how many times a failed draw is retried. Defaults to 1.
func WithRetries(n int) V7Option {
	return func(g *v7Gen) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// WithSource replaces uuid.NewV7 as the underlying draw.
func WithSource(src func() (uuid.UUID, error)) V7Option {
	return func(g *v7Gen) {
		if src != nil {
			g.source = src
		}
	}
}

// NewV7 returns a Generator that produces UUID v7 values.
func NewV7(opts ...V7Option) Generator {
	g := &v7Gen{maxRetries: 1, source: uuid.NewV7}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *v7Gen) Generate() (uuid.UUID, error) {
	var last error
	for range g.maxRetries + 1 {
		id, err := g.source()
		if err == nil {
			return id, nil
		}
		last = err
	}
	return uuid.Nil, fmt.Errorf("uuid v7 generation failed after %d attempts: %w", g.maxRetries+1, last)
}
