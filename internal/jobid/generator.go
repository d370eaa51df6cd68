// Package jobid builds the identifiers attached to dispatched jobs.
package jobid

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Prefix is prepended to every generated identifier.
const Prefix = "job-card-"

// Source is the random number source behind a Generator. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Generator draws ids uniformly from the half-open range [lower, upper).
// It is not safe for concurrent use unless its Source is.
type Generator struct {
	lower int
	upper int
	src   Source
}

// NewGenerator returns a generator over [lower, upper). A nil src selects the
// process-wide math/rand/v2 source.
func NewGenerator(lower, upper int, src Source) (*Generator, error) {
	if upper <= lower {
		return nil, fmt.Errorf("invalid job id range [%d, %d)", lower, upper)
	}
	if src == nil {
		src = globalSource{}
	}
	return &Generator{lower: lower, upper: upper, src: src}, nil
}

// NewSeeded returns a deterministic generator, mainly for tests and replays.
func NewSeeded(lower, upper int, seed uint64) (*Generator, error) {
	return NewGenerator(lower, upper, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Next returns "job-card-<n>".
func (g *Generator) Next() string {
	return Prefix + strconv.Itoa(g.lower+g.src.IntN(g.upper-g.lower))
}

// Parse extracts the numeric part of an id produced by Next.
func Parse(id string) (int, error) {
	s, ok := strings.CutPrefix(id, Prefix)
	if !ok {
		return 0, fmt.Errorf("job id %q lacks prefix %q", id, Prefix)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("job id %q: %w", id, err)
	}
	return n, nil
}
