// ABOUTME: Bounded finite-model oracle: decides queries whose small models fit within Bound elements per sort.
// ABOUTME: Builds a gini circuit per query, converts it to CNF, and polls the solver against the context.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/inter"
	circuit "github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/sirupsen/logrus"

	"github.com/2389-research/conceptgraph/logic"
)

const (
	unsatisfiable = -1

	// DefaultBound is the largest universe searched per uninterpreted sort.
	DefaultBound = 6
)

// Bounded decides queries in the stratified many-sorted EPR fragment: after
// Skolemization every uninterpreted sort has finitely many ground terms, and
// a satisfiable query has a model no larger than that count. Universes are
// grounded at that size (possibly empty) and enumerated sorts have exactly
// their constructors. Queries whose small model exceeds bound, or that fall
// outside the fragment, are Unknown.
type Bounded struct {
	bound   int
	timeout time.Duration
	poll    time.Duration
	log     logrus.FieldLogger
}

// Option configures a Bounded oracle.
type Option func(*Bounded)

// WithBound sets the largest universe grounded per uninterpreted sort.
func WithBound(n int) Option {
	return func(b *Bounded) {
		if n > 0 {
			b.bound = n
		}
	}
}

// WithTimeout bounds each query. Zero means no limit beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(b *Bounded) { b.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bounded) { b.log = l }
}

// NewBounded returns a bounded oracle.
func NewBounded(opts ...Option) *Bounded {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	b := &Bounded{bound: DefaultBound, poll: 2 * time.Millisecond, log: log}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Bound returns the largest universe grounded per uninterpreted sort.
func (b *Bounded) Bound() int { return b.bound }

// Decide first checks whether constraints & formula is satisfiable, then
// whether constraints & ~formula is. Each check can only prove
// unsatisfiability when its small model fits the bound; otherwise a model
// outside the searched universes may exist and that side stays open.
func (b *Bounded) Decide(ctx context.Context, q Query) (Verdict, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	posSizes, posErr := analyze(q, false).sizes(b.bound)
	negSizes, negErr := analyze(q, true).sizes(b.bound)
	if posErr != nil && negErr != nil {
		b.log.WithFields(logrus.Fields{"component": "oracle", "action": "decide"}).
			WithError(posErr).Debug("query outside the decidable bound")
		return Unknown, nil
	}
	sizes := make(map[string]int)
	for _, m := range []map[string]int{posSizes, negSizes} {
		for s, n := range m {
			sizes[s] = max(sizes[s], n)
		}
	}

	g := newGrounder(b.bound, sizes)
	base := make([]z.Lit, 0, len(q.Constraints))
	for _, f := range q.Constraints {
		m, err := g.formula(logic.ForAll(logic.FreeVars(f), f), env{})
		if err != nil {
			return Unknown, fmt.Errorf("constraint %s: %w", f, err)
		}
		base = append(base, m)
	}
	phi, err := g.formula(q.Formula, env{})
	if err != nil {
		return Unknown, fmt.Errorf("formula %s: %w", q.Formula, err)
	}
	// side constraints are complete only after every formula is grounded
	base = append(base, g.side...)

	if posErr == nil {
		res, err := b.solve(ctx, g.c, append(base, phi))
		if err != nil {
			return Unknown, err
		}
		if res == unsatisfiable {
			return Unsatisfiable, nil
		}
	}
	if negErr == nil {
		res, err := b.solve(ctx, g.c, append(base, phi.Not()))
		if err != nil {
			return Unknown, err
		}
		if res == unsatisfiable {
			return Valid, nil
		}
	}
	return Unknown, nil
}

func (b *Bounded) solve(ctx context.Context, c *circuit.C, roots []z.Lit) (int, error) {
	s := gini.New()
	c.ToCnf(s)
	for _, m := range roots {
		s.Add(m)
		s.Add(0)
	}
	if ctx.Done() == nil {
		return s.Solve(), nil
	}
	res := b.waitForSolution(ctx, s.GoSolve())
	if res == 0 {
		b.log.WithFields(logrus.Fields{"component": "oracle", "action": "solve"}).Debug("solver stopped without an answer")
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	return res, nil
}

func (b *Bounded) waitForSolution(ctx context.Context, gs inter.Solve) int {
	if result, ok := gs.Test(); ok {
		return result
	}
	t := time.NewTicker(b.poll)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return gs.Stop()
		case <-t.C:
			if result, ok := gs.Test(); ok {
				return result
			}
		}
	}
}
