// ABOUTME: Oracle decorator that reports each query's verdict and duration to metric emitters.
// ABOUTME: Wraps any Oracle; failed queries are reported with the verdict "error".
package oracle

import (
	"context"
	"time"
)

// Instrumented wraps an oracle and emits one observation per query.
type Instrumented struct {
	oracle  Oracle
	emitter func(verdict string, d time.Duration)
}

var _ Oracle = &Instrumented{}

// NewInstrumented wraps o. Failed queries are reported with the verdict "error".
func NewInstrumented(o Oracle, emitter func(verdict string, d time.Duration)) *Instrumented {
	return &Instrumented{oracle: o, emitter: emitter}
}

func (i *Instrumented) Decide(ctx context.Context, q Query) (Verdict, error) {
	start := time.Now()
	v, err := i.oracle.Decide(ctx, q)
	if err != nil {
		i.emitter("error", time.Since(start))
	} else {
		i.emitter(v.String(), time.Since(start))
	}
	return v, err
}
