// ABOUTME: Decision oracle contract consumed by the concept session: validity and unsatisfiability under constraints.
// ABOUTME: Oracle failures are never fatal to callers; they degrade to an Unknown verdict.
package oracle

import (
	"context"
	"errors"

	"github.com/2389-research/conceptgraph/logic"
)

// Verdict is the answer to a query.
type Verdict int

const (
	Unknown Verdict = iota
	// Valid means the formula holds in every model of the constraints.
	Valid
	// Unsatisfiable means the formula holds in no model of the constraints.
	Unsatisfiable
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Unsatisfiable:
		return "unsatisfiable"
	default:
		return "unknown"
	}
}

// ErrUnsupported is returned for formulas the oracle cannot encode.
var ErrUnsupported = errors.New("unsupported formula")

// Query asks for the status of a closed formula under a set of constraints.
// Free variables in constraints are read as universally quantified.
type Query struct {
	Constraints []logic.Formula
	Formula     logic.Formula
}

// Oracle decides queries. Implementations return Unknown together with an
// error when they give up; callers treat that as Unknown.
type Oracle interface {
	Decide(ctx context.Context, q Query) (Verdict, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, q Query) (Verdict, error)

// Decide calls f.
func (f Func) Decide(ctx context.Context, q Query) (Verdict, error) { return f(ctx, q) }
