// ABOUTME: Concept session: evaluates domain combinations against the constraints through the oracle.
// ABOUTME: Owns the abstract value and a result cache keyed by constraint fingerprint; every mutation clears both.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"lukechampine.com/blake3"

	"github.com/2389-research/conceptgraph/concept"
	"github.com/2389-research/conceptgraph/logic"
	"github.com/2389-research/conceptgraph/metrics"
	"github.com/2389-research/conceptgraph/oracle"
)

var (
	// ErrEmptyNode is returned when materializing a node that is definitely empty.
	ErrEmptyNode = errors.New("node is definitely empty")
	// ErrContradiction is returned when a supposition contradicts a definite abstract value.
	ErrContradiction = errors.New("contradicts the abstract value")
)

// CacheKey identifies a cached oracle result: the constraint fingerprint and
// the combination key.
type CacheKey struct {
	Fingerprint string
	Key         concept.Key
}

// Session evaluates a domain under base state and suppose constraints.
type Session struct {
	sig       *logic.Signature
	oracle    oracle.Oracle
	log       logrus.FieldLogger
	domain    *concept.Domain
	state     []logic.Formula
	suppose   []logic.Formula
	value     concept.AbstractValue
	cache     map[CacheKey]concept.Truth
	witnesses []*logic.Symbol
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithState sets the initial base state.
func WithState(fs ...logic.Formula) Option {
	return func(s *Session) { s.state = slices.Clone(fs) }
}

// New returns a session over d. The session takes ownership of d.
func New(sig *logic.Signature, o oracle.Oracle, d *concept.Domain, opts ...Option) *Session {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	s := &Session{
		sig:    sig,
		oracle: o,
		log:    log,
		domain: d,
		value:  make(concept.AbstractValue),
		cache:  make(map[CacheKey]concept.Truth),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("component", "session")
	return s
}

// Signature returns the signature the session was created with.
func (s *Session) Signature() *logic.Signature { return s.sig }

// Domain returns the current domain. Callers must not mutate it; use the
// session's mutators instead.
func (s *Session) Domain() *concept.Domain { return s.domain }

// Value returns a copy of the abstract value.
func (s *Session) Value() concept.AbstractValue { return s.value.Clone() }

// State returns the base state constraints.
func (s *Session) State() []logic.Formula { return slices.Clone(s.state) }

// Supposed returns the suppose constraints.
func (s *Session) Supposed() []logic.Formula { return slices.Clone(s.suppose) }

// Constraints returns the base state followed by the suppose constraints.
func (s *Session) Constraints() []logic.Formula {
	return append(slices.Clone(s.state), s.suppose...)
}

// Witnesses returns the witness constants introduced by materialization.
func (s *Session) Witnesses() []*logic.Symbol { return slices.Clone(s.witnesses) }

// Cache returns a copy of the result cache.
func (s *Session) Cache() map[CacheKey]concept.Truth { return maps.Clone(s.cache) }

// Fingerprint identifies the current constraint set.
func (s *Session) Fingerprint() string {
	h := blake3.New(32, nil)
	for _, f := range s.state {
		h.Write([]byte(f.String()))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, f := range s.suppose {
		h.Write([]byte(f.String()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// mutate is the single path for changes that can affect oracle answers.
// It clears the cache and drops computed values, keeping user overrides.
func (s *Session) mutate(action string, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	s.ClearCache()
	for k := range s.value {
		if !k.IsCustom() {
			delete(s.value, k)
		}
	}
	for _, d := range concept.Lint(s.domain) {
		s.log.WithFields(logrus.Fields{"action": action, "rule": d.Rule, "concept": d.Name}).Error(d.Message)
	}
	s.log.WithField("action", action).Debug("session state changed")
	return nil
}

// ClearCache discards every cached result.
func (s *Session) ClearCache() {
	clear(s.cache)
}

// SetState replaces the base state.
func (s *Session) SetState(fs []logic.Formula) error {
	return s.mutate("set_state", func() error {
		s.state = slices.Clone(fs)
		return nil
	})
}

// Suppose appends constraints to the suppose constraints.
func (s *Session) Suppose(fs ...logic.Formula) error {
	return s.mutate("suppose", func() error {
		s.suppose = append(s.suppose, fs...)
		return nil
	})
}

// SetDomain replaces the domain.
func (s *Session) SetDomain(d *concept.Domain) error {
	return s.mutate("set_domain", func() error {
		s.domain = d
		return nil
	})
}

// AddConcept registers c in the domain under kind.
func (s *Session) AddConcept(c *concept.Concept, kind concept.Kind) error {
	return s.mutate("add_concept", func() error {
		return s.domain.Add(c, kind)
	})
}

// Split splits node by a unary concept.
func (s *Session) Split(node string, by *concept.Concept) (pos, neg *concept.Concept, err error) {
	err = s.mutate("split", func() error {
		pos, neg, err = s.domain.Split(node, by)
		return err
	})
	return pos, neg, err
}

// SplitNWay splits node into one successor per part.
func (s *Session) SplitNWay(node string, parts []*concept.Concept) (succ []*concept.Concept, err error) {
	err = s.mutate("split_n_way", func() error {
		succ, err = s.domain.SplitNWay(node, parts)
		return err
	})
	return succ, err
}

// Override records a user override for k. Overrides are display-only and do
// not clear the cache.
func (s *Session) Override(k concept.Key, t concept.Truth) {
	s.value[k.Custom()] = t
}

// ClearOverride removes the user override for k.
func (s *Session) ClearOverride(k concept.Key) {
	delete(s.value, k.Custom())
}

// Recompute evaluates every combination the projection admits. Oracle
// failures become Unknown and are not cached; only context cancellation is
// returned as an error.
func (s *Session) Recompute(ctx context.Context, proj concept.Projection) error {
	start := time.Now()
	fp := s.Fingerprint()
	constraints := s.Constraints()
	var hits, misses int
	for _, in := range s.domain.Instances(proj) {
		ck := CacheKey{Fingerprint: fp, Key: in.Key}
		if t, ok := s.cache[ck]; ok {
			hits++
			metrics.CacheHit()
			s.value[in.Key] = t
			continue
		}
		misses++
		metrics.CacheMiss()
		t, err := s.decide(ctx, constraints, in.Formula)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("recompute: %w", ctxErr)
			}
			s.log.WithFields(logrus.Fields{"action": "recompute", "key": in.Key.String()}).WithError(err).Debug("oracle gave no answer")
			s.value[in.Key] = concept.Unknown
			continue
		}
		s.cache[ck] = t
		s.value[in.Key] = t
	}
	metrics.ObserveRecompute(time.Since(start))
	s.log.WithFields(logrus.Fields{"action": "recompute", "hits": hits, "misses": misses}).Debug("abstract value recomputed")
	return nil
}

func (s *Session) decide(ctx context.Context, constraints []logic.Formula, f logic.Formula) (concept.Truth, error) {
	v, err := s.oracle.Decide(ctx, oracle.Query{Constraints: constraints, Formula: f})
	if err != nil {
		return concept.Unknown, err
	}
	switch v {
	case oracle.Valid:
		return concept.True, nil
	case oracle.Unsatisfiable:
		return concept.False, nil
	default:
		return concept.Unknown, nil
	}
}

// Clone returns a session sharing no mutable state with s. The oracle and
// signature are shared.
func (s *Session) Clone() *Session {
	return &Session{
		sig:       s.sig,
		oracle:    s.oracle,
		log:       s.log,
		domain:    s.domain.Clone(),
		state:     slices.Clone(s.state),
		suppose:   slices.Clone(s.suppose),
		value:     s.value.Clone(),
		cache:     maps.Clone(s.cache),
		witnesses: slices.Clone(s.witnesses),
	}
}
