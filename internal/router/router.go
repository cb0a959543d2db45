// Package router turns raw intelligence records into metric points.
//
// Rules are evaluated in priority order. A matching terminal rule stops
// evaluation for the record; non-terminal rules are cumulative.
package router

import (
	"context"
	"log/slog"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/internal/classifier"
	"github.com/telhawk-systems/telhawk-intel/internal/enrich"
	"github.com/telhawk-systems/telhawk-intel/internal/metrics"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// Envelope is a record prepared for routing. Gang is resolved once and
// shared by every rule.
type Envelope struct {
	Record *model.Record
	Gang   string
}

// NewEnvelope wraps rec.
func NewEnvelope(rec *model.Record) *Envelope {
	return &Envelope{Record: rec, Gang: rec.Analysis.GangName()}
}

// Rule is one routing branch.
type Rule interface {
	// Name identifies the rule in logs and metrics.
	Name() string

	// Terminal reports whether a match stops evaluation of later rules.
	Terminal() bool

	// Matches reports whether the rule applies to the envelope.
	Matches(env *Envelope) bool

	// Build produces the rule's points. It must not fail; missing data
	// degrades to defaults.
	Build(ctx context.Context, env *Envelope) []*model.Point
}

// Router holds ordered rules.
type Router struct {
	rules  []Rule
	logger *slog.Logger
}

// New builds a router with the standard rule set.
func New(enricher enrich.Enricher, cls *classifier.Classifier, bases HomeBases, logger *slog.Logger) *Router {
	return NewWithRules(logger, DefaultRules(enricher, cls, bases)...)
}

// NewWithRules builds a router from an explicit rule list.
func NewWithRules(logger *slog.Logger, rules ...Rule) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{rules: rules, logger: logger.With(logging.Component("router"))}
}

// DefaultRules returns the standard rules in priority order.
func DefaultRules(enricher enrich.Enricher, cls *classifier.Classifier, bases HomeBases) []Rule {
	if cls == nil {
		cls = classifier.Default()
	}
	if bases == nil {
		bases = DefaultHomeBases()
	}
	return []Rule{
		StrategicRule{},
		C2Rule{Enricher: enricher},
		TacticalRule{Enricher: enricher, Classifier: cls, HomeBases: bases},
		LeadsRule{},
		HealthRule{},
		SecurityRule{},
	}
}

// Rules returns the router's rules in evaluation order.
func (r *Router) Rules() []Rule {
	return r.rules
}

// Route converts one record into zero or more points.
func (r *Router) Route(ctx context.Context, rec *model.Record) []*model.Point {
	if r == nil || rec == nil {
		return nil
	}
	metrics.RecordsRouted.Inc()

	env := NewEnvelope(rec)
	var points []*model.Point
	for _, rule := range r.rules {
		if !rule.Matches(env) {
			continue
		}
		metrics.RuleMatches.WithLabelValues(rule.Name()).Inc()

		built := rule.Build(ctx, env)
		for _, p := range built {
			metrics.PointsEmitted.WithLabelValues(string(p.Measurement)).Inc()
		}
		points = append(points, built...)

		if rule.Terminal() {
			break
		}
	}

	logging.FromContext(ctx, r.logger).DebugContext(ctx, "record routed",
		logging.Source(rec.Source),
		logging.Points(len(points)),
	)
	return points
}
