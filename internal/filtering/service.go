package filtering

import (
	"context"
	"fmt"
	"time"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/cel"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
	"safetyrelay/pkg/tracing"
)

type rule struct {
	name    string
	program *cel.Program
}

// Service applies the keyword relevance gate and then any operator rules.
type Service struct {
	relevance *Relevance
	rules     []rule
	fallback  string
	evaluator *cel.Evaluator
	logger    logger.Logger
}

func NewService(cfg config.FilteringConfig, log logger.Logger) (*Service, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	rules := make([]rule, 0, len(cfg.Rules))
	for i, r := range cfg.Rules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule_%d", i)
		}
		prog, err := evaluator.Compile(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("filtering rule %q: %w", name, err)
		}
		rules = append(rules, rule{name: name, program: prog})
	}

	fallback := cfg.Fallback.OnError
	if fallback == "" {
		fallback = constants.FallbackAllow
	}

	return &Service{
		relevance: NewRelevance(cfg.AllowedKeywords, cfg.BlockedKeywords),
		rules:     rules,
		fallback:  fallback,
		evaluator: evaluator,
		logger:    log,
	}, nil
}

// Filter returns the relevant subset of events, preserving order.
func (s *Service) Filter(ctx context.Context, events []models.UnifiedEvent) []models.UnifiedEvent {
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "filtering.filter")
	defer span.End()

	start := time.Now()
	relevant := make([]models.UnifiedEvent, 0, len(events))
	for _, ev := range events {
		if s.Accept(ctx, ev) {
			relevant = append(relevant, ev)
			metrics.FilteringEventsTotal.WithLabelValues(string(ev.Source), "relevant").Inc()
			continue
		}
		metrics.FilteringEventsTotal.WithLabelValues(string(ev.Source), "filtered").Inc()
		s.logger.DebugwCtx(ctx, "Event filtered out",
			"event_id", ev.ID,
			"type", ev.Type,
		)
	}
	metrics.ObserveFilteringDuration(time.Since(start))
	return relevant
}

func (s *Service) Accept(ctx context.Context, ev models.UnifiedEvent) bool {
	if !s.relevance.IsRelevant(ev) {
		return false
	}

	for _, r := range s.rules {
		passed, err := s.evaluator.EvaluateFilter(ctx, r.program, ev)
		if err != nil {
			if !s.handleEvaluationError(ctx, r, ev, err) {
				return false
			}
			continue
		}
		metrics.IncFilteringRuleEvaluation(r.name, passed)
		if !passed {
			return false
		}
	}
	return true
}

// handleEvaluationError reports whether the event should still pass.
func (s *Service) handleEvaluationError(ctx context.Context, r rule, ev models.UnifiedEvent, err error) bool {
	s.logger.WarnwCtx(ctx, "Rule evaluation error",
		"rule_name", r.name,
		"event_id", ev.ID,
		"error", err,
		"fallback", s.fallback,
	)

	if s.fallback == constants.FallbackDeny {
		metrics.FallbackUsageTotal.WithLabelValues("filtering", "deny_on_error", "evaluation_error").Inc()
		return false
	}
	metrics.FallbackUsageTotal.WithLabelValues("filtering", "allow_on_error", "evaluation_error").Inc()
	return true
}

func (s *Service) RuleCount() int {
	return len(s.rules)
}
