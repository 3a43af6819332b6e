package filtering

import (
	"strings"

	"safetyrelay/pkg/models"
)

var (
	DefaultAllowedKeywords = []string{
		"speeding",
		"severe_speeding",
		"harsh_brake",
		"harsh_braking",
		"failure_to_yield",
		"ran_red_light",
		"red_light",
		"rolling_stop",
	}

	// Following-distance alerts are too noisy to be worth a message.
	DefaultBlockedKeywords = []string{
		"following_distance",
		"tailgating",
	}
)

// Relevance is the keyword gate deciding which events are worth delivering.
// It is a pure function of the event's type and label text.
type Relevance struct {
	allowed []keyword
	blocked []keyword
}

type keyword struct {
	literal string
	compact string
}

func NewRelevance(allowed, blocked []string) *Relevance {
	if len(allowed) == 0 {
		allowed = DefaultAllowedKeywords
	}
	if blocked == nil {
		blocked = DefaultBlockedKeywords
	}
	return &Relevance{
		allowed: toKeywords(allowed),
		blocked: toKeywords(blocked),
	}
}

func toKeywords(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	for _, w := range words {
		lit := strings.ToLower(strings.TrimSpace(w))
		if lit == "" {
			continue
		}
		out = append(out, keyword{literal: lit, compact: Compact(lit)})
	}
	return out
}

// Compact lower-cases s and strips whitespace, underscores and hyphens so
// "Harsh Brake", "harsh_brake" and "harshbrake" compare equal.
func Compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '\r', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (r *Relevance) IsRelevant(ev models.UnifiedEvent) bool {
	if ev.Source == models.SourceSpeedingInterval && ev.Type == models.TypeSevereSpeeding {
		return true
	}

	texts := []string{strings.ToLower(ev.Type)}
	if ev.IsSafety() && ev.RawLabel != "" {
		texts = append(texts, strings.ToLower(ev.RawLabel))
	}

	if r.matchesAny(texts, r.blocked) {
		return false
	}
	return r.matchesAny(texts, r.allowed)
}

func (r *Relevance) matchesAny(texts []string, keywords []keyword) bool {
	for _, text := range texts {
		compact := Compact(text)
		for _, kw := range keywords {
			if strings.Contains(text, kw.literal) || strings.Contains(compact, kw.compact) {
				return true
			}
		}
	}
	return false
}
