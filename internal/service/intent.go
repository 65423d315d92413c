package service

import (
	"fmt"
	"regexp"
	"strings"
)

// IntentSignals are the rule-based signals derived from a normalized question.
type IntentSignals struct {
	IsFilter     bool `json:"is_filter"`
	IsGroupBy    bool `json:"is_group_by"`
	IsAggregate  bool `json:"is_aggregate"`
	HasTimeRange bool `json:"has_time_range"`
}

type intentRule struct {
	name  string
	re    *regexp.Regexp
	apply func(*IntentSignals)
}

// intentRules are evaluated independently; order only matters for Names.
var intentRules = []intentRule{
	{"is_filter", regexp.MustCompile(`\b(from|in|where)\b`), func(s *IntentSignals) { s.IsFilter = true }},
	{"is_group_by", regexp.MustCompile(`\b(by|per|grouped by)\b`), func(s *IntentSignals) { s.IsGroupBy = true }},
	{"is_aggregate", regexp.MustCompile(`\b(count|how many|total|sum)\b`), func(s *IntentSignals) { s.IsAggregate = true }},
	{"has_time_range", regexp.MustCompile(`\b(last|past|\d+\s*days|\d+\s*weeks|\d+\s*months)\b`), func(s *IntentSignals) { s.HasTimeRange = true }},
}

// ClassifyIntent evaluates every intent rule against the lowercased question.
func ClassifyIntent(question string) IntentSignals {
	lower := strings.ToLower(question)
	var s IntentSignals
	for _, r := range intentRules {
		if r.re.MatchString(lower) {
			r.apply(&s)
		}
	}
	return s
}

var (
	countMarkers = []string{"count", "how many", "total"}
	listMarkers  = []string{" list", "show ", "details"}
)

// ApplyOverrides returns a copy of s with the aggregate signal forced by
// explicit count or list wording. Count wording wins.
func ApplyOverrides(question string, s IntentSignals) IntentSignals {
	lower := strings.ToLower(question)
	switch {
	case containsAny(lower, countMarkers):
		s.IsAggregate = true
	case containsAny(lower, listMarkers):
		s.IsAggregate = false
	}
	return s
}

// Hint renders the signals for the generator prompt.
func (s IntentSignals) Hint() string {
	return fmt.Sprintf("Intent hints: filter=%t, group_by=%t, aggregate=%t, has_time_range=%t",
		s.IsFilter, s.IsGroupBy, s.IsAggregate, s.HasTimeRange)
}

var (
	paymentRe = regexp.MustCompile(`\bpayments?\b`)
	eventRe   = regexp.MustCompile(`\bevents?\b`)
	userRe    = regexp.MustCompile(`\busers?\b`)
	ticketRe  = regexp.MustCompile(`\btickets?\b`)
	joinRe    = regexp.MustCompile(`\bjoin(s|ed)?\b`)
)

// MentionsPayments reports whether the question is about payments.
func MentionsPayments(question string) bool { return paymentRe.MatchString(strings.ToLower(question)) }

// MentionsEvents reports whether the question is about events.
func MentionsEvents(question string) bool { return eventRe.MatchString(strings.ToLower(question)) }

// MentionsUsers reports whether the question is about users.
func MentionsUsers(question string) bool { return userRe.MatchString(strings.ToLower(question)) }

// MentionsTickets reports whether the question is about tickets.
func MentionsTickets(question string) bool { return ticketRe.MatchString(strings.ToLower(question)) }

// MentionsJoin reports whether the question asks for a join explicitly.
func MentionsJoin(question string) bool { return joinRe.MatchString(strings.ToLower(question)) }

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
