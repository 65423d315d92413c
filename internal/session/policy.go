package session

import (
	"strings"

	"github.com/cortexai/askql/internal/service"
)

// Clarification prompts asked before any SQL is produced.
const (
	PromptTimeRange   = "Which time range should I use? (last 7 days / last 30 days / custom)"
	PromptCountry     = "Did you mean United States (US)?"
	PromptListOrCount = "Do you want the list or just the count?"
)

// Rule inspects a normalized question and returns a prompt when it is ambiguous.
type Rule struct {
	Name  string
	Check func(question string, s service.IntentSignals) (string, bool)
}

// Rules are evaluated in order; the first match wins.
var Rules = []Rule{
	{Name: "time_range", Check: TimeRangeRule},
	{Name: "ambiguous_country", Check: CountryRule},
	{Name: "list_or_count", Check: ListOrCountRule},
}

// NeedsClarification runs Rules against the question.
func NeedsClarification(question string, s service.IntentSignals) (string, bool) {
	for _, r := range Rules {
		if prompt, ok := r.Check(question, s); ok {
			return prompt, true
		}
	}
	return "", false
}

// TimeRangeRule asks for a window on time-series subjects.
func TimeRangeRule(question string, s service.IntentSignals) (string, bool) {
	if (service.MentionsPayments(question) || service.MentionsEvents(question)) && !s.HasTimeRange {
		return PromptTimeRange, true
	}
	return "", false
}

// CountryRule asks which country "America" means.
func CountryRule(question string, _ service.IntentSignals) (string, bool) {
	if strings.Contains(strings.ToLower(question), "america") {
		return PromptCountry, true
	}
	return "", false
}

var (
	policyListMarkers  = []string{" list", "show list", "just the list"}
	policyCountMarkers = []string{"count", "how many", "total", "just the count"}
)

// ListOrCountRule asks whether a filtered question wants rows or a count.
func ListOrCountRule(question string, s service.IntentSignals) (string, bool) {
	if !s.IsFilter || s.IsAggregate {
		return "", false
	}
	lower := strings.ToLower(question)
	if containsAny(lower, policyListMarkers) || containsAny(lower, policyCountMarkers) {
		return "", false
	}
	return PromptListOrCount, true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
