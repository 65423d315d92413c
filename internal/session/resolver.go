package session

import (
	"regexp"
	"strings"
)

// followUpReplies are short answers appended verbatim to the pending question.
var followUpReplies = map[string]bool{
	"list":           true,
	"show list":      true,
	"just the list":  true,
	"count":          true,
	"just the count": true,
	"total":          true,
	"last 7 days":    true,
	"last 30 days":   true,
}

var (
	timeReplyRe      = regexp.MustCompile(`\b(days?|weeks?|months?|last|past)\b`)
	aggregateReplyRe = regexp.MustCompile(`\b(count|how many|total|sum)\b`)
	listReplyRe      = regexp.MustCompile(`\b(list|show)\b`)
	leadingShowRe    = regexp.MustCompile(`(?i)^show\s+`)
)

// Resolve merges a reply into the pending question it answers. With no
// pending clarification the reply is returned unchanged. A reply that matches
// nothing replaces the pending question.
func Resolve(p Pending, hasPending bool, reply string) string {
	reply = strings.TrimSpace(reply)
	if !hasPending {
		return reply
	}

	base := strings.TrimSpace(p.Question)
	lower := strings.ToLower(reply)
	if followUpReplies[lower] {
		return base + " " + reply
	}

	subject := leadingShowRe.ReplaceAllString(base, "")
	switch {
	case timeReplyRe.MatchString(lower):
		return base + " " + reply
	case aggregateReplyRe.MatchString(lower):
		return "How many " + subject
	case listReplyRe.MatchString(lower):
		return "Show " + subject
	default:
		return reply
	}
}
