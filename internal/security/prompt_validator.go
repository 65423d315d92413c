package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxQuestionLength bounds an inbound question in characters.
const DefaultMaxQuestionLength = 2000

type questionPattern struct {
	name string
	re   *regexp.Regexp
}

// questionPatterns flag questions that try to steer the generator away from
// writing a single read-only query.
var questionPatterns = []questionPattern{
	// prompt injection
	{"instruction override", regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\s+(all\s+)?(the\s+)?(previous|prior|above)\s+(instructions|rules)`)},
	{"context switch", regexp.MustCompile(`(?i)\b(new|change)\s+context\s*:`)},
	{"role switch", regexp.MustCompile(`(?i)\byou\s+are\s+now\b`)},
	{"system prompt probe", regexp.MustCompile(`(?i)\b(reveal|print|show)\s+(me\s+)?(your|the)\s+(system\s+)?prompt\b`)},

	// raw statements smuggled in the question
	{"embedded statement", regexp.MustCompile(`(?i);\s*(drop|delete|insert|update|alter|truncate|create)\b`)},
	{"sql comment", regexp.MustCompile(`--\s*$|/\*`)},

	// shell and file access
	{"shell command", regexp.MustCompile(`(?i)\b(rm\s+-|sudo\s+|curl\s+|wget\s+|bash\s+-)`)},
	{"path traversal", regexp.MustCompile(`\.\./|/etc/(passwd|shadow)|\.ssh/|id_rsa`)},
	{"code execution", regexp.MustCompile(`(?i)\b(eval|exec|system|popen|__import__)\s*\(`)},
}

// PromptValidator screens inbound questions before they reach the pipeline.
type PromptValidator struct {
	maxLength int
}

func NewPromptValidator(maxLength int) *PromptValidator {
	if maxLength <= 0 {
		maxLength = DefaultMaxQuestionLength
	}
	return &PromptValidator{maxLength: maxLength}
}

// ValidationResult contains the screening outcome
type ValidationResult struct {
	Valid   bool
	Message string
}

// Validate checks a question for length and injection patterns. Short replies
// like "count" are valid on their own since they answer a clarification.
func (v *PromptValidator) Validate(question string) ValidationResult {
	if strings.TrimSpace(question) == "" {
		return ValidationResult{Valid: false, Message: "question cannot be empty"}
	}

	if n := utf8.RuneCountInString(question); n > v.maxLength {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("question too long: %d chars (max %d)", n, v.maxLength),
		}
	}

	for _, p := range questionPatterns {
		if p.re.MatchString(question) {
			return ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("question rejected: %s detected", p.name),
			}
		}
	}

	return ValidationResult{Valid: true, Message: "ok"}
}
