package security

import (
	"regexp"
	"strings"
)

// PIIDetector checks questions for requests about sensitive attributes
type PIIDetector struct {
	keywords []string
	patterns []*regexp.Regexp
}

func NewPIIDetector(keywords []string) *PIIDetector {
	d := &PIIDetector{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		// multi-word keywords tolerate any run of spaces, underscores or dashes
		parts := strings.Fields(k)
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		d.keywords = append(d.keywords, k)
		d.patterns = append(d.patterns, regexp.MustCompile(`(?i)\b`+strings.Join(parts, `[\s_-]+`)+`s?\b`))
	}
	return d
}

// Detect returns true and the matched keyword if PII is found in text
func (d *PIIDetector) Detect(text string) (bool, string) {
	for i, re := range d.patterns {
		if re.MatchString(text) {
			return true, d.keywords[i]
		}
	}
	return false, ""
}
