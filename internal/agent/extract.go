package agent

import (
	"regexp"
	"strings"
)

var (
	fenceRe = regexp.MustCompile("(?i)```[a-z]*")
	// a statement starts at SELECT or at a CTE
	statementStartRe = regexp.MustCompile(`(?i)\bwith\s+\w+\s+as\s*\(|\bselect\b`)
)

// ExtractStatement isolates the first statement in model output: from the
// first SELECT or WITH up to the first semicolon outside quoted text. Without
// a terminator it falls back to the first non-empty line.
func ExtractStatement(raw string) string {
	text := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	if loc := statementStartRe.FindStringIndex(text); loc != nil {
		if end := terminator(text[loc[0]:]); end >= 0 {
			return strings.TrimSpace(text[loc[0] : loc[0]+end+1])
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// terminator returns the offset of the first semicolon outside quotes, or -1.
func terminator(sql string) int {
	var quote byte
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == ';':
			return i
		}
	}
	return -1
}
