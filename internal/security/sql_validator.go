package security

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cortexai/askql/internal/schema"
)

// Verdict is the result of validating a candidate query. It is exactly one of
// Success, Blocked or ClarificationNeeded.
type Verdict interface {
	verdict()
}

// Success carries the query to execute, possibly rewritten, plus any warnings.
type Success struct {
	SQL      string
	Warnings []string
}

// Blocked means the query must not run.
type Blocked struct {
	Reason string
}

// ClarificationNeeded means the query is acceptable only once the user answers Prompt.
type ClarificationNeeded struct {
	Prompt string
}

func (Success) verdict()             {}
func (Blocked) verdict()             {}
func (ClarificationNeeded) verdict() {}

// TimeRangePrompt is asked when a time-series table is queried without a window.
const TimeRangePrompt = "Which time range do you want? (last 7 days / last 30 days / custom)"

// forbiddenKeywords are checked in order; the first whole-word hit is reported.
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "truncate", "create",
	"attach", "detach", "pragma", "intersect", "union", "except",
	"grant", "revoke", "copy", "install", "load", "vacuum",
	"call", "exec", "execute", "merge", "into",
}

var forbiddenPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(forbiddenKeywords))
	for i, kw := range forbiddenKeywords {
		out[i] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return out
}()

var (
	// functions whose arguments contain a FROM keyword that is not a table reference
	fromFuncRe = regexp.MustCompile(`(?i)\b(extract|substring|trim|overlay|position)\s*\([^()]*\)`)

	tableRefRe  = regexp.MustCompile(`(?i)\b(from|join)\s+`)
	clauseEndRe = regexp.MustCompile(`(?i)\b(where|group|order|limit|having|join|inner|left|right|full|cross|natural|on|using|window|qualify)\b|[();]`)
	cteNameRe   = regexp.MustCompile(`(?i)(?:\bwith|,)\s*(\w+)\s+as\s*\(`)

	wildcardPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bselect\s+(distinct\s+)?\*`),
		regexp.MustCompile(`,\s*\*`),
		regexp.MustCompile(`\b\w+\.\*`),
	}

	whereRe       = regexp.MustCompile(`(?i)\bwhere\b`)
	whereEndRe    = regexp.MustCompile(`(?i)\b(group\s+by|order\s+by|limit|having|window|qualify)\b`)
	timeColumnRe  = regexp.MustCompile(`(?i)\b` + schema.TimeColumn + `\b`)
	trailingLimit = regexp.MustCompile(`(?i)\blimit\s+(\d+|all)(\s+offset\s+\d+)?\s*$`)
	trailingFetch = regexp.MustCompile(`(?i)\bfetch\s+(?:first|next)\s+(?:(\d+)\s+)?rows?\s+only\s*$`)
)

// SQLValidator is the guardrail every query passes before execution.
// It is pattern based and keeps no state.
type SQLValidator struct {
	rowCap int
}

func NewSQLValidator() *SQLValidator {
	return &SQLValidator{rowCap: schema.RowCap}
}

// Validate applies the guardrail rules in order and returns the first terminal verdict.
func (v *SQLValidator) Validate(sql string) Verdict {
	scan, scanErr := scanSQL(sql)
	trimmed := strings.TrimSpace(scan.text)
	if trimmed == "" {
		return Blocked{Reason: "Query is empty."}
	}

	for i, re := range forbiddenPatterns {
		if re.MatchString(trimmed) {
			return Blocked{Reason: fmt.Sprintf("Query contains forbidden keyword: %s.", forbiddenKeywords[i])}
		}
	}

	switch {
	case errors.Is(scanErr, errUnterminatedQuote):
		return Blocked{Reason: "Query contains an unterminated quoted string."}
	case errors.Is(scanErr, errBackslashEscape):
		return Blocked{Reason: "Backslash escapes in quoted strings are not supported."}
	}

	if scan.stacked() {
		return Blocked{Reason: "Multiple SQL statements are not allowed."}
	}
	body := strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))

	refs := scanTables(body)
	for _, t := range refs.all() {
		if !refs.ctes[strings.ToLower(t)] && (strings.Contains(t, ".") || !schema.IsAllowed(t)) {
			return Blocked{Reason: fmt.Sprintf("Query references tables outside the allowed schema: %s.", t)}
		}
	}
	if refs.selfJoin() {
		return Blocked{Reason: "Self-joins are not allowed for analytics queries."}
	}

	for _, re := range wildcardPatterns {
		if re.MatchString(body) {
			return Blocked{Reason: "SELECT * is not allowed; specify explicit columns."}
		}
	}

	if refs.touchesTimeSeries() && !hasTimePredicate(body) {
		return ClarificationNeeded{Prompt: TimeRangePrompt}
	}

	return v.enforceLimit(body)
}

func (v *SQLValidator) enforceLimit(body string) Success {
	if m := trailingFetch.FindStringSubmatchIndex(body); m != nil {
		// FETCH FIRST ROW ONLY has no count and returns one row
		if m[2] < 0 {
			return Success{SQL: body, Warnings: []string{}}
		}
		return v.clamp(body, m[2], m[3], "FETCH FIRST %s ROWS")
	}
	if m := trailingLimit.FindStringSubmatchIndex(body); m != nil {
		return v.clamp(body, m[2], m[3], "LIMIT %s")
	}
	return Success{
		SQL:      fmt.Sprintf("%s LIMIT %d", body, v.rowCap),
		Warnings: []string{fmt.Sprintf("LIMIT %d was automatically applied for safety", v.rowCap)},
	}
}

// clamp rewrites the row count at body[start:end] down to the cap. A
// non-numeric count (LIMIT ALL) is always replaced.
func (v *SQLValidator) clamp(body string, start, end int, clause string) Success {
	raw := body[start:end]
	n, err := strconv.Atoi(raw)
	if err == nil && n <= v.rowCap {
		return Success{SQL: body, Warnings: []string{}}
	}
	return Success{
		SQL: body[:start] + strconv.Itoa(v.rowCap) + body[end:],
		Warnings: []string{fmt.Sprintf(clause+" exceeds the row cap and was reduced to %d",
			strings.ToUpper(raw), v.rowCap)},
	}
}

var (
	errUnterminatedQuote = errors.New("unterminated quoted string")
	errBackslashEscape   = errors.New("backslash escape in quoted string")
)

// sqlScan is the query with comments replaced by a space. Quoted text is
// copied verbatim, so comment markers and semicolons inside literals survive.
type sqlScan struct {
	text       string
	semicolons []int // offsets in text of semicolons outside quotes
}

// stacked reports more than one statement terminator, or one followed by
// more text.
func (s sqlScan) stacked() bool {
	switch len(s.semicolons) {
	case 0:
		return false
	case 1:
		return strings.TrimSpace(s.text[s.semicolons[0]+1:]) != ""
	default:
		return true
	}
}

// scanSQL walks the query once, tracking '...', "..." and `...` quoting with
// doubled-quote escapes. Dialects disagree on backslash escapes, which would
// move where a literal ends, so a backslash inside quotes is an error. On
// error the returned text is the raw input.
func scanSQL(sql string) (sqlScan, error) {
	var b strings.Builder
	var semis []int
	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end, err := quotedEnd(sql, i)
			if err != nil {
				return sqlScan{text: sql}, err
			}
			b.WriteString(sql[i:end])
			i = end
		case strings.HasPrefix(sql[i:], "--"):
			if nl := strings.IndexByte(sql[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(sql)
			}
			b.WriteByte(' ')
		case strings.HasPrefix(sql[i:], "/*"):
			if end := strings.Index(sql[i+2:], "*/"); end >= 0 {
				i += end + 4
			} else {
				i = len(sql)
			}
			b.WriteByte(' ')
		default:
			if c == ';' {
				semis = append(semis, b.Len())
			}
			b.WriteByte(c)
			i++
		}
	}
	return sqlScan{text: b.String(), semicolons: semis}, nil
}

// quotedEnd returns the offset just past the quoted run opening at sql[start].
func quotedEnd(sql string, start int) (int, error) {
	q := sql[start]
	for i := start + 1; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			return 0, errBackslashEscape
		case q:
			if i+1 < len(sql) && sql[i+1] == q {
				i++
				continue
			}
			return i + 1, nil
		}
	}
	return 0, errUnterminatedQuote
}

type tableRefs struct {
	from  [][]string // one slice per FROM clause
	joins []string
	ctes  map[string]bool
}

func (r tableRefs) all() []string {
	var out []string
	for _, clause := range r.from {
		out = append(out, clause...)
	}
	return append(out, r.joins...)
}

func (r tableRefs) selfJoin() bool {
	fromSet := map[string]bool{}
	for _, clause := range r.from {
		seen := map[string]bool{}
		for _, t := range clause {
			t = strings.ToLower(t)
			if seen[t] {
				return true
			}
			seen[t] = true
			fromSet[t] = true
		}
	}
	for _, j := range r.joins {
		if fromSet[strings.ToLower(j)] {
			return true
		}
	}
	return false
}

func (r tableRefs) touchesTimeSeries() bool {
	for _, t := range r.all() {
		if tbl, ok := schema.Lookup(t); ok && tbl.TimeSeries {
			return true
		}
	}
	return false
}

// scanTables collects the first identifier of every item after FROM or JOIN.
// Subqueries are skipped here; their own FROM is picked up by the scan.
func scanTables(sql string) tableRefs {
	cleaned := fromFuncRe.ReplaceAllString(sql, "")
	refs := tableRefs{ctes: map[string]bool{}}
	for _, m := range cteNameRe.FindAllStringSubmatch(cleaned, -1) {
		refs.ctes[strings.ToLower(m[1])] = true
	}

	for _, loc := range tableRefRe.FindAllStringSubmatchIndex(cleaned, -1) {
		keyword := strings.ToLower(cleaned[loc[2]:loc[3]])
		rest := cleaned[loc[1]:]
		if end := clauseEndRe.FindStringIndex(rest); end != nil {
			if end[0] == 0 {
				continue
			}
			rest = rest[:end[0]]
		}

		var names []string
		for _, item := range strings.Split(rest, ",") {
			fields := strings.Fields(item)
			if len(fields) == 0 {
				continue
			}
			names = append(names, strings.Trim(fields[0], "\"`"))
		}
		if keyword == "join" {
			refs.joins = append(refs.joins, names...)
		} else if len(names) > 0 {
			refs.from = append(refs.from, names)
		}
	}
	return refs
}

func hasTimePredicate(sql string) bool {
	for _, loc := range whereRe.FindAllStringIndex(sql, -1) {
		clause := sql[loc[1]:]
		if end := whereEndRe.FindStringIndex(clause); end != nil {
			clause = clause[:end[0]]
		}
		if timeColumnRe.MatchString(clause) {
			return true
		}
	}
	return false
}

// VerdictKind names a verdict for logs, metrics and API responses.
func VerdictKind(v Verdict) string {
	switch v.(type) {
	case Success:
		return "success"
	case Blocked:
		return "blocked"
	case ClarificationNeeded:
		return "clarification_needed"
	default:
		return "unknown"
	}
}
