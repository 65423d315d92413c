package service

import (
	"regexp"
	"strings"
)

// countrySynonyms maps lowercase human spellings to canonical country codes.
var countrySynonyms = map[string]string{
	"india":          "IN",
	"united states":  "US",
	"usa":            "US",
	"us":             "US",
	"united kingdom": "UK",
	"uk":             "UK",
	"germany":        "DE",
	"singapore":      "SG",
	"sg":             "SG",
}

// countryRe matches synonyms case-insensitively. IN and DE are only kept when
// already upper-case, since "in" and "de" are ordinary words.
var countryRe = regexp.MustCompile(
	`\b(?:(?i:united\s+states|united\s+kingdom|india|usa|us|uk|germany|singapore|sg)|IN|DE)\b`,
)

var spaceRe = regexp.MustCompile(`\s+`)

// Normalize lowercases a question and rewrites country names to canonical codes.
// Normalize(Normalize(q)) == Normalize(q).
// Lowercasing can turn a non-ASCII letter into an ASCII one (U+212A to k)
// and drop a word boundary, so passes repeat until the output is stable.
func Normalize(question string) string {
	out := normalizePass(question)
	for range maxNormalizePasses {
		next := normalizePass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

const maxNormalizePasses = 4

func normalizePass(question string) string {
	var b strings.Builder
	last := 0
	for _, loc := range countryRe.FindAllStringIndex(question, -1) {
		b.WriteString(strings.ToLower(question[last:loc[0]]))
		b.WriteString(canonicalCountry(question[loc[0]:loc[1]]))
		last = loc[1]
	}
	b.WriteString(strings.ToLower(question[last:]))
	return strings.TrimSpace(b.String())
}

func canonicalCountry(match string) string {
	if match == "IN" || match == "DE" {
		return match
	}
	key := spaceRe.ReplaceAllString(strings.ToLower(match), " ")
	if code, ok := countrySynonyms[key]; ok {
		return code
	}
	return strings.ToLower(match)
}
