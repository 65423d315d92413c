package service

import "regexp"

// Canonical payment statuses.
const (
	StatusFailed  = "failed"
	StatusSuccess = "success"
)

// countryCodeRe runs on normalized text, where codes are upper-case and the
// preposition "in" stays lower-case.
var countryCodeRe = regexp.MustCompile(`\b(IN|US|UK|DE|SG)\b`)

var (
	failedRe  = regexp.MustCompile(`(?i)\bfailed\b`)
	successRe = regexp.MustCompile(`(?i)\b(successful|success)\b`)
	days7Re   = regexp.MustCompile(`(?i)\b7\s*days\b`)
	days30Re  = regexp.MustCompile(`(?i)\b30\s*days\b`)
)

// ExtractCountry returns the first canonical country code in a normalized question.
// An IN or DE with another code after it is read as the preposition or article
// of upper-case input ("USERS IN THE US") and skipped.
func ExtractCountry(question string) (string, bool) {
	locs := countryCodeRe.FindAllStringIndex(question, -1)
	for i, loc := range locs {
		code := question[loc[0]:loc[1]]
		if (code == "IN" || code == "DE") && i+1 < len(locs) {
			continue
		}
		return code, true
	}
	return "", false
}

// ExtractPaymentStatus returns StatusFailed or StatusSuccess when the question names one.
func ExtractPaymentStatus(question string) (string, bool) {
	switch {
	case failedRe.MatchString(question):
		return StatusFailed, true
	case successRe.MatchString(question):
		return StatusSuccess, true
	}
	return "", false
}

// ExtractDayWindow returns 7 or 30 when the question names that window.
// 30 wins when both appear.
func ExtractDayWindow(question string) (int, bool) {
	switch {
	case days30Re.MatchString(question):
		return 30, true
	case days7Re.MatchString(question):
		return 7, true
	}
	return 0, false
}
