package banktransfer

import (
	"regexp"
	"strings"
)

// Order-number extraction is a heuristic over free text, kept as an explicit
// ordered rule list so each rule stays auditable on its own. Fields are
// scanned in priority order (memo, then the provider code, then the
// reference code); within a field the matchers run in the order below and
// the first hit wins.
type matcher struct {
	name    string
	pattern *regexp.Regexp
}

var matchers = []matcher{
	// The checkout order-number format: ORD prefix followed by at least six
	// digits or letters, matched as a full token.
	{name: "order_prefix", pattern: regexp.MustCompile(`\bORD\w{6,}\b`)},
	// Legacy numbers issued before the ORD format.
	{name: "legacy_prefix", pattern: regexp.MustCompile(`\bDH\d{6,}\b`)},
	// Last resort: a bare run of six or more digits.
	{name: "digit_run", pattern: regexp.MustCompile(`\b\d{6,}\b`)},
}

// extractOrderNumber scans the given fields for an order-number candidate.
// Returns the candidate, the name of the rule that produced it, and whether
// anything matched at all.
func extractOrderNumber(fields ...string) (candidate, rule string, ok bool) {
	for _, field := range fields {
		if field == "" {
			continue
		}
		for _, m := range matchers {
			if match := m.pattern.FindString(field); match != "" {
				return match, m.name, true
			}
		}
	}
	return "", "", false
}

var nonDigits = regexp.MustCompile(`\D`)

// numberVariants returns lookup candidates in the order they should be
// tried: verbatim first, then normalized forms tolerating the hyphen drift
// between what a customer typed and what is stored.
func numberVariants(candidate string) []string {
	variants := []string{candidate}

	seen := map[string]bool{candidate: true}
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	add(strings.ReplaceAll(candidate, "-", ""))

	// Hyphen after the alphabetic prefix: ORD123456 -> ORD-123456.
	if i := strings.IndexFunc(candidate, func(r rune) bool { return r >= '0' && r <= '9' }); i > 0 && !strings.Contains(candidate, "-") {
		add(candidate[:i] + "-" + candidate[i:])
	}

	return variants
}

// digitsOnly strips everything but digits, for the final digits-only
// comparison against stored numbers.
func digitsOnly(candidate string) string {
	return nonDigits.ReplaceAllString(candidate, "")
}
