// Package sanitize strips identifying information from pitch transcripts
// before any model sees them: accelerator references, batch codes, known
// interviewer names, and heuristic founder/company self-identification.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	PlaceholderAccelerator = "[ACCELERATOR]"
	PlaceholderBatch       = "[BATCH]"
	PlaceholderInterviewer = "[INTERVIEWER]"
	PlaceholderFounder     = "[FOUNDER]"
	PlaceholderStartup     = "[STARTUP]"
)

type ruleKind string

const (
	kindLiteral   ruleKind = "literal-phrase"
	kindPattern   ruleKind = "pattern"
	kindHeuristic ruleKind = "self-reference-heuristic"
)

// rule is one independent rewrite. Rules run in declaration order, a single
// pass each; text produced by an earlier rule is not re-scanned by design, so
// every rule must be idempotent on its own output.
type rule struct {
	name    string
	kind    ruleKind
	re      *regexp.Regexp
	replace string
}

// Known partners whose names show up in interview recordings.
var partnerNames = []string{
	"Garry Tan",
	"Paul Graham",
	"Jessica Livingston",
	"Sam Altman",
	"Geoff Ralston",
	"Michael Seibel",
	"Dalton Caldwell",
	"Jared Friedman",
	"Kat Manalac",
	"Carolynn Levy",
}

var rules = buildRules()

func buildRules() []rule {
	out := []rule{
		{"accelerator-name", kindLiteral, regexp.MustCompile(`(?i)\bY\s*Combinator\b`), PlaceholderAccelerator},
		{"accelerator-abbrev", kindLiteral, regexp.MustCompile(`(?i)\bYC\b`), PlaceholderAccelerator},
		{"batch-code", kindPattern, regexp.MustCompile(`\b[WS]\d{2}\b`), PlaceholderBatch},
		{"batch-winter", kindPattern, regexp.MustCompile(`(?i)\bWinter\s+\d{4}\b`), PlaceholderBatch},
		{"batch-summer", kindPattern, regexp.MustCompile(`(?i)\bSummer\s+\d{4}\b`), PlaceholderBatch},
	}

	for _, name := range partnerNames {
		pattern := `(?i)` + strings.Join(strings.Fields(regexp.QuoteMeta(name)), `\s+`)
		out = append(out, rule{"partner-name", kindLiteral, regexp.MustCompile(pattern), PlaceholderInterviewer})
	}

	// Best effort only: these catch the literal phrasings founders actually
	// use on camera, not every possible self-introduction.
	out = append(out,
		rule{"founder-i-am", kindHeuristic,
			regexp.MustCompile(`(?i)\b(I|We|My co-founder|My partner)\s+am\s+([A-Z][a-z]+)\b`),
			`$1 am ` + PlaceholderFounder},
		rule{"founder-my-name-is", kindHeuristic,
			regexp.MustCompile(`(?i)\bMy\s+name\s+is\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`),
			`My name is ` + PlaceholderFounder},
		rule{"startup-our-company-is", kindHeuristic,
			regexp.MustCompile(`(?i)\b(Our|My|The)\s+(company|startup|company name|startup name)\s+(?:is\s+)?([A-Z][a-zA-Z0-9]+)\b`),
			`$1 $2 is ` + PlaceholderStartup},
		rule{"startup-x-is-our-company", kindHeuristic,
			regexp.MustCompile(`(?i)\b([A-Z][a-zA-Z0-9]+)\s+(is|was)\s+(our|my)\s+(company|startup)\b`),
			PlaceholderStartup + ` $2 $3 $4`},
	)

	return out
}

// Sanitize applies every redaction rule in order. Pure, total, deterministic
// and idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	out := text
	for _, r := range rules {
		out = r.re.ReplaceAllString(out, r.replace)
	}
	return out
}
