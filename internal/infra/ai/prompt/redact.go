package prompt

import (
	"regexp"
	"unicode"
)

// detectors strip identifiers from free text before it leaves for a third-party API.
var detectors = []struct {
	re          *regexp.Regexp
	replacement string
}{
	// Email addresses
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[email removed]"},
	// URLs with embedded credentials
	{regexp.MustCompile(`://[^\s/:@]+:[^\s/@]+@`), "://[credentials removed]@"},
}

// digitRun matches phone, card and id-like sequences; only runs carrying at
// least minDigits digits are replaced, so dates and measurements survive.
var digitRun = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)

const minDigits = 9

// RedactText replaces contact details and identifiers with placeholders.
func RedactText(s string) string {
	for _, d := range detectors {
		s = d.re.ReplaceAllString(s, d.replacement)
	}
	return digitRun.ReplaceAllStringFunc(s, func(m string) string {
		n := 0
		for _, r := range m {
			if unicode.IsDigit(r) {
				n++
			}
		}
		if n < minDigits {
			return m
		}
		return "[number removed]"
	})
}
