// Package pattern implements the stateless extraction rules that decide
// whether a piece of message text carries a one-time passcode, and if so,
// which digits it is. Extraction requires two gates to both pass: a 2FA
// keyword must be present (gate A) and one of the ordered extraction
// patterns must match (gate B). A final exclusion pass suppresses common
// false positives (phone numbers, ZIP+4, currency, bare years) unless the
// text also carries a strong 2FA phrase.
//
// Every miss is an expected outcome, not an error: all failures return
// ("", false).
package pattern

import (
	"regexp"
	"strings"
)

// keywords is the gate A set. Matching is case-insensitive containment.
var keywords = []string{
	"verification",
	"verify",
	"code",
	"otp",
	"one-time",
	"security code",
	"confirm",
	"login",
	"sign in",
	"authenticate",
	"2fa",
	"two-factor",
	"mfa",
	"passcode",
}

// extractRule is one gate B pattern. Rules are evaluated in order and the
// first match wins, so each rule stays independently testable and
// reorderable.
type extractRule struct {
	name string
	re   *regexp.Regexp
	// group is the capture group index holding the digits.
	group int
}

var extractRules = []extractRule{
	// Keyword immediately followed by the digits: "code: 123456",
	// "passcode 4821", "OTP is 99120".
	{
		name:  "keyword-then-digits",
		re:    regexp.MustCompile(`(?i)(?:verification|verify|code|otp|one-time|passcode|pin)\s*(?:is|:)?\s*(\d{4,8})\b`),
		group: 1,
	},
	// Digits followed by "is your ...": "123456 is your verification code".
	{
		name:  "digits-is-your",
		re:    regexp.MustCompile(`(?i)\b(\d{4,8})\s+is\s+your\s+(?:code|verification|otp|pin)`),
		group: 1,
	},
	// Imperative: "enter 123456", "use 4821", "input 99120".
	{
		name:  "imperative-digits",
		re:    regexp.MustCompile(`(?i)\b(?:enter|use|input)\s+(\d{4,8})\b`),
		group: 1,
	},
	// Google style: "G-123456".
	{
		name:  "g-dash",
		re:    regexp.MustCompile(`\bG-(\d{6})\b`),
		group: 1,
	},
	// "your verification code is 123456" / "your code is 123456".
	{
		name:  "your-code-is",
		re:    regexp.MustCompile(`(?i)your\s+(?:verification\s+)?code\s+is\s*:?\s*(\d{4,8})\b`),
		group: 1,
	},
}

// excludeRules flag text shapes that produce digit runs which are not
// codes. A hit discards the candidate unless a strong phrase overrides it.
var excludeRules = []*regexp.Regexp{
	// Phone numbers: 555-123-4567, (555) 123-4567, +1 555 123 4567.
	regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}`),
	// ZIP+4: 94103-1234.
	regexp.MustCompile(`\b\d{5}-\d{4}\b`),
	// Currency: $1,234 / $4821.00.
	regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d{2})?`),
	// Bare years: "in 2024", "since 1999".
	regexp.MustCompile(`\b(?:in|since|year|copyright|©)\s+(?:19|20)\d{2}\b`),
}

// strongPhrases override the exclusion pass. The override is deliberate:
// a message can legitimately carry both a phone number and a code, and the
// strong phrase is the disambiguator.
var strongPhrases = []string{
	"verification code",
	"your code",
}

// Extract returns the one-time passcode found in text, or ("", false) when
// either gate fails, the digits fall outside length 4-8, or the exclusion
// pass fires without a strong-phrase override.
func Extract(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	lower := strings.ToLower(text)
	if !hasKeyword(lower) {
		return "", false
	}

	code := matchExtractRules(text)
	if code == "" {
		return "", false
	}
	if len(code) < 4 || len(code) > 8 {
		return "", false
	}

	if excluded(text) && !hasStrongPhrase(lower) {
		return "", false
	}

	return code, true
}

func hasKeyword(lower string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func matchExtractRules(text string) string {
	for _, rule := range extractRules {
		m := rule.re.FindStringSubmatch(text)
		if m != nil {
			return m[rule.group]
		}
	}
	return ""
}

func excluded(text string) bool {
	for _, re := range excludeRules {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func hasStrongPhrase(lower string) bool {
	for _, p := range strongPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
