package infer

import (
	"regexp"
	"strings"
)

// sourceRule infers a sender label from message text. A rule returns
// ("", false) when it does not apply.
type sourceRule func(text string) (string, bool)

// sourceLadder is the resolution precedence: credit-union name shapes,
// the known-service table, then generic organization-name patterns.
var sourceLadder = []sourceRule{
	fromCreditUnion,
	fromKnownService,
	fromOrgPattern,
}

// Source infers a sender label from message text. The second return is
// false when no rule applies.
func Source(text string) (string, bool) {
	for _, rule := range sourceLadder {
		if name, ok := rule(text); ok {
			return name, true
		}
	}
	return "", false
}

// creditUnionRe matches credit-union style names: "SF Fire CU",
// "Navy FCU", "Golden 1 Credit Union".
var creditUnionRe = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]*(?:\s+[A-Z0-9][A-Za-z0-9]*){0,3}\s+(?:F?CU|Credit Union))\b`)

func fromCreditUnion(text string) (string, bool) {
	m := creditUnionRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func fromKnownService(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, svc := range knownServices {
		if strings.Contains(lower, svc) {
			return titleCase(svc), true
		}
	}
	return "", false
}

// orgPatterns are generic organization-name shapes, tried in order:
// an all-caps token, a "Name:" prefix, a bracketed name, "from Name".
var orgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b([A-Z]{3,12})\b`),
	regexp.MustCompile(`^([A-Z][A-Za-z0-9 &.-]{1,30}?):`),
	regexp.MustCompile(`[\[(]([A-Za-z][A-Za-z0-9 &.-]{1,30})[\])]`),
	regexp.MustCompile(`(?i)\bfrom\s+([A-Z][A-Za-z0-9&.-]*(?:\s+[A-Z][A-Za-z0-9&.-]*){0,2})`),
}

// orgStopwords reject matches that are message vocabulary rather than a
// sender name.
var orgStopwords = map[string]bool{
	"otp": true, "sms": true, "code": true, "your": true, "the": true,
	"this": true, "pin": true, "mfa": true, "use": true, "new": true,
	"urgent": true, "alert": true, "verification": true, "verify": true,
	"msg": true, "info": true, "stop": true, "help": true, "free": true,
	"call": true, "text": true, "reply": true, "now": true, "asap": true,
}

func fromOrgPattern(text string) (string, bool) {
	for _, re := range orgPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			if allStopwords(name) {
				continue
			}
			return name, true
		}
	}
	return "", false
}

// allStopwords reports whether every token of name is a stopword, meaning
// the match carries no identifying information.
func allStopwords(name string) bool {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		if !orgStopwords[strings.ToLower(strings.Trim(f, ".:&-"))] {
			return false
		}
	}
	return true
}

// titleCase uppercases the first letter of each word. Known-service table
// entries are stored lowercase and title-cased on output.
func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}
