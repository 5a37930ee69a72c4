package fieldagent

import "regexp"

// FieldInfo describes one input element as collected by the injected
// script. Index addresses the element on the page via a data attribute
// stamped during collection.
type FieldInfo struct {
	Index         int    `json:"index"`
	Tag           string `json:"tag"`
	Type          string `json:"type"`
	InputMode     string `json:"inputMode"`
	Autocomplete  string `json:"autocomplete"`
	Name          string `json:"name"`
	ID            string `json:"id"`
	Placeholder   string `json:"placeholder"`
	AriaLabel     string `json:"ariaLabel"`
	Class         string `json:"class"`
	MaxLength     int    `json:"maxLength"`
	ValueLen      int    `json:"valueLen"`
	Hidden        bool   `json:"hidden"`
	Disabled      bool   `json:"disabled"`
	ReadOnly      bool   `json:"readOnly"`
	Focused       bool   `json:"focused"`
	ContainerText string `json:"containerText"`
	// SiblingChars counts maxlength=1 inputs sharing the nearest container,
	// for per-digit distribution.
	SiblingChars int `json:"siblingChars"`
}

// fieldRule is one classification heuristic. Rules are evaluated in fixed
// order, first match wins, so each is independently testable.
type fieldRule struct {
	name  string
	match func(FieldInfo) bool
}

// otpAttrRe matches OTP-ish tokens in attribute values. Short tokens are
// bounded so "pin" does not fire inside "shipping".
var otpAttrRe = regexp.MustCompile(`(?i)(one[-_ ]?time|two[-_ ]?factor|verif|passcode|auth[-_ ]?code|security[-_ ]?code|\botp\b|\b2fa\b|\bmfa\b|\bpin\b|\bcode\b|\btoken\b)`)

// otpContextRe matches 2FA phrasing in surrounding container text.
var otpContextRe = regexp.MustCompile(`(?i)(verification code|security code|authentication code|one[-_ ]?time (code|password|pin)|two[-_ ]?factor|2fa code|sent to your (phone|email|number|device)|enter the code)`)

var classifyLadder = []fieldRule{
	{"autocomplete", func(f FieldInfo) bool {
		return f.Autocomplete == "one-time-code"
	}},
	{"attr-keyword", func(f FieldInfo) bool {
		return otpAttrRe.MatchString(f.Name) ||
			otpAttrRe.MatchString(f.ID) ||
			otpAttrRe.MatchString(f.Placeholder) ||
			otpAttrRe.MatchString(f.AriaLabel)
	}},
	{"class-pattern", func(f FieldInfo) bool {
		return otpAttrRe.MatchString(f.Class)
	}},
	{"shape", func(f FieldInfo) bool {
		if f.MaxLength < 4 || f.MaxLength > 8 {
			return false
		}
		return numericOriented(f)
	}},
	{"context", func(f FieldInfo) bool {
		if !otpContextRe.MatchString(f.ContainerText) {
			return false
		}
		switch f.Type {
		case "", "text", "tel", "number":
			return true
		}
		return f.InputMode == "numeric"
	}},
}

// Classify runs the ladder over one field and reports the name of the
// first matching rule. Ineligible inputs (hidden, disabled, read-only, or
// already holding 4+ characters) short-circuit to no match regardless of
// how OTP-shaped they look.
func Classify(f FieldInfo) (string, bool) {
	if f.Tag != "" && f.Tag != "input" {
		return "", false
	}
	if f.Hidden || f.Disabled || f.ReadOnly || f.ValueLen >= 4 {
		return "", false
	}
	switch f.Type {
	case "hidden", "submit", "button", "checkbox", "radio", "file", "range", "color":
		return "", false
	}
	for _, rule := range classifyLadder {
		if rule.match(f) {
			return rule.name, true
		}
	}
	return "", false
}

func numericOriented(f FieldInfo) bool {
	switch f.Type {
	case "number", "tel":
		return true
	}
	switch f.InputMode {
	case "numeric", "tel":
		return true
	}
	return false
}
