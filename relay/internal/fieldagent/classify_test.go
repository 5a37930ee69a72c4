package fieldagent

import "testing"

func TestClassifyLadder(t *testing.T) {
	cases := []struct {
		name     string
		field    FieldInfo
		wantRule string
		wantOK   bool
	}{
		{
			name:     "autocomplete hint",
			field:    FieldInfo{Tag: "input", Type: "text", Autocomplete: "one-time-code"},
			wantRule: "autocomplete",
			wantOK:   true,
		},
		{
			name:     "name keyword",
			field:    FieldInfo{Tag: "input", Type: "text", Name: "otp-input"},
			wantRule: "attr-keyword",
			wantOK:   true,
		},
		{
			name:     "id keyword",
			field:    FieldInfo{Tag: "input", Type: "text", ID: "verification_code"},
			wantRule: "attr-keyword",
			wantOK:   true,
		},
		{
			name:     "placeholder keyword",
			field:    FieldInfo{Tag: "input", Type: "text", Placeholder: "Enter code"},
			wantRule: "attr-keyword",
			wantOK:   true,
		},
		{
			name:     "aria label keyword",
			field:    FieldInfo{Tag: "input", Type: "text", AriaLabel: "One-time passcode"},
			wantRule: "attr-keyword",
			wantOK:   true,
		},
		{
			name:     "class pattern",
			field:    FieldInfo{Tag: "input", Type: "text", Class: "form-control otp-digit"},
			wantRule: "class-pattern",
			wantOK:   true,
		},
		{
			name:     "shape maxlength plus numeric mode",
			field:    FieldInfo{Tag: "input", Type: "text", InputMode: "numeric", MaxLength: 6},
			wantRule: "shape",
			wantOK:   true,
		},
		{
			name:     "shape tel type",
			field:    FieldInfo{Tag: "input", Type: "tel", MaxLength: 4},
			wantRule: "shape",
			wantOK:   true,
		},
		{
			name:     "container context",
			field:    FieldInfo{Tag: "input", Type: "text", ContainerText: "Enter the verification code sent to your phone"},
			wantRule: "context",
			wantOK:   true,
		},
		{
			name:   "shape without numeric orientation",
			field:  FieldInfo{Tag: "input", Type: "text", MaxLength: 6},
			wantOK: false,
		},
		{
			name:   "shape maxlength out of range",
			field:  FieldInfo{Tag: "input", Type: "tel", MaxLength: 12},
			wantOK: false,
		},
		{
			name:   "context with wrong input type",
			field:  FieldInfo{Tag: "input", Type: "email", ContainerText: "verification code"},
			wantOK: false,
		},
		{
			name:   "pin does not fire inside shipping",
			field:  FieldInfo{Tag: "input", Type: "text", Name: "shipping-address"},
			wantOK: false,
		},
		{
			name:   "plain search box",
			field:  FieldInfo{Tag: "input", Type: "text", Name: "q", Placeholder: "Search"},
			wantOK: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule, ok := Classify(tc.field)
			if ok != tc.wantOK {
				t.Fatalf("Classify ok = %v, want %v (rule %q)", ok, tc.wantOK, rule)
			}
			if ok && rule != tc.wantRule {
				t.Errorf("rule = %q, want %q", rule, tc.wantRule)
			}
		})
	}
}

func TestClassifyShortCircuits(t *testing.T) {
	base := FieldInfo{Tag: "input", Type: "text", Autocomplete: "one-time-code"}

	hidden := base
	hidden.Hidden = true
	disabled := base
	disabled.Disabled = true
	readOnly := base
	readOnly.ReadOnly = true
	filled := base
	filled.ValueLen = 4
	submit := base
	submit.Type = "submit"

	for _, tc := range []struct {
		name  string
		field FieldInfo
	}{
		{"hidden", hidden},
		{"disabled", disabled},
		{"read-only", readOnly},
		{"already filled", filled},
		{"submit type", submit},
	} {
		if _, ok := Classify(tc.field); ok {
			t.Errorf("%s field classified despite short-circuit", tc.name)
		}
	}

	// Sanity: the base field itself classifies.
	if _, ok := Classify(base); !ok {
		t.Fatal("eligible base field not classified")
	}
}

func TestClassifyFirstRuleWins(t *testing.T) {
	f := FieldInfo{
		Tag:          "input",
		Type:         "tel",
		Autocomplete: "one-time-code",
		Name:         "otp",
		MaxLength:    6,
	}
	rule, ok := Classify(f)
	if !ok || rule != "autocomplete" {
		t.Fatalf("rule = %q ok = %v, want autocomplete (ladder order)", rule, ok)
	}
}
