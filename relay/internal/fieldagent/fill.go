package fieldagent

// FillMode selects how a code gets written into the page.
type FillMode string

const (
	// FillNone means the field cannot take the code.
	FillNone FillMode = "none"
	// FillDirect sets the whole code as the field value.
	FillDirect FillMode = "direct"
	// FillDistribute writes one digit per sibling single-char input,
	// in index order.
	FillDistribute FillMode = "distribute"
)

// FillPlan is the computed strategy for one code/field pair. The injected
// script executes it verbatim.
type FillPlan struct {
	Mode FillMode `json:"mode"`
	// Digits are the per-sibling values for FillDistribute, already capped
	// to the sibling count.
	Digits []string `json:"digits,omitempty"`
}

// PlanFill decides how code lands in field f. A max length that fits the
// whole code (or no max length at all) means a direct set; a max length of
// one with single-char siblings means per-digit distribution; anything
// else is unfillable.
func PlanFill(f FieldInfo, code string) FillPlan {
	if code == "" {
		return FillPlan{Mode: FillNone}
	}
	if f.MaxLength <= 0 || f.MaxLength >= len(code) {
		return FillPlan{Mode: FillDirect}
	}
	if f.MaxLength == 1 && f.SiblingChars > 0 {
		n := len(code)
		if n > f.SiblingChars {
			n = f.SiblingChars
		}
		digits := make([]string, n)
		for i := 0; i < n; i++ {
			digits[i] = string(code[i])
		}
		return FillPlan{Mode: FillDistribute, Digits: digits}
	}
	return FillPlan{Mode: FillNone}
}
