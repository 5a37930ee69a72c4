package fieldagent

import (
	"fmt"
	"time"

	"github.com/veilbit/otprelay/codes"
)

// panelLimit caps how many codes the floating panel shows.
const panelLimit = 5

// panelEntry is one row of the floating panel, JSON-shaped for the
// injected renderer.
type panelEntry struct {
	Code   string `json:"code"`
	Source string `json:"source,omitempty"`
	Age    string `json:"age,omitempty"`
	IsNew  bool   `json:"isNew"`
}

// panelPayload is the full render call argument.
type panelPayload struct {
	Index int          `json:"index"`
	Codes []panelEntry `json:"codes"`
}

// panelModel converts buffer records (already newest-first) into panel
// rows, capped at panelLimit.
func panelModel(records []codes.Record, now time.Time) []panelEntry {
	n := len(records)
	if n > panelLimit {
		n = panelLimit
	}
	out := make([]panelEntry, 0, n)
	for _, r := range records[:n] {
		out = append(out, panelEntry{
			Code:   r.Code,
			Source: r.Source,
			Age:    formatAge(now.Sub(r.Timestamp)),
			IsNew:  r.IsNew,
		})
	}
	return out
}

// formatAge renders a coarse age label. Sub-minute ages show seconds,
// everything else whole minutes.
func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm ago", int(d.Minutes()))
}
