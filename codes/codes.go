// Package codes defines the structured types exchanged between the tab
// agents and the coordinator. These are the public API contract: every
// consumer (message monitor, field agents, HTTP/MCP surfaces) imports this
// package to build and process relay messages.
package codes

import "time"

// MaxAge is the wall-clock TTL of a buffered code. Entries older than this
// are purged lazily before every read or write.
const MaxAge = 15 * time.Minute

// MaxBuffer is the recency bound of the code buffer. When exceeded the
// oldest entries are dropped first.
const MaxBuffer = 10

// Record is a single detected one-time passcode. Unique by Code inside the
// coordinator buffer; re-detection refreshes metadata and recency instead
// of duplicating.
type Record struct {
	Code      string    `json:"code"`             // digit string, length 4-8
	Source    string    `json:"source,omitempty"` // sender label, may be empty
	Timestamp time.Time `json:"timestamp"`        // message-derived, not detection-time
	IsNew     bool      `json:"is_new"`
}

// Expired reports whether the record is past MaxAge relative to now.
func (r Record) Expired(now time.Time) bool {
	return now.Sub(r.Timestamp) > MaxAge
}

// MsgType discriminates request envelopes on the coordinator channel.
type MsgType string

const (
	MsgNewCode     MsgType = "NEW_CODE"
	MsgRequestCode MsgType = "REQUEST_CODE"
	MsgGetAllCodes MsgType = "GET_ALL_CODES"
	MsgCodeFilled  MsgType = "CODE_FILLED"

	// MsgCodeAvailable is push-only, coordinator to tab.
	MsgCodeAvailable MsgType = "CODE_AVAILABLE"
)

// Envelope is a request from a tab agent to the coordinator.
type Envelope struct {
	Type        MsgType   `json:"type"`
	TabID       string    `json:"tab_id,omitempty"`
	Code        string    `json:"code,omitempty"`
	Source      string    `json:"source,omitempty"`
	MessageText string    `json:"message_text,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
}

// Reply is the coordinator's response to an Envelope.
//
// NEW_CODE and CODE_FILLED set Success. REQUEST_CODE either carries the
// newest record or Waiting=true with a nil Record. GET_ALL_CODES carries
// the full buffer copy in recency order.
type Reply struct {
	Success bool     `json:"success,omitempty"`
	Waiting bool     `json:"waiting,omitempty"`
	Record  *Record  `json:"record,omitempty"`
	Codes   []Record `json:"codes,omitempty"`
}

// Push is a coordinator-to-tab notification that a new code arrived for a
// tab that was waiting on REQUEST_CODE.
type Push struct {
	Type      MsgType   `json:"type"` // always MsgCodeAvailable
	Code      string    `json:"code"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
