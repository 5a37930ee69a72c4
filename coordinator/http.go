package coordinator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veilbit/otprelay/codes"
)

// Router returns the status/debug HTTP API. Read endpoints mirror the
// message interface; POST /codes exists for manual submission during
// development and ops. Bind it to localhost.
func (c *Coordinator) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", c.handleStatus)
	r.Get("/codes", c.handleListCodes)
	r.Post("/codes", c.handleSubmitCode)

	return r
}

func (c *Coordinator) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := c.Stats(r.Context())
	if err != nil {
		httpError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, map[string]any{
		"buffer_size":    st.BufferSize,
		"pending_tabs":   st.PendingTabs,
		"uptime_seconds": int64(c.opts.Now().Sub(st.StartedAt).Seconds()),
	})
}

func (c *Coordinator) handleListCodes(w http.ResponseWriter, r *http.Request) {
	all, err := c.ListAll(r.Context())
	if err != nil {
		httpError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, codes.Reply{Codes: all})
}

type submitPayload struct {
	Code      string    `json:"code"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

func (c *Coordinator) handleSubmitCode(w http.ResponseWriter, r *http.Request) {
	var p submitPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if p.Code == "" {
		http.Error(w, `{"error":"code is required"}`, http.StatusBadRequest)
		return
	}
	if err := c.SubmitCode(r.Context(), p.Code, p.Source, "", p.Timestamp); err != nil {
		httpError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, codes.Reply{Success: true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("coordinator: http encode failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
