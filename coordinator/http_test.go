package coordinator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veilbit/otprelay/codes"
)

func TestHTTP_SubmitThenList(t *testing.T) {
	c, _ := startCoordinator(t, Options{})
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/codes", "application/json",
		strings.NewReader(`{"code":"482135","source":"Google"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /codes = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/codes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var reply codes.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if len(reply.Codes) != 1 || reply.Codes[0].Code != "482135" || reply.Codes[0].Source != "Google" {
		t.Fatalf("GET /codes = %+v", reply)
	}
}

func TestHTTP_SubmitRejectsEmptyCode(t *testing.T) {
	c, _ := startCoordinator(t, Options{})
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/codes", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("POST /codes = %d, want 400", resp.StatusCode)
	}
}

func TestHTTP_Status(t *testing.T) {
	c, _ := startCoordinator(t, Options{})
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var st map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if _, ok := st["buffer_size"]; !ok {
		t.Fatalf("status = %v, missing buffer_size", st)
	}
}
