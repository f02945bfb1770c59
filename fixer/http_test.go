package fixer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/hazyhaar/statusfixer/patcher"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHTTP_Health(t *testing.T) {
	f, _ := newTestFixer(t)
	attachHTML(t, f, "A-1", "Fixed")

	rec := do(t, f.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Sessions != 1 {
		t.Errorf("health: got %+v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestHTTP_SessionsAndRescan(t *testing.T) {
	f, _ := newTestFixer(t)
	attachHTML(t, f, "A-1", "Fixed")
	h := f.Handler()

	rec := do(t, h, http.MethodGet, "/sessions", "")
	var list []SessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	want := []SessionInfo{{
		ID:          "A-1",
		URL:         "https://acme.atlassian.net/browse/A-1",
		Runs:        1,
		LastTrigger: "load",
		LastResult:  patcher.Result{SlotCreated: true, Moved: true, Badge: patcher.BadgeShown, Text: "Fixed"},
		BadgeText:   "Fixed",
	}}
	if diff := cmp.Diff(want, list, cmpopts.IgnoreFields(SessionInfo{}, "LastRescan")); diff != "" {
		t.Errorf("sessions (-want +got):\n%s", diff)
	}

	rec = do(t, h, http.MethodPost, "/sessions/A-1/rescan", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rescan: got %d %s", rec.Code, rec.Body)
	}
	var info SessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Runs != 2 || info.LastTrigger != "manual" {
		t.Errorf("rescan: got runs %d trigger %q", info.Runs, info.LastTrigger)
	}

	rec = do(t, h, http.MethodGet, "/sessions/A-1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET session: got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/sessions/nope/rescan", ""); rec.Code != http.StatusNotFound {
		t.Errorf("rescan unknown session: got %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/sessions/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET unknown session: got %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/sessions/A-1/rescan", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET rescan: got %d, want 405", rec.Code)
	}
}

func TestHTTP_Check(t *testing.T) {
	f, _ := newTestFixer(t)
	rec := do(t, f.Handler(), http.MethodPost, "/check", fmt.Sprintf(issuePage, "Duplicate"))
	if rec.Code != http.StatusOK {
		t.Fatalf("check: got %d %s", rec.Code, rec.Body)
	}
	var body captureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Result.Text != "Duplicate" || !strings.Contains(body.HTML, "status-fixer-slot") {
		t.Errorf("check: got %+v", body.Result)
	}
}

func TestHTTP_Options(t *testing.T) {
	f, _ := newTestFixer(t)
	attachHTML(t, f, "A-1", "Fixed")

	rec := do(t, f.Handler(), http.MethodGet, "/options", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("options: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q", ct)
	}
	out := rec.Body.String()
	for _, want := range []string{"A-1", "atlassian.net", "jira.com", "100ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("options page missing %q", want)
		}
	}
}

func TestHTTP_RescanClosedSession(t *testing.T) {
	f, _ := newTestFixer(t)
	attachHTML(t, f, "A-1", "Fixed")
	f.detachAll()

	rec := do(t, f.Handler(), http.MethodPost, "/sessions/A-1/rescan", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
}
