package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/echotype/echotype/pkg/commands"
	"github.com/echotype/echotype/pkg/database"
	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/phrases"
	"github.com/echotype/echotype/pkg/session"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func testAPI(t *testing.T) *API {
	t.Helper()
	log := testLogger()
	store, err := phrases.NewStore(nil, log)
	if err != nil {
		t.Fatal(err)
	}
	return NewAPI(session.NewManager(), store, log)
}

type fakeRecorder struct {
	armed     bool
	code      commands.Code
	cancelled bool
}

func (f *fakeRecorder) StartRecording(code commands.Code) {
	f.armed = true
	f.code = code
}

func (f *fakeRecorder) CancelRecording() {
	f.armed = false
	f.cancelled = true
}

func (f *fakeRecorder) Recording() (commands.Code, bool) {
	return f.code, f.armed
}

type fakeHistoryReader struct {
	entries []database.HistoryEntry
}

func (f *fakeHistoryReader) GetRecentPaginated(page, perPage int) ([]database.HistoryEntry, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

func TestAPI_Status(t *testing.T) {
	api := testAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()

	api.HandleStatus(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["service"] != "echotype" {
		t.Errorf("service = %v", result["service"])
	}
	sess, ok := result["session"].(map[string]interface{})
	if !ok {
		t.Fatalf("session field missing: %v", result)
	}
	if sess["state"] != "disconnected" {
		t.Errorf("state = %v, want disconnected with no active connection", sess["state"])
	}
}

func TestAPI_PhrasesList(t *testing.T) {
	api := testAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/phrases", nil)
	w := httptest.NewRecorder()

	api.HandlePhrases(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var infos []phrases.Info
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(infos) != len(phrases.DefaultPhrases) {
		t.Errorf("got %d phrase infos, want %d", len(infos), len(phrases.DefaultPhrases))
	}
}

func TestAPI_PhrasesSetAndRevert(t *testing.T) {
	api := testAPI(t)

	body := bytes.NewBufferString(`{"command": "ENTER", "phrase": "smash it"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/phrases", body)
	w := httptest.NewRecorder()
	api.HandlePhrases(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("set returned %d", w.Result().StatusCode)
	}
	if got := api.phrases.Lookup(commands.Enter); got != "smash it" {
		t.Errorf("Lookup after set = %q", got)
	}

	body = bytes.NewBufferString(`{"command": "ENTER"}`)
	req = httptest.NewRequest(http.MethodDelete, "/api/phrases", body)
	w = httptest.NewRecorder()
	api.HandlePhrases(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("revert returned %d", w.Result().StatusCode)
	}
	if got := api.phrases.Lookup(commands.Enter); got != "enter" {
		t.Errorf("Lookup after revert = %q", got)
	}
}

func TestAPI_PhrasesUnknownCommand(t *testing.T) {
	api := testAPI(t)

	body := bytes.NewBufferString(`{"command": "BOGUS", "phrase": "whatever"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/phrases", body)
	w := httptest.NewRecorder()
	api.HandlePhrases(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestAPI_PairApproveWithoutPending(t *testing.T) {
	api := testAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/pair/approve", nil)
	w := httptest.NewRecorder()
	api.HandlePairApprove(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Result().StatusCode)
	}
}

func TestAPI_PairRejectWithoutPending(t *testing.T) {
	api := testAPI(t)

	body := bytes.NewBufferString(`{"reason": "not now"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/pair/reject", body)
	w := httptest.NewRecorder()
	api.HandlePairReject(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Result().StatusCode)
	}
}

func TestAPI_Record(t *testing.T) {
	api := testAPI(t)
	rec := &fakeRecorder{}
	api.WithRecorder(rec)

	body := bytes.NewBufferString(`{"command": "COPY"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/record", body)
	w := httptest.NewRecorder()
	api.HandleRecord(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("record returned %d", w.Result().StatusCode)
	}
	if !rec.armed || rec.code != commands.Copy {
		t.Errorf("recorder = %+v", rec)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/record", nil)
	w = httptest.NewRecorder()
	api.HandleRecord(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("cancel returned %d", w.Result().StatusCode)
	}
	if !rec.cancelled {
		t.Error("CancelRecording was not called")
	}
}

func TestAPI_RecordUnavailable(t *testing.T) {
	api := testAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/record", nil)
	w := httptest.NewRecorder()
	api.HandleRecord(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Result().StatusCode)
	}
}

func TestAPI_History(t *testing.T) {
	api := testAPI(t)
	api.WithHistory(&fakeHistoryReader{entries: []database.HistoryEntry{
		{Kind: database.EntryText, Content: "hello"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/history?page=1&per_page=10", nil)
	w := httptest.NewRecorder()
	api.HandleHistory(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["total"].(float64) != 1 {
		t.Errorf("total = %v", result["total"])
	}
}

func TestAPI_HistoryDisabled(t *testing.T) {
	api := testAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	api.HandleHistory(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Result().StatusCode)
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	api := testAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	w := httptest.NewRecorder()

	api.HandleStatus(w, req)

	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Result().StatusCode)
	}
}
