package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/taleweave/engine/internal/navigator"
	"github.com/taleweave/engine/internal/saves"
	"github.com/taleweave/engine/internal/session"
	"github.com/taleweave/engine/internal/story"
)

func testStory(t *testing.T) *navigator.Story {
	t.Helper()
	nodes := []story.Node{
		{
			ID: "start", Title: "Gate", Content: "You stand at the gate.",
			Choices: []story.Choice{
				{ID: "c1", Text: "Enter", NextNodeID: "hall"},
				{ID: "c2", Text: "Leave", NextNodeID: "end"},
			},
		},
		{
			ID: "hall", Title: "Hall", Content: "A long hall.",
			Choices: []story.Choice{
				{ID: "c3", Text: "Continue", NextNodeID: "end"},
			},
		},
		{
			ID: "end", Title: "Done", Content: "The end.",
			Choices: []story.Choice{
				{ID: "restart", Text: "Play again", NextNodeID: story.RestartSentinel},
			},
		},
	}
	st, err := navigator.Load(nodes)
	if err != nil {
		t.Fatalf("failed to load test story: %v", err)
	}
	return st
}

func testServer(t *testing.T) *Server {
	t.Helper()
	InitMetrics()
	mgr := saves.NewManager(saves.NewMemoryStore())
	return New(testStory(t), session.New(), mgr)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
}

func TestStoryNodeEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/story/node?id=hall", nil)
	w := httptest.NewRecorder()
	s.storyNodeHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if !resp.OK {
		t.Errorf("expected ok=true, got error %q", resp.Error)
	}

	// Unknown node
	req = httptest.NewRequest("GET", "/story/node?id=nope", nil)
	w = httptest.NewRecorder()
	s.storyNodeHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown node, got %d", w.Code)
	}

	// Missing id
	req = httptest.NewRequest("GET", "/story/node", nil)
	w = httptest.NewRecorder()
	s.storyNodeHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for missing id, got %d", w.Code)
	}
}

func TestStoryValidateEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/story/validate", nil)
	w := httptest.NewRecorder()
	s.storyValidateHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if !resp.OK {
		t.Errorf("expected ok=true, got error %q", resp.Error)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := testServer(t)

	// Choice before start is rejected.
	body := strings.NewReader(`{"choice_id":"c1"}`)
	req := httptest.NewRequest("POST", "/session/choice", body)
	w := httptest.NewRecorder()
	s.sessionChoiceHandler(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before session start, got %d", w.Code)
	}

	// Start.
	req = httptest.NewRequest("POST", "/session/start", nil)
	w = httptest.NewRecorder()
	s.sessionStartHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", w.Code)
	}
	if s.sess.CurrentNodeID() != "start" {
		t.Errorf("expected session at 'start', got %q", s.sess.CurrentNodeID())
	}

	// Follow a choice.
	body = strings.NewReader(`{"choice_id":"c1"}`)
	req = httptest.NewRequest("POST", "/session/choice", body)
	w = httptest.NewRecorder()
	s.sessionChoiceHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on choice, got %d", w.Code)
	}
	if s.sess.CurrentNodeID() != "hall" {
		t.Errorf("expected session at 'hall', got %q", s.sess.CurrentNodeID())
	}

	// Unknown choice at the current node.
	body = strings.NewReader(`{"choice_id":"c1"}`)
	req = httptest.NewRequest("POST", "/session/choice", body)
	w = httptest.NewRecorder()
	s.sessionChoiceHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for choice not on current node, got %d", w.Code)
	}

	// Session snapshot is served.
	req = httptest.NewRequest("GET", "/session", nil)
	w = httptest.NewRecorder()
	s.sessionHandler(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 on session fetch, got %d", w.Code)
	}
}

func TestRestartChoiceResetsSession(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("POST", "/session/start", nil)
	s.sessionStartHandler(httptest.NewRecorder(), req)

	// Walk to the ending.
	for _, id := range []string{"c1", "c3"} {
		body := strings.NewReader(`{"choice_id":"` + id + `"}`)
		req = httptest.NewRequest("POST", "/session/choice", body)
		w := httptest.NewRecorder()
		s.sessionChoiceHandler(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("choice %s: expected 200, got %d", id, w.Code)
		}
	}
	if s.sess.CurrentNodeID() != "end" {
		t.Fatalf("expected session at 'end', got %q", s.sess.CurrentNodeID())
	}

	// The restart choice sends the player back to the start, with history
	// wiped.
	body := strings.NewReader(`{"choice_id":"restart"}`)
	req = httptest.NewRequest("POST", "/session/choice", body)
	w := httptest.NewRecorder()
	s.sessionChoiceHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on restart choice, got %d", w.Code)
	}
	if s.sess.CurrentNodeID() != "start" {
		t.Errorf("expected session back at 'start', got %q", s.sess.CurrentNodeID())
	}
	if s.sess.VisitedCount() != 1 {
		t.Errorf("expected fresh history after restart, got %d visited", s.sess.VisitedCount())
	}
}

func TestRestartDropsPersistedSession(t *testing.T) {
	s := testServer(t)
	ctx := httptest.NewRequest("GET", "/", nil).Context()

	req := httptest.NewRequest("POST", "/session/start", nil)
	s.sessionStartHandler(httptest.NewRecorder(), req)
	if s.saves.RestoreSession(ctx) == nil {
		t.Fatal("starting a session must auto-persist it")
	}

	req = httptest.NewRequest("POST", "/session/restart", nil)
	w := httptest.NewRecorder()
	s.sessionRestartHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on restart, got %d", w.Code)
	}

	if snap := s.saves.RestoreSession(ctx); snap != nil {
		t.Errorf("restart must purge the persisted session, found node %q", snap.CurrentNodeID)
	}
}

func TestSaveAndLoadEndpoints(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("POST", "/session/start", nil)
	s.sessionStartHandler(httptest.NewRecorder(), req)

	body := strings.NewReader(`{"choice_id":"c1"}`)
	req = httptest.NewRequest("POST", "/session/choice", body)
	s.sessionChoiceHandler(httptest.NewRecorder(), req)

	// Save.
	body = strings.NewReader(`{"name":"before the hall"}`)
	req = httptest.NewRequest("POST", "/saves", body)
	w := httptest.NewRecorder()
	s.savesHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on save, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected save data object, got %T", resp.Data)
	}
	saveID, _ := data["save_id"].(string)
	if saveID == "" {
		t.Fatal("expected a save_id in response")
	}

	// Move on, then load back.
	body = strings.NewReader(`{"choice_id":"c3"}`)
	req = httptest.NewRequest("POST", "/session/choice", body)
	s.sessionChoiceHandler(httptest.NewRecorder(), req)
	if s.sess.CurrentNodeID() != "end" {
		t.Fatalf("expected session at 'end', got %q", s.sess.CurrentNodeID())
	}

	body = strings.NewReader(`{"save_id":"` + saveID + `"}`)
	req = httptest.NewRequest("POST", "/saves/load", body)
	w = httptest.NewRecorder()
	s.savesLoadHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on load, got %d", w.Code)
	}
	if s.sess.CurrentNodeID() != "hall" {
		t.Errorf("expected session restored to 'hall', got %q", s.sess.CurrentNodeID())
	}

	// Loading a missing save is a 404.
	body = strings.NewReader(`{"save_id":"save_0_deadbeef"}`)
	req = httptest.NewRequest("POST", "/saves/load", body)
	w = httptest.NewRecorder()
	s.savesLoadHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing save, got %d", w.Code)
	}
}

func TestSaveWithoutSession(t *testing.T) {
	s := testServer(t)

	body := strings.NewReader(`{"name":"nope"}`)
	req := httptest.NewRequest("POST", "/saves", body)
	w := httptest.NewRecorder()
	s.savesHandler(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 saving without a session, got %d", w.Code)
	}
}

func TestStaleSaveRejected(t *testing.T) {
	s := testServer(t)

	// A snapshot referencing a node the loaded story does not have.
	snap := session.Snapshot{
		CurrentNodeID: "ghost",
		VisitedNodes:  []string{"ghost"},
	}
	id, err := s.saves.Save(httptest.NewRequest("GET", "/", nil).Context(), "stale", snap)
	if err != nil {
		t.Fatalf("seeding stale save failed: %v", err)
	}

	body := strings.NewReader(`{"save_id":"` + id + `"}`)
	req := httptest.NewRequest("POST", "/saves/load", body)
	w := httptest.NewRecorder()
	s.savesLoadHandler(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for stale save, got %d", w.Code)
	}
}

func TestExportImportEndpoints(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("POST", "/session/start", nil)
	s.sessionStartHandler(httptest.NewRecorder(), req)

	body := strings.NewReader(`{"name":"one"}`)
	req = httptest.NewRequest("POST", "/saves", body)
	s.savesHandler(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/saves/export", nil)
	w := httptest.NewRecorder()
	s.savesExportHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on export, got %d", w.Code)
	}
	exported := w.Body.String()

	req = httptest.NewRequest("POST", "/saves/import", strings.NewReader(exported))
	w = httptest.NewRecorder()
	s.savesImportHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on import, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	data, _ := resp.Data.(map[string]interface{})
	if n, _ := data["imported"].(float64); n != 1 {
		t.Errorf("expected 1 record imported, got %v", data["imported"])
	}

	// Garbage payload is a client error.
	req = httptest.NewRequest("POST", "/saves/import", strings.NewReader("not json"))
	w = httptest.NewRecorder()
	s.savesImportHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed import, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)
	SetStoryName("test story")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	s.metricsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	out := w.Body.String()
	for _, metric := range []string{
		"taleweave_uptime_seconds",
		"taleweave_story_nodes",
		"taleweave_session_active",
		"taleweave_events_total",
	} {
		if !strings.Contains(out, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
	if !strings.Contains(out, `story="test story"`) {
		t.Error("metrics output missing story label")
	}
}

func TestRouteTable(t *testing.T) {
	s := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/story/stats")
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /story/stats, got %d", resp.StatusCode)
	}
}
