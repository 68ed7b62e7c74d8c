// Package api exposes the engine over HTTP: story queries, play-session
// control, save management, metrics, and a live event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/taleweave/engine/internal/events"
	"github.com/taleweave/engine/internal/navigator"
	"github.com/taleweave/engine/internal/saves"
	"github.com/taleweave/engine/internal/session"
	"github.com/taleweave/engine/internal/story"
)

// Server wires one loaded story, one play session, and a save manager into
// an HTTP surface. Each server owns its own navigator instance; nothing is
// shared process-wide.
type Server struct {
	mu    sync.Mutex
	story *navigator.Story
	sess  *session.State
	saves *saves.Manager
}

// New creates a server for the given story.
func New(st *navigator.Story, sess *session.State, mgr *saves.Manager) *Server {
	return &Server{story: st, sess: sess, saves: mgr}
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiResponse{OK: false, Error: msg})
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "engine",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, events.Snapshot())
}

func (s *Server) storyStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: s.story.Stats()})
}

func (s *Server) storyValidateHandler(w http.ResponseWriter, r *http.Request) {
	res := s.story.Validate()
	events.Emit("info", "story.validated", "", map[string]interface{}{
		"is_valid": res.IsValid,
		"errors":   len(res.Errors),
		"warnings": len(res.Warnings),
	})
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: res})
}

func (s *Server) storyNodeHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	node := s.story.Node(id)
	if node == nil {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: node})
}

// nodeView is what the player sees: the node plus session context.
type nodeView struct {
	Node    *story.Node `json:"node"`
	Visited bool        `json:"visited"`
	Ending  bool        `json:"ending"`
}

func (s *Server) sessionStartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	startID := s.story.StartNodeID()
	s.sess.Initialize(startID)
	s.persistSession(r.Context())

	events.Emit("info", "session.started", "", map[string]interface{}{
		"node_id": startID,
	})

	node := s.story.Node(startID)
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: nodeView{Node: node, Visited: true, Ending: node.IsEnding()}})
}

type choiceRequest struct {
	ChoiceID string `json:"choice_id"`
}

func (s *Server) sessionChoiceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ChoiceID == "" {
		writeError(w, http.StatusBadRequest, "choice_id required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sess.Active() {
		writeError(w, http.StatusConflict, "no active session")
		return
	}

	current := s.story.Node(s.sess.CurrentNodeID())
	if current == nil {
		writeError(w, http.StatusConflict, "session out of sync with story")
		return
	}

	var chosen *story.Choice
	for i := range current.Choices {
		if current.Choices[i].ID == req.ChoiceID {
			chosen = &current.Choices[i]
			break
		}
	}
	if chosen == nil {
		writeError(w, http.StatusNotFound, "choice not found")
		return
	}

	// Restart is a session-reset signal, not a graph transition.
	if chosen.IsRestart() {
		startID := s.story.StartNodeID()
		s.sess.Initialize(startID)
		s.persistSession(r.Context())
		events.Emit("info", "session.restarted", "", map[string]interface{}{
			"node_id": startID,
		})
		node := s.story.Node(startID)
		writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: nodeView{Node: node, Visited: true, Ending: node.IsEnding()}})
		return
	}

	next := s.story.NextNode(current.ID, req.ChoiceID)
	if next == nil {
		writeError(w, http.StatusConflict, "choice target missing from story")
		return
	}

	s.sess.MakeChoice(req.ChoiceID, next.ID)
	s.persistSession(r.Context())

	events.Emit("info", "session.choice", "", map[string]interface{}{
		"from":      current.ID,
		"choice_id": req.ChoiceID,
		"to":        next.ID,
	})
	if next.IsEnding() {
		events.Emit("info", "session.ended", "", map[string]interface{}{
			"node_id": next.ID,
		})
	}

	writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: nodeView{Node: next, Visited: true, Ending: next.IsEnding()}})
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sess.Active() {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: s.sess.Snapshot()})
}

func (s *Server) sessionRestartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sess.Restart()
	// Drop the auto-save too, or a process restart would resurrect the
	// abandoned play-through.
	s.saves.DropSession(r.Context())
	events.Emit("info", "session.restarted", "", nil)
	writeJSON(w, http.StatusOK, apiResponse{OK: true})
}

func (s *Server) sessionClearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Guaranteed recovery path: never fails, whatever the storage health.
	s.saves.ClearSession(r.Context(), s.sess)
	writeJSON(w, http.StatusOK, apiResponse{OK: true})
}

type saveRequest struct {
	Name string `json:"name"`
}

func (s *Server) savesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: s.saves.List(r.Context())})

	case http.MethodPost:
		var req saveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.sess.Active() {
			writeError(w, http.StatusConflict, "no active session to save")
			return
		}
		id, err := s.saves.Save(r.Context(), req.Name, s.sess.Snapshot())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: map[string]string{"save_id": id}})

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "id required")
			return
		}
		if err := s.saves.Delete(r.Context(), id); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{OK: true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type loadRequest struct {
	SaveID string `json:"save_id"`
}

func (s *Server) savesLoadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec := s.saves.Load(r.Context(), req.SaveID)
	if rec == nil {
		writeError(w, http.StatusNotFound, "save not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := session.FromSnapshot(rec.GameState)
	if !restored.Valid(s.story) {
		// A save from another story (or a renamed node) cannot be resumed;
		// the caller decides whether to reinitialize.
		writeError(w, http.StatusConflict, "save is not valid against the loaded story")
		return
	}

	*s.sess = *restored
	s.persistSession(r.Context())
	events.Emit("info", "save.loaded", "", map[string]interface{}{
		"save_id": rec.ID,
	})
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: rec})
}

func (s *Server) savesStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: s.saves.Stats(r.Context())})
}

func (s *Server) savesExportHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.saves.ExportAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	events.Emit("info", "save.exported", "", nil)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="taleweave-saves.json"`)
	fmt.Fprint(w, out)
}

func (s *Server) savesImportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	count, err := s.saves.ImportAll(r.Context(), string(body))
	if err != nil {
		switch err.(type) {
		case *saves.InvalidFormatError:
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{OK: true, Data: map[string]int{"imported": count}})
}

// persistSession auto-saves the current session; failures are telemetry,
// not player-facing errors. Callers hold s.mu.
func (s *Server) persistSession(ctx context.Context) {
	if err := s.saves.PersistSession(ctx, s.sess.Snapshot()); err != nil {
		events.Emit("warn", "system.error", "session auto-save failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/events", eventsHandler)
	mux.HandleFunc("/ws/events", wsEventsHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/story/stats", s.storyStatsHandler)
	mux.HandleFunc("/story/validate", s.storyValidateHandler)
	mux.HandleFunc("/story/node", s.storyNodeHandler)
	mux.HandleFunc("/session", s.sessionHandler)
	mux.HandleFunc("/session/start", s.sessionStartHandler)
	mux.HandleFunc("/session/choice", s.sessionChoiceHandler)
	mux.HandleFunc("/session/restart", s.sessionRestartHandler)
	mux.HandleFunc("/session/clear", s.sessionClearHandler)
	mux.HandleFunc("/saves", s.savesHandler)
	mux.HandleFunc("/saves/load", s.savesLoadHandler)
	mux.HandleFunc("/saves/stats", s.savesStatsHandler)
	mux.HandleFunc("/saves/export", s.savesExportHandler)
	mux.HandleFunc("/saves/import", s.savesImportHandler)
	return mux
}

// ListenAndServe starts the API server on the given port, with TLS when
// configured via environment. It blocks until the server exits.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	if tlsCfg := LoadTLSConfig(); tlsCfg != nil {
		srv.TLSConfig = tlsCfg
		log.Printf("API listening on %s (TLS)\n", addr)
		return srv.ListenAndServeTLS("", "")
	}

	log.Printf("API listening on %s\n", addr)
	return srv.ListenAndServe()
}
