// Package session holds one player's in-progress traversal state over a
// loaded story. The state machine is Uninitialized -> Active; reaching an
// end node is a content-level fact, not a state change, and only Restart or
// a corrupted-state clear returns the session to Uninitialized.
package session

import (
	"sort"
	"time"

	"github.com/taleweave/engine/internal/navigator"
)

// State is the mutable play-through state. Not safe for concurrent use;
// choices within one session are applied strictly in caller order.
type State struct {
	currentNodeID string
	visited       map[string]struct{}
	choices       map[string]string
	startTime     time.Time
	// resumedAt marks the beginning of the current active stretch: the
	// initialize or restore instant, never the original start. playTime
	// accumulates completed stretches only.
	resumedAt time.Time
	playTime  float64
	variables map[string]interface{}
	inventory []string
	active    bool

	// NowFunc supplies timestamps; tests inject a fixed clock.
	NowFunc func() time.Time
}

// New returns an uninitialized session.
func New() *State {
	return &State{NowFunc: time.Now}
}

// Initialize starts a fresh play-through at the given start node. Any prior
// progress, history, and error state is discarded.
func (s *State) Initialize(startNodeID string) {
	s.currentNodeID = startNodeID
	s.visited = map[string]struct{}{startNodeID: {}}
	s.choices = make(map[string]string)
	s.startTime = s.NowFunc()
	s.resumedAt = s.startTime
	s.playTime = 0
	s.variables = make(map[string]interface{})
	s.inventory = nil
	s.active = true
}

// Active reports whether a play-through is in progress.
func (s *State) Active() bool {
	return s.active
}

// CurrentNodeID returns the player's current position, or "" before
// initialization.
func (s *State) CurrentNodeID() string {
	return s.currentNodeID
}

// MakeChoice records the departure from the current node and moves to the
// next one. A no-op on an uninitialized session: premature UI events must
// not corrupt state or panic.
func (s *State) MakeChoice(choiceID, nextNodeID string) {
	if !s.active {
		return
	}
	s.choices[s.currentNodeID] = choiceID
	s.currentNodeID = nextNodeID
	s.visited[nextNodeID] = struct{}{}
}

// SetCurrentNode synchronizes the session to a displayed node. When a
// play-through is active the node is also marked visited; before
// initialization this is a pure display update and touches nothing.
func (s *State) SetCurrentNode(nodeID string) {
	if !s.active {
		return
	}
	s.currentNodeID = nodeID
	s.visited[nodeID] = struct{}{}
}

// ChoiceAt returns the recorded choice made when departing nodeID.
func (s *State) ChoiceAt(nodeID string) (string, bool) {
	c, ok := s.choices[nodeID]
	return c, ok
}

// HasVisited reports whether the node was ever entered this play-through.
func (s *State) HasVisited(nodeID string) bool {
	_, ok := s.visited[nodeID]
	return ok
}

// VisitedCount returns the size of the visited set.
func (s *State) VisitedCount() int {
	return len(s.visited)
}

// SetVariable stores a free-form story variable.
func (s *State) SetVariable(key string, value interface{}) {
	if !s.active {
		return
	}
	s.variables[key] = value
}

// Variable reads a story variable.
func (s *State) Variable(key string) (interface{}, bool) {
	v, ok := s.variables[key]
	return v, ok
}

// AddItem appends an inventory item, preserving pickup order.
func (s *State) AddItem(item string) {
	if !s.active {
		return
	}
	s.inventory = append(s.inventory, item)
}

// Inventory returns the inventory in pickup order.
func (s *State) Inventory() []string {
	return append([]string(nil), s.inventory...)
}

// Restart resets the session to Uninitialized.
func (s *State) Restart() {
	*s = State{NowFunc: s.NowFunc}
}

// Valid reports whether this session is consistent with the given loaded
// story: the current node and every visited node must resolve. Callers must
// re-check after swapping stories and reinitialize on failure.
func (s *State) Valid(st *navigator.Story) bool {
	if !s.active || st == nil {
		return false
	}
	if st.Node(s.currentNodeID) == nil {
		return false
	}
	for id := range s.visited {
		if st.Node(id) == nil {
			return false
		}
	}
	return true
}

// Snapshot is the serialization contract for a session: the visited set
// becomes a sorted array and timestamps travel as RFC 3339 strings (the
// encoding time.Time uses).
type Snapshot struct {
	CurrentNodeID string                 `json:"currentNodeId"`
	VisitedNodes  []string               `json:"visitedNodes"`
	Choices       map[string]string      `json:"choices"`
	StartTime     time.Time              `json:"startTime"`
	PlayTime      float64                `json:"playTime"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	Inventory     []string               `json:"inventory,omitempty"`
}

// Snapshot captures the current state for persistence. Accumulated play
// time includes the stretch played since the session was initialized or
// restored; StartTime stays the original start of the play-through.
func (s *State) Snapshot() Snapshot {
	visited := make([]string, 0, len(s.visited))
	for id := range s.visited {
		visited = append(visited, id)
	}
	sort.Strings(visited)

	choices := make(map[string]string, len(s.choices))
	for k, v := range s.choices {
		choices[k] = v
	}

	playTime := s.playTime
	if s.active {
		playTime += s.NowFunc().Sub(s.resumedAt).Seconds()
	}

	return Snapshot{
		CurrentNodeID: s.currentNodeID,
		VisitedNodes:  visited,
		Choices:       choices,
		StartTime:     s.startTime,
		PlayTime:      playTime,
		Variables:     s.variables,
		Inventory:     append([]string(nil), s.inventory...),
	}
}

// FromSnapshot reconstructs an active session from a persisted snapshot:
// the inverse of Snapshot (array back to set). The active stretch restarts
// at the restore instant, so wall-clock time spent while the save sat in
// storage never counts as play time.
func FromSnapshot(snap Snapshot) *State {
	s := New()
	s.currentNodeID = snap.CurrentNodeID
	s.visited = make(map[string]struct{}, len(snap.VisitedNodes))
	for _, id := range snap.VisitedNodes {
		s.visited[id] = struct{}{}
	}
	if snap.CurrentNodeID != "" {
		s.visited[snap.CurrentNodeID] = struct{}{}
	}
	s.choices = make(map[string]string, len(snap.Choices))
	for k, v := range snap.Choices {
		s.choices[k] = v
	}
	s.startTime = snap.StartTime
	s.playTime = snap.PlayTime
	if snap.CurrentNodeID != "" {
		s.resumedAt = s.NowFunc()
	}
	s.variables = snap.Variables
	if s.variables == nil {
		s.variables = make(map[string]interface{})
	}
	s.inventory = append([]string(nil), snap.Inventory...)
	s.active = snap.CurrentNodeID != ""
	return s
}
