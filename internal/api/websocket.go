package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taleweave/engine/internal/events"
)

const (
	// Buffered events replayed to a freshly attached client
	replayCount = 50

	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second

	// Must stay under pongTimeout
	pingInterval = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Stories carry no credentials, so cross-origin dashboards may attach.
	CheckOrigin: func(*http.Request) bool { return true },
}

// eventStream is one attached WebSocket consumer of the live event feed.
type eventStream struct {
	conn *websocket.Conn
	sub  events.Subscriber
}

func (es *eventStream) send(e events.Event) error {
	es.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return es.conn.WriteJSON(e)
}

func (es *eventStream) ping() error {
	es.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return es.conn.WriteMessage(websocket.PingMessage, nil)
}

// watchReads drains inbound frames so pongs and close frames get processed.
// The returned channel closes once the peer is gone.
func (es *eventStream) watchReads() <-chan struct{} {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		es.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		es.conn.SetPongHandler(func(string) error {
			return es.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		for {
			if _, _, err := es.conn.NextReader(); err != nil {
				return
			}
		}
	}()
	return gone
}

// wsEventsHandler streams engine events over a WebSocket: the newest
// buffered events are replayed on attach, then every new emission follows.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	es := &eventStream{conn: conn, sub: events.Subscribe()}

	for _, e := range events.RecentEvents(replayCount) {
		if err := es.send(e); err != nil {
			events.Unsubscribe(es.sub)
			return
		}
	}

	gone := es.watchReads()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			events.Unsubscribe(es.sub)
			return

		case e, ok := <-es.sub:
			if !ok {
				// Unsubscribed from elsewhere; the feed is over.
				return
			}
			if err := es.send(e); err != nil {
				events.Unsubscribe(es.sub)
				return
			}

		case <-ticker.C:
			if err := es.ping(); err != nil {
				events.Unsubscribe(es.sub)
				return
			}
		}
	}
}
