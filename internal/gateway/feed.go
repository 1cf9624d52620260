package gateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/bus"
)

// feedEvent is the wire shape of one bus event on the feed.
type feedEvent struct {
	ID      string         `json:"id"`
	Topic   string         `json:"topic"`
	Payload map[string]any `json:"payload"`
}

// eventFeed fans bus traffic out to connected websocket clients. A slow
// client drops events instead of blocking the bus.
type eventFeed struct {
	mu    sync.Mutex
	conns map[chan bus.Event]struct{}
}

func newEventFeed() *eventFeed {
	return &eventFeed{conns: make(map[chan bus.Event]struct{})}
}

// broadcast is the bus handler feeding all connections.
func (f *eventFeed) broadcast(_ context.Context, evt bus.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.conns {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (f *eventFeed) attach() chan bus.Event {
	ch := make(chan bus.Event, 32)
	f.mu.Lock()
	f.conns[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *eventFeed) detach(ch chan bus.Event) {
	f.mu.Lock()
	delete(f.conns, ch)
	f.mu.Unlock()
}

// handleEventFeed upgrades the connection and streams every bus event
// until the client goes away.
func (s *Server) handleEventFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("feed client connected")

	ch := s.feed.attach()
	defer func() {
		s.feed.detach(ch)
		conn.Close()
		s.log.Debug().Str("remote", r.RemoteAddr).Msg("feed client disconnected")
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain control frames; any read error means the client is gone.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case evt := <-ch:
			msg := feedEvent{ID: evt.ID, Topic: evt.Topic, Payload: evt.Payload}
			if err := conn.WriteJSON(msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Debug().Err(err).Msg("feed write failed")
				}
				return
			}
		}
	}
}
