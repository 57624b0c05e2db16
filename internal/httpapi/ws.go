package httpapi

import (
	"context"
	"net/http"
	"time"
)

// handleEventsWS streams coordinator events to one websocket client.
// The first client to ever connect attaches the delayed queue: buffered
// events are replayed in order before live delivery starts, and the
// attach doubles as the application's reachability signal.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.queue.Subscribe(256)
	defer sub.Close()

	s.metrics.WSListeners.Inc()
	defer s.metrics.WSListeners.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Single writer goroutine; gorilla connections allow one concurrent
	// writer only.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(ev); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// The stream is one-way; the read loop only notices disconnects.
	conn.SetReadLimit(1 << 16)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-writerDone
}
