package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"crosslend/core/types"
	"crosslend/services/lendingd/stream"
)

const streamWriteTimeout = 10 * time.Second

// streamEvents upgrades to a websocket and pushes committed events matching
// the type, loan_id and offer_id query filters. History is served by
// GET /v1/events.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeProblem(w, http.StatusNotImplemented, "StreamDisabled", "internal", "event stream not configured")
		return
	}
	q := r.URL.Query()
	updates, cancel := s.stream.Subscribe(stream.Filter{
		Type:    strings.TrimSpace(q.Get("type")),
		LoanID:  strings.TrimSpace(q.Get("loan_id")),
		OfferID: strings.TrimSpace(q.Get("offer_id")),
	})
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-updates:
			if !ok {
				_ = conn.Close(websocket.StatusPolicyViolation, "subscriber fell behind")
				return
			}
			if err := writeStreamEvent(ctx, conn, evt); err != nil {
				return
			}
		}
	}
}

func writeStreamEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
