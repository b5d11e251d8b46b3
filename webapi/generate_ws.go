package webapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"t2i_backend/t2i"
)

// ImageFrame carries one output over the websocket.
type ImageFrame struct {
	Image string `json:"image"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	// same-origin deployment; the API has no cookies to protect
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleGenerateWS runs one generation per connection. The client sends the
// request as the first text frame; the server answers with one ImageFrame
// per output, then at most one ErrorResponse, then closes.
func (s *Server) handleGenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	timeout := s.config.WSSendTimeout
	conn.SetReadLimit(maxBodyBytes)

	req := defaultGenerateRequest()
	conn.SetReadDeadline(time.Now().Add(timeout))
	if err := conn.ReadJSON(&req); err != nil {
		s.logger.Debug("Websocket request not received", zap.Error(err))
		s.sendFrame(conn, ErrorResponse{Error: "Invalid request."})
		s.closeSocket(conn)
		return
	}
	conn.SetReadDeadline(time.Time{})

	sink, apiErr := s.prepare(req)
	if apiErr != nil {
		s.sendFrame(conn, ErrorResponse{Error: apiErr.message})
		s.closeSocket(conn)
		return
	}
	if !s.deps.Tracker.Start() {
		s.sendFrame(conn, ErrorResponse{Error: msgShuttingDown})
		s.closeSocket(conn)
		return
	}
	defer s.deps.Tracker.Done()

	// the client never sends again; a read failure means it went away
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	seq := s.deps.Dispatcher.Dispatch(ctx, req.dispatchRequest(), sink)
	err = t2i.Stream(seq, func(res t2i.Result) error {
		if res.Err != nil {
			return s.sendFrame(conn, dispatchErrorBody(res.Err))
		}
		return s.sendFrame(conn, ImageFrame{Image: res.Image})
	})

	var derr *t2i.Error
	if err != nil && !errors.As(err, &derr) {
		s.logger.Warn("Websocket send failed, abandoning stream", zap.Error(err))
		return
	}
	s.closeSocket(conn)
}

// sendFrame writes v as one JSON text frame within the send timeout.
func (s *Server) sendFrame(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(s.config.WSSendTimeout))
	return conn.WriteJSON(v)
}

// closeSocket sends a normal close frame; the deferred Close drops the
// connection.
func (s *Server) closeSocket(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.config.WSSendTimeout))
}
