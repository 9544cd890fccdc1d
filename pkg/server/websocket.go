package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/pkg/protocol"
)

// wsConn is one WebSocket client. Requests are handled in order on the read
// goroutine.
type wsConn struct {
	id     string
	ctx    context.Context
	conn   *websocket.Conn
	server *Server
	logger *zap.Logger

	// seq numbers the requests of this connection, starting at 1. Only the
	// read goroutine advances it; close may read it from Shutdown.
	seq atomic.Uint64

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// handleWebSocket serves GET /v1/ws.
//
// The server first sends a Hello frame carrying the connection id. Each text
// message is then a ReconcileRequest, answered by one or more Patches frames
// (the last flagged final) or by an Error frame, all under the request's
// sequence number.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.metrics.wsErrors.WithLabelValues("upgrade").Inc()
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsConn{
		id:     uuid.NewString(),
		ctx:    r.Context(),
		conn:   conn,
		server: s,
		done:   make(chan struct{}),
	}
	c.logger = s.logger.With(zap.String("conn_id", c.id))

	if !s.track(c) {
		c.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer s.untrack(c)

	s.metrics.wsConnections.Inc()
	defer s.metrics.wsConnections.Dec()

	c.logger.Debug("websocket connected", zap.String("remote", r.RemoteAddr))
	if err := c.writeFrame(protocol.NewHelloFrame(c.id)); err != nil {
		c.close(websocket.CloseInternalServerErr, "")
		return
	}

	go c.pingLoop(s.config.PingInterval)
	c.readLoop()
}

func (c *wsConn) readLoop() {
	defer c.close(websocket.CloseNormalClosure, "")

	s := c.server
	c.conn.SetReadLimit(s.config.MaxBodyBytes)
	wait := 2 * s.config.PingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		mt, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.metrics.wsErrors.WithLabelValues("read").Inc()
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))

		if err := c.handle(c.seq.Add(1), mt, msg); err != nil {
			s.metrics.wsErrors.WithLabelValues("write").Inc()
			c.logger.Warn("websocket write error", zap.Error(err))
			return
		}
	}
}

// handle answers one message. It returns an error only when writing fails.
func (c *wsConn) handle(seq uint64, mt int, msg []byte) error {
	if mt != websocket.TextMessage {
		return c.writeError(seq, errors.New(errors.CodeBadRequest).
			WithDetail("Requests are JSON text messages."))
	}

	var req ReconcileRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return c.writeError(seq, errors.New(errors.CodeBadRequest).Wrap(err))
	}

	patches, err := c.server.Reconcile(c.ctx, &req)
	if err != nil {
		return c.writeError(seq, err)
	}

	frames, err := protocol.EncodePatchFrames(seq, patches)
	if err != nil {
		return c.writeError(seq, errors.FromReconcile(err))
	}
	for _, f := range frames {
		if err := c.writeFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// writeError sends a non-fatal Error frame. The message starts with the
// sequence number so clients can match it to the request.
func (c *wsConn) writeError(seq uint64, err error) error {
	e := errors.FromReconcile(err)
	msg := protocol.NewError(wireCode(e), seqPrefix(seq)+e.Error())
	return c.writeFrame(msg.Frame())
}

func seqPrefix(seq uint64) string {
	return "seq " + strconv.FormatUint(seq, 10) + ": "
}

func (c *wsConn) writeFrame(f *protocol.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, f.Encode())
}

func (c *wsConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.server.config.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// close sends a close message and closes the connection once.
func (c *wsConn) close(code int, text string) {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
		_ = c.conn.Close()
		c.logger.Debug("websocket closed", zap.Uint64("requests", c.seq.Load()))
	})
}
