package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Reply answers one Request. Exactly one of Data and Error is set.
type Reply struct {
	ID     string `json:"id,omitempty"`
	View   string `json:"view"`
	Status int    `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// session is one websocket connection. Requests are read and answered in
// order by readPump; writePump owns every write to the connection.
type session struct {
	id     string
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{} // closed when writePump exits
	log    logrus.FieldLogger
}

func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	sess := &session{
		id:     id,
		server: s,
		conn:   conn,
		send:   make(chan []byte, 16),
		done:   make(chan struct{}),
		log:    s.log.WithField("session", id),
	}
	if !s.register(sess) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	sess.log.WithField("remote_addr", conn.RemoteAddr().String()).Info("websocket client connected")

	// The request context ends when this handler returns, so requests
	// are answered under the server's session context instead.
	ctx, cancel := context.WithCancel(s.ctx)
	go sess.writePump()
	go func() {
		defer cancel()
		sess.readPump(ctx)
	}()
}

func (c *session) readPump(ctx context.Context) {
	defer close(c.send)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("websocket client dropped")
			} else {
				c.log.Debug("websocket client disconnected")
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.log.WithError(err).Debug("invalid websocket request")
			c.reply(Reply{Status: http.StatusBadRequest, Error: "invalid json request"})
			continue
		}
		c.reply(c.answer(ctx, req))
	}
}

func (c *session) answer(ctx context.Context, req Request) Reply {
	data, status, err := c.server.resolve(ctx, req)
	rep := Reply{ID: req.ID, View: req.View, Status: status}
	if err != nil {
		body := errorFor(err)
		rep.Error, rep.Code = body.Error, body.Code
		return rep
	}
	rep.Data = data
	return rep
}

func (c *session) reply(rep Reply) {
	b, err := json.Marshal(rep)
	if err != nil {
		c.log.WithError(err).Error("cannot encode websocket reply")
		return
	}
	select {
	case c.send <- b:
	case <-c.done:
	}
}

// shutdown tells the client the server is going away and closes the
// connection, which ends readPump and then writePump.
func (c *session) shutdown() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
	c.conn.Close()
}

func (c *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
		c.server.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Debug("websocket write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
