package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/TangmaeTT/MathEveryday/internal/config"
	"github.com/TangmaeTT/MathEveryday/internal/game"
	"github.com/TangmaeTT/MathEveryday/internal/question"
	"github.com/TangmaeTT/MathEveryday/internal/stats"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

func newUpgrader(cfg *config.Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.Environment == "development" {
				return true
			}
			origin := r.Header.Get("Origin")
			// Non-browser clients send no origin.
			return origin == "" || origin == cfg.FrontendURL ||
				strings.HasPrefix(origin, "http://localhost:")
		},
	}
}

// clientFrame is what the player sends over the socket.
type clientFrame struct {
	Type     string `json:"type"` // "start", "answer", "stop"
	Operator string `json:"operator,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

// serverFrame is what the server pushes: a state snapshot every tick
// and after every answer, then one result frame after the session
// finishes.
type serverFrame struct {
	Type       string         `json:"type"` // "state", "result", "error"
	State      *game.Snapshot `json:"state,omitempty"`
	Result     *stats.Result  `json:"result,omitempty"`
	StatsError string         `json:"stats_error,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// client is one live socket with a buffered outbound channel so slow
// readers never block the session's tick path.
type client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// HandleSessionWebSocket runs a play session over a WebSocket: the
// client sends start/answer/stop frames, the server streams state
// every second and the reconciled result at the end.
func HandleSessionWebSocket(manager *game.Manager, cfg *config.Config) gin.HandlerFunc {
	upgrader := newUpgrader(cfg)
	return func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		uid, _ := userID.(string)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed for user %s: %v", uid, err)
			return
		}

		cl := &client{conn: conn, userID: uid, send: make(chan []byte, sendBufferSize)}
		go cl.writePump()
		cl.readLoop(manager)
	}
}

// readLoop processes inbound frames until the socket closes. If the
// player disconnects mid-session, the session is stopped so the
// partial score still reconciles.
func (cl *client) readLoop(manager *game.Manager) {
	var sessionID string
	defer func() {
		if sessionID != "" {
			if s, err := manager.Get(sessionID); err == nil && s.Status() == game.StatusRunning {
				log.Printf("[WS] User %s disconnected mid-session, stopping %s", cl.userID, sessionID)
				s.Stop()
			}
		}
		close(cl.send)
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(1024)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for user %s: %v", cl.userID, err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			cl.sendError("malformed frame")
			continue
		}

		switch frame.Type {
		case "start":
			op, ok := question.ParseOperator(frame.Operator)
			if !ok {
				cl.sendError("unknown operator")
				continue
			}
			s, err := manager.Start(cl.userID, op, cl.observe(manager))
			if err == game.ErrPlayerInSession {
				cl.sendError("a session is already running")
				continue
			}
			if err != nil {
				cl.sendError("failed to start session")
				continue
			}
			sessionID = s.ID
			cl.sendState(s.Snapshot())

		case "answer":
			if sessionID == "" {
				cl.sendError("no session started")
				continue
			}
			snap, err := manager.Submit(sessionID, frame.Answer)
			if err != nil {
				cl.sendError("session is not running")
				continue
			}
			cl.sendState(snap)

		case "stop":
			if sessionID == "" {
				cl.sendError("no session started")
				continue
			}
			manager.Stop(sessionID)

		default:
			cl.sendError("unknown frame type")
		}
	}
}

// observe returns the tick observer for a session: every snapshot is
// pushed, and the finished snapshot additionally triggers the result
// frame once reconciliation lands.
func (cl *client) observe(manager *game.Manager) game.TickObserver {
	return func(snap game.Snapshot) {
		cl.sendState(snap)
		if snap.Status == game.StatusFinished {
			go cl.sendResultWhenReady(manager, snap.SessionID)
		}
	}
}

// sendResultWhenReady waits for reconciliation to complete, then
// pushes the result frame. Reconciliation normally lands well inside
// a second; give up quietly after a few.
func (cl *client) sendResultWhenReady(manager *game.Manager, sessionID string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, recErr, ok := manager.Result(sessionID)
		if ok {
			frame := serverFrame{Type: "result", Result: res}
			switch {
			case errors.Is(recErr, stats.ErrStatsRead):
				frame.StatsError = "stats_unavailable"
			case errors.Is(recErr, stats.ErrStatsWrite):
				frame.StatsError = "stats_not_saved"
			}
			cl.push(frame)
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	log.Printf("[WS] Result for session %s never became available", sessionID)
}

func (cl *client) sendState(snap game.Snapshot) {
	cl.push(serverFrame{Type: "state", State: &snap})
}

func (cl *client) sendError(msg string) {
	cl.push(serverFrame{Type: "error", Error: msg})
}

// push marshals and queues a frame, dropping it if the buffer is full
// or the socket already closed.
func (cl *client) push(frame serverFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[WS] Error marshaling frame: %v", err)
		return
	}
	defer func() {
		// The send channel closes when the read loop exits; a tick
		// observer racing that close must not crash the session.
		recover()
	}()
	select {
	case cl.send <- data:
	default:
		log.Printf("[WS] Send buffer full for user %s, dropping frame", cl.userID)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case data, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
