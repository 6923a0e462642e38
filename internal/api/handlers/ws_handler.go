package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/interviewx/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 8 << 20 // a base64 video frame
)

// SocketObserver tracks open sockets.
type SocketObserver interface {
	SocketOpened()
	SocketClosed()
}

type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	sockets  SocketObserver
	logger   *logrus.Logger
}

// NewWSHandler accepts upgrades from allowedOrigin only; an empty origin list accepts any.
func NewWSHandler(hub *realtime.Hub, allowedOrigin string, sockets SocketObserver, logger *logrus.Logger) *WSHandler {
	if logger == nil {
		logger = logrus.New()
	}
	allowed := strings.TrimRight(strings.TrimSpace(allowedOrigin), "/")
	return &WSHandler{
		hub:     hub,
		sockets: sockets,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 << 10,
			WriteBufferSize: 32 << 10,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowed == "" || origin == "" || strings.TrimRight(origin, "/") == allowed
			},
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) Emit(event string, data any) error {
	b, err := json.Marshal(realtime.Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	return w.write(websocket.TextMessage, b)
}

func (w *wsConn) write(kind int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(kind, b)
}

// Connect upgrades an authenticated request to the realtime channel.
func (h *WSHandler) Connect(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	if h.sockets != nil {
		h.sockets.SocketOpened()
		defer h.sockets.SocketClosed()
	}

	wc := &wsConn{c: conn}
	client := h.hub.Connect(userID, wc)
	defer h.hub.Disconnect(client)

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	go h.pinger(ctx, wc)

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	log := h.logger.WithField("user_id", userID)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("socket closed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg realtime.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			_ = wc.Emit(realtime.EventError, realtime.ErrorPayload{Code: "INVALID_ARGUMENT", Message: "invalid json"})
			continue
		}
		client.Handle(ctx, msg)
	}
}

func (h *WSHandler) pinger(ctx context.Context, wc *wsConn) {
	t := time.NewTicker(wsPingPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := wc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
