package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mikiasgoitom/articulate-engage/internal/handler/presenter"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from the peer.
	maxMessageSize = 512
	// View models buffered per connection before the oldest updates are dropped.
	sendBuffer = 16
)

// StreamHandler pushes a subject's view model to websocket clients on every change.
type StreamHandler struct {
	presenters *presenter.Registry
	logger     usecasecontract.IAppLogger
	upgrader   websocket.Upgrader
}

func NewStreamHandler(presenters *presenter.Registry, allowedOrigins []string, logger usecasecontract.IAppLogger) *StreamHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &StreamHandler{
		presenters: presenters,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed["*"]; ok {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// ServeStream upgrades the request and streams view models until the client goes away.
func (h *StreamHandler) ServeStream(c *gin.Context) {
	subjectID := c.Param("subjectID")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Warnf("stream: upgrade for %s failed: %v", subjectID, err)
		return
	}

	p, release := h.presenters.Acquire(subjectID)
	defer release()
	send := make(chan presenter.ViewModel, sendBuffer)
	push := func(vm presenter.ViewModel) {
		select {
		case send <- vm:
		default:
			h.logger.Debugf("stream: %s client is slow; dropping update", subjectID)
		}
	}
	push(p.ViewModel())
	unsubscribe := p.Subscribe(push)

	done := make(chan struct{})
	go h.writePump(conn, subjectID, send, done)
	h.readPump(conn, subjectID)

	unsubscribe()
	close(done)
}

// readPump drains control frames so pongs and close messages are handled.
func (h *StreamHandler) readPump(conn *websocket.Conn, subjectID string) {
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warnf("stream: %s read error: %v", subjectID, err)
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, subjectID string, send <-chan presenter.ViewModel, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case <-done:
			return
		case vm := <-send:
			data, err := json.Marshal(vm)
			if err != nil {
				h.logger.Errorf("stream: encode view for %s: %v", subjectID, err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debugf("stream: %s write failed: %v", subjectID, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
