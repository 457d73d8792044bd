package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"anon_messenger/internal/model"
	"anon_messenger/internal/utils/log"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxFrameBytes = 1 << 20
	writeTimeout  = 10 * time.Second
)

type (
	// Conn wraps one websocket connection. The principal is bound once at
	// handshake and never changes; a conn with an empty principal drains
	// inbound frames without routing them and can receive nothing.
	Conn struct {
		ws        *websocket.Conn
		principal string
		send      chan *model.Envelope

		once sync.Once
		done chan struct{}
	}
)

func NewConn(ws *websocket.Conn, principal string, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Conn{
		ws:        ws,
		principal: principal,
		send:      make(chan *model.Envelope, sendBuffer),
		done:      make(chan struct{}),
	}
}

func (c *Conn) Principal() string {
	return c.principal
}

// Send queues an envelope for the write pump without blocking. Delivery is
// at-most-once: a full buffer or a closed connection drops the envelope.
func (c *Conn) Send(env *model.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		log.Warn("send buffer full, envelope dropped",
			zap.String("principal", c.principal))
		return false
	}
}

func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// ReadLoop pumps inbound frames to the router until the socket dies. The
// transport delivers frames in order within this connection; each frame is
// routed before the next is read. The read deadline is refreshed by pongs,
// so a peer that stops answering pings is torn down.
func (c *Conn) ReadLoop(router *Router, heartbeat time.Duration) {
	defer c.Close()

	c.ws.SetReadLimit(maxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * heartbeat))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * heartbeat))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			log.Debug("websocket closed",
				zap.String("principal", c.principal),
				zap.Error(err))
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Debug("malformed envelope dropped", zap.Error(err))
			continue
		}

		router.Route(context.Background(), c.principal, &env)
	}
}

// WriteLoop drains the send queue and emits heartbeat pings.
func (c *Conn) WriteLoop(heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteJSON(env); err != nil {
				log.Debug("write failed",
					zap.String("principal", c.principal),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
