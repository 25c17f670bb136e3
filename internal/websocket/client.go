package websocket

import (
	"context"
	"sync"
	"time"

	"student-chat/internal/config"
	"student-chat/internal/models"
	"student-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client is one authenticated connection. Frames read from the socket are
// queued to a single per-connection loop; outbound frames go through a
// bounded send buffer drained by writePump.
type Client struct {
	conn       *websocket.Conn
	hub        *Hub
	registry   *Registry
	dispatcher *Dispatcher
	cfg        config.WebSocketConfig
	info       models.AuthenticatedConnection

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	inbound chan []byte

	// guarded by hub.mu
	rooms map[string]struct{}
	gone  bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func newClient(conn *websocket.Conn, hub *Hub, registry *Registry, dispatcher *Dispatcher, cfg config.WebSocketConfig, info models.AuthenticatedConnection) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:       conn,
		hub:        hub,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		info:       info,
		send:       make(chan []byte, cfg.SendBuffer),
		inbound:    make(chan []byte, cfg.InboundBuffer),
		rooms:      make(map[string]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *Client) start() {
	go c.writePump()
	go c.run()
	go c.readPump()
}

// Send queues ev for this connection only.
func (c *Client) Send(ev models.OutboundEvent) {
	data, err := ev.Encode()
	if err != nil {
		logger.Error("Error encoding %s event: %v", ev.Event, err)
		return
	}
	c.enqueue(data)
}

// enqueue never blocks. A connection whose buffer is full is closed rather
// than allowed to stall the producer.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		logger.Warn("Send buffer full for connection %s, closing", c.info.ConnectionID)
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// shutdown runs exactly once per connection, whichever side fails first.
func (c *Client) shutdown() {
	c.stopOnce.Do(func() {
		c.cancel()
		c.registry.Retire(c)
		c.closeSend()
		logger.Debug("Connection %s closed", c.info.ConnectionID)
	})
}

func (c *Client) run() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.inbound:
			c.dispatcher.Handle(c.ctx, c, frame)
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Error("WebSocket error on %s: %v", c.info.ConnectionID, err)
			}
			return
		}

		select {
		case c.inbound <- frame:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error on %s: %v", c.info.ConnectionID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
