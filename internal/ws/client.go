package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-realtime/internal/models"
	"chat-realtime/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 256
)

// Client is one realtime connection. Its send queue is drained in order by the
// write pump; a connection whose queue is full is closed rather than skipped.
type Client struct {
	conn *websocket.Conn
	user models.User
	info ConnInfo
	log  *log.Logger

	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeReason string

	// rooms is guarded by the hub's lock.
	rooms map[int]struct{}
}

func newClient(conn *websocket.Conn, user models.User, info ConnInfo, l *log.Logger) *Client {
	return &Client{
		conn:  conn,
		user:  user,
		info:  info,
		log:   l,
		send:  make(chan []byte, sendQueueSize),
		done:  make(chan struct{}),
		rooms: make(map[int]struct{}),
	}
}

// enqueue never blocks.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		observability.IncFanoutDropped()
		c.log.Printf("send queue full, closing connection conn_id=%s user_id=%d", c.info.ConnID, c.user.ID)
		c.close("send queue overflow")
		return false
	}
}

func (c *Client) sendEvent(event models.Event) {
	payload, err := models.EncodeEvent(event)
	if err != nil {
		c.log.Printf("encode event failed event=%s: %v", event.EventName(), err)
		return
	}
	observability.IncWSEvent("out", string(event.EventName()))
	c.enqueue(payload)
}

func (c *Client) close(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if !c.write(websocket.TextMessage, payload) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) write(msgType int, payload []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(msgType, payload); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
			c.log.Printf("ws write failed conn_id=%s: %v", c.info.ConnID, err)
		}
		return false
	}
	return true
}

// readPump feeds inbound frames to onFrame until the connection fails, then
// returns the reason.
func (c *Client) readPump(onFrame func(*Client, []byte)) string {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return c.closeReason
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Printf("ws read failed conn_id=%s: %v", c.info.ConnID, err)
			}
			return err.Error()
		}
		onFrame(c, raw)
	}
}
