package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Client is one open console socket. All writes go through its writer
// goroutine; the owner of the connection does the reading.
type Client struct {
	SessionID string

	conn     *websocket.Conn
	sendCh   chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func newClient(sessionID string, conn *websocket.Conn) *Client {
	c := &Client{
		SessionID: sessionID,
		conn:      conn,
		sendCh:    make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Client) run() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if msg == nil {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				c.stop()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.stop()
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.stop()
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue never blocks. It reports false when the client is closed or its
// buffer is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.sendCh <- data:
		return true
	default:
		return false
	}
}

// closeAfterFlush lets queued messages go out, then sends a close frame.
func (c *Client) closeAfterFlush() {
	if !c.enqueue(nil) {
		c.stop()
	}
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Done is closed once the socket is shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
