package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"PRelay/logger"
	"PRelay/tools/ids"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 256
)

// WsConn wraps one websocket connection. The read loop is the only goroutine
// touching conn reads; writes go through the send queue and writePump. The
// alive flag is the liveness-probe state: cleared by the sweep, re-armed by
// the pong handler.
type WsConn struct {
	ID string

	conn *websocket.Conn

	send   chan []byte
	done   chan struct{}
	userID atomic.Int64
	alive  atomic.Bool

	closeOnce   sync.Once
	cleanupOnce sync.Once
}

func newConn(ws *websocket.Conn) *WsConn {
	c := &WsConn{
		ID:   ids.GenerateString(),
		conn: ws,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	c.alive.Store(true)
	return c
}

func (c *WsConn) UserID() int64 { return c.userID.Load() }

func (c *WsConn) Authorized() bool { return c.userID.Load() != 0 }

func (c *WsConn) bindUser(id int64) { c.userID.Store(id) }

// Enqueue queues a frame for delivery. Best-effort: a closed connection or a
// full queue drops the frame and reports false.
func (c *WsConn) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		logger.Warnf("[WS] send queue full, drop frame conn=%s user=%d", c.ID, c.UserID())
		return false
	}
}

// ping sends a probe control frame. The peer's pong re-arms the alive flag.
func (c *WsConn) ping() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
}

// terminate force-closes the transport. Safe to call more than once and
// concurrently with writePump.
func (c *WsConn) terminate() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = c.conn.Close()
		}
	})
}

// writePump drains the send queue onto the wire. Exits when the connection
// terminates; a write error terminates the connection so the read loop
// unblocks too.
func (c *WsConn) writePump() {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Infof("[WS] write err conn=%s user=%d err=%v", c.ID, c.UserID(), err)
				c.terminate()
				return
			}
		case <-c.done:
			return
		}
	}
}
