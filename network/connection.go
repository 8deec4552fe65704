// network/connection.go
package network

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/guessduel/logger"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("send buffer full")
)

type Connection interface {
	Send(data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
	RemoteAddr() net.Addr
}

type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:     64,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 4096,
	}
}

// WSConnection queues outbound frames on a bounded buffer drained by its own
// writer goroutine. A peer that stops reading fills the buffer and gets
// disconnected instead of blocking senders.
type WSConnection struct {
	conn *websocket.Conn
	opts Options
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewWSConnection(conn *websocket.Conn, opts Options) *WSConnection {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}
	c := &WSConnection{
		conn: conn,
		opts: opts,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}

	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	if opts.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		})
	}

	go c.writePump()
	return c
}

// Send enqueues data without blocking.
func (c *WSConnection) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		logger.Log.Warnf("Send buffer full for %s, closing connection", c.RemoteAddr())
		_ = c.Close()
		return ErrSlowConsumer
	}
}

// ReadMessage blocks for the next text or binary frame.
func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *WSConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WSConnection) writePump() {
	var ping <-chan time.Time
	if c.opts.PongWait > 0 {
		ticker := time.NewTicker(c.opts.PongWait * 9 / 10)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() { _ = c.Close() }()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Log.Debugf("Write to %s failed: %v", c.RemoteAddr(), err)
				return
			}
		case <-ping:
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSConnection) setWriteDeadline() {
	if c.opts.WriteWait > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	}
}

// Reject closes a freshly upgraded connection with code before any message
// is exchanged.
func Reject(conn *websocket.Conn, code int, reason string, writeWait time.Duration) error {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		_ = conn.Close()
		return err
	}
	return conn.Close()
}
