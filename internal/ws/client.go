package ws

import (
	"errors"
	"log/slog"
	"sync"
)

// Common errors.
var (
	ErrClientClosed  = errors.New("client is closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// sendQueueSize bounds the per-connection outbound queue. A connection that
// cannot drain this many messages is treated as failed.
const sendQueueSize = 64

// Conn abstracts the underlying WebSocket connection for testability.
// *websocket.Conn from gorilla/websocket satisfies it.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Client wraps one live socket. Outbound messages go through a buffered queue
// drained by a single writer goroutine, so sends to one recipient keep their
// order and a slow receiver never blocks the sender.
type Client struct {
	ID string

	conn   Conn
	logger *slog.Logger

	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps a connection and starts its writer.
func NewClient(id string, conn Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		ID:     id,
		conn:   conn,
		logger: logger,
		out:    make(chan Message, sendQueueSize),
		done:   make(chan struct{}),
	}

	go c.writeLoop()

	return c
}

// Send queues a message for delivery. A full queue counts as a send failure
// rather than blocking the caller.
func (c *Client) Send(msg Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.out <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// SendError sends an error message to this client only.
func (c *Client) SendError(code, message string) error {
	return c.Send(NewMessage(TypeError, ErrorPayload{Code: code, Message: message}))
}

// Read blocks on the next inbound frame and returns its raw bytes.
func (c *Client) Read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()

	return data, err
}

// Close shuts down the writer and closes the socket. Safe to call more than
// once.
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})

	return err
}

func (c *Client) writeLoop() {
	for {
		select {
		case msg := <-c.out:
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("client write failed", "client", c.ID, "error", err)

				return
			}
		case <-c.done:
			return
		}
	}
}
