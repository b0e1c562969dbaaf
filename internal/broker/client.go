package broker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// Client is one WebSocket connection to the broker.
type Client struct {
	ID         string
	RemoteAddr string

	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mu   sync.RWMutex
	subs map[string]struct{}
}

func newClient(ctx context.Context, id, remoteAddr string, conn *websocket.Conn, queueSize int) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		ID:         id,
		RemoteAddr: remoteAddr,
		conn:       conn,
		send:       make(chan []byte, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[string]struct{}),
	}
}

// Context is cancelled when the connection ends.
func (c *Client) Context() context.Context { return c.ctx }

// Closed reports whether the connection has ended. It is true before any
// disconnect hook runs.
func (c *Client) Closed() bool { return c.closed.Load() }

// Subscribed reports whether the client subscribed to destination.
func (c *Client) Subscribed(destination string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[destination]
	return ok
}

func (c *Client) subscribe(destination string) {
	c.mu.Lock()
	c.subs[destination] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) unsubscribe(destination string) {
	c.mu.Lock()
	delete(c.subs, destination)
	c.mu.Unlock()
}

// enqueue queues a frame without blocking. A client whose queue is full is
// disconnected.
func (c *Client) enqueue(frame []byte) {
	if c.ctx.Err() != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		log.Printf("[broker] client %s outbound queue full, disconnecting", c.ID)
		c.cancel()
	}
}

// SendError sends an ERROR frame to this client only.
func (c *Client) SendError(msg string) {
	c.enqueue(encodeError(msg))
}

// writeLoop is the only writer on the connection, so frames go out in the
// order they were queued.
func (c *Client) writeLoop(timeout time.Duration) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, timeout)
			err := c.conn.Write(ctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				if c.ctx.Err() == nil {
					log.Printf("[broker] client %s write failed: %v", c.ID, err)
				}
				c.cancel()
				return
			}
		}
	}
}
