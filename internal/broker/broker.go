package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/xivicWon/ssh-monitor/internal/logutil"
)

// Handler serves a SEND frame. body is the raw JSON body of the frame.
type Handler func(ctx context.Context, c *Client, body json.RawMessage)

type route struct {
	h     Handler
	async bool
}

// Config tunes per-connection limits.
type Config struct {
	// MessageRate and MessageBurst throttle inbound frames per connection.
	MessageRate  float64
	MessageBurst int
	// QueueSize is the outbound frame buffer per connection.
	QueueSize    int
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MessageRate <= 0 {
		c.MessageRate = 200
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = 400
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Broker routes SEND frames to handlers by destination and fans published
// payloads out to subscribed clients.
type Broker struct {
	cfg Config

	mu           sync.RWMutex
	clients      map[string]*Client
	routes       map[string]route
	onDisconnect []func(*Client)
}

func New(cfg Config) *Broker {
	return &Broker{
		cfg:     cfg.withDefaults(),
		clients: make(map[string]*Client),
		routes:  make(map[string]route),
	}
}

// Handle registers h for SEND frames to destination. Frames from one client
// are handled one at a time, in order.
func (b *Broker) Handle(destination string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[destination] = route{h: h}
}

// HandleAsync registers h to run in its own goroutine, for handlers that
// block on remote I/O and must not hold up the client's other frames.
func (b *Broker) HandleAsync(destination string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[destination] = route{h: h, async: true}
}

// OnDisconnect registers fn to run after a client's connection ends.
func (b *Broker) OnDisconnect(fn func(*Client)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDisconnect = append(b.onDisconnect, fn)
}

// Publish sends payload to every client subscribed to destination.
func (b *Broker) Publish(destination string, payload any) {
	frame, err := encodeMessage(destination, payload)
	if err != nil {
		log.Printf("[broker] encode payload for %s: %v", destination, err)
		return
	}

	b.mu.RLock()
	var targets []*Client
	for _, c := range b.clients {
		if c.Subscribed(destination) {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Serve runs conn until it closes or ctx is done. It blocks.
func (b *Broker) Serve(ctx context.Context, conn *websocket.Conn, remoteAddr string) {
	c := newClient(ctx, uuid.NewString(), remoteAddr, conn, b.cfg.QueueSize)
	defer c.cancel()

	b.mu.Lock()
	b.clients[c.ID] = c
	b.mu.Unlock()
	log.Printf("[broker] client %s connected from %s", c.ID, logutil.SanitizeForLog(remoteAddr))

	defer b.disconnect(c)

	go c.writeLoop(b.cfg.WriteTimeout)
	c.enqueue(encodeConnected(c.ID))

	limiter := rate.NewLimiter(rate.Limit(b.cfg.MessageRate), b.cfg.MessageBurst)
	for {
		typ, data, err := conn.Read(c.ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway && c.ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				log.Printf("[broker] client %s read: %v", c.ID, err)
			}
			return
		}
		if err := limiter.Wait(c.ctx); err != nil {
			return
		}
		if typ != websocket.MessageText {
			c.SendError("binary frames are not supported")
			continue
		}
		b.dispatch(c, data)
	}
}

func (b *Broker) disconnect(c *Client) {
	c.closed.Store(true)

	b.mu.Lock()
	delete(b.clients, c.ID)
	hooks := append([]func(*Client){}, b.onDisconnect...)
	b.mu.Unlock()

	c.cancel()
	for _, fn := range hooks {
		fn(c)
	}
	log.Printf("[broker] client %s disconnected", c.ID)
}

func (b *Broker) dispatch(c *Client, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.SendError("malformed frame")
		return
	}

	switch f.Command {
	case CommandSubscribe:
		if !strings.HasPrefix(f.Destination, TopicPrefix) {
			c.SendError(fmt.Sprintf("cannot subscribe to %q", f.Destination))
			return
		}
		c.subscribe(f.Destination)

	case CommandUnsubscribe:
		c.unsubscribe(f.Destination)

	case CommandSend:
		b.mu.RLock()
		r, ok := b.routes[f.Destination]
		b.mu.RUnlock()
		if !ok {
			c.SendError(fmt.Sprintf("no handler for %q", f.Destination))
			return
		}
		if r.async {
			go r.h(c.ctx, c, f.Body)
		} else {
			r.h(c.ctx, c, f.Body)
		}

	default:
		c.SendError(fmt.Sprintf("unknown command %q", f.Command))
	}
}
