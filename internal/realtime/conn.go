package realtime

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"homelet/api/internal/auth"
)

// Conn is one authenticated realtime connection as seen by the broker. Its
// principal is fixed for the connection's lifetime.
type Conn struct {
	ID        string
	Principal auth.Principal

	send    chan []byte
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newConn(p auth.Principal, buffer int, limiter *rate.Limiter) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &Conn{
		ID:        uuid.NewString(),
		Principal: p,
		send:      make(chan []byte, buffer),
		limiter:   limiter,
	}
}

// Outbound yields frames queued for this connection. It is closed when the
// connection is unregistered.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// enqueue never blocks. It reports false if the queue is full or closed.
func (c *Conn) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close returns false if the connection was already closed.
func (c *Conn) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

func (c *Conn) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}
