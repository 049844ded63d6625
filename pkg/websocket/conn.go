package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is one live, authenticated client connection. Outbound messages
// are queued on Send and drained by the transport's write pump.
type Conn struct {
	Username string
	Role     string
	Sock     *websocket.Conn
	Send     chan []byte

	mu                  sync.Mutex
	closed              bool
	taskInfoView        string
	viewingGameInfo     bool
	viewingGameHostInfo bool
}

func NewConn(username, role string, sock *websocket.Conn) *Conn {
	return &Conn{
		Username: username,
		Role:     role,
		Sock:     sock,
		Send:     make(chan []byte, 16),
	}
}

func (c *Conn) TaskInfoView() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taskInfoView
}

func (c *Conn) SetTaskInfoView(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taskInfoView = taskID
}

func (c *Conn) IsViewingGameInfo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewingGameInfo
}

func (c *Conn) SetViewGameInfo(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewingGameInfo = flag
}

func (c *Conn) IsViewingGameHostInfo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewingGameHostInfo
}

func (c *Conn) SetViewGameHostInfo(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewingGameHostInfo = flag
}

// push queues data without blocking. It reports false if the connection
// is closed or its buffer is full.
func (c *Conn) push(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// close tears down the send channel. Safe to call more than once. The
// write pump drains any queued frames and closes the socket once the
// channel is exhausted, so terminal messages still reach the client.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
