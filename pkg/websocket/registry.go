// Package websocket tracks live client connections and dispatches
// outbound messages to them by username, role, or broadcast.
package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrAlreadyConnected = errors.New("user already connected")

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Target is one of the closed set of addressing modes: an explicit
// username list, a role, or all connections.
type Target struct {
	usernames []string
	role      string
	all       bool
}

func ToUsers(usernames ...string) Target {
	return Target{usernames: usernames}
}

func ToRole(role string) Target {
	return Target{role: role}
}

func ToAll() Target {
	return Target{all: true}
}

// Registry tracks live connections, at most one per username.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
	}
}

// Connect admits a connection. A second connection for an already
// connected username is rejected.
func (r *Registry) Connect(c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.Username]; exists {
		return ErrAlreadyConnected
	}
	r.conns[c.Username] = c
	log.Printf("Client %s connected (role %s)", c.Username, c.Role)
	return nil
}

// Get returns the connection for username, if any.
func (r *Registry) Get(username string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[username]
	return c, ok
}

// Resolve returns a snapshot of the connections matching target.
func (r *Registry) Resolve(target Target) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(target)
}

func (r *Registry) resolveLocked(target Target) []*Conn {
	var matched []*Conn
	switch {
	case target.all:
		for _, c := range r.conns {
			matched = append(matched, c)
		}
	case target.role != "":
		for _, c := range r.conns {
			if c.Role == target.role {
				matched = append(matched, c)
			}
		}
	default:
		for _, username := range target.usernames {
			if c, ok := r.conns[username]; ok {
				matched = append(matched, c)
			}
		}
	}
	return matched
}

// Send dispatches msg to every connection matching target. A full or
// closed connection drops the frame without aborting delivery to the
// rest of the target set.
func (r *Registry) Send(target Target, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msg.Method, err)
		return
	}

	for _, c := range r.Resolve(target) {
		if !c.push(data) {
			log.Printf("Dropped %s message for %s: send buffer full", msg.Method, c.Username)
		}
	}
}

// Disconnect closes and removes every connection matching target.
func (r *Registry) Disconnect(target Target) {
	r.mu.Lock()
	matched := r.resolveLocked(target)
	for _, c := range matched {
		delete(r.conns, c.Username)
	}
	r.mu.Unlock()

	for _, c := range matched {
		c.close()
		log.Printf("Client %s disconnected", c.Username)
	}
}

// GameInfoViewers returns the usernames currently viewing public game
// info.
func (r *Registry) GameInfoViewers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var viewers []string
	for _, c := range r.conns {
		if c.IsViewingGameInfo() {
			viewers = append(viewers, c.Username)
		}
	}
	return viewers
}

// GameHostInfoViewers returns the usernames currently viewing host game
// info.
func (r *Registry) GameHostInfoViewers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var viewers []string
	for _, c := range r.conns {
		if c.IsViewingGameHostInfo() {
			viewers = append(viewers, c.Username)
		}
	}
	return viewers
}

// TaskInfoViewers returns the usernames currently viewing taskID.
func (r *Registry) TaskInfoViewers(taskID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var viewers []string
	for _, c := range r.conns {
		if c.TaskInfoView() == taskID {
			viewers = append(viewers, c.Username)
		}
	}
	return viewers
}
