package main

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNameLength = 20

var errAlreadyAttached = errors.New("a name is already attached to this connection")

// recordConn abstracts one framed message stream. tcpConn delivers one
// newline-terminated line per record; wsConn delivers one text frame.
type recordConn interface {
	readRecord() ([]byte, error)
	writeRecord([]byte) error
	close() error
}

// client is one connected transport stream. Outbound records go through
// the buffered send channel and a single writePump goroutine, so a slow
// or dead peer never blocks a broadcast.
type client struct {
	id     string
	remote string
	conn   recordConn
	send   chan any
}

func newClient(conn recordConn, remote string) *client {
	return &client{
		id:     uuid.NewString(),
		remote: remote,
		conn:   conn,
		send:   make(chan any, 16),
	}
}

func (c *client) writePump() {
	defer c.conn.close()

	for msg := range c.send {
		data, err := encodeRecord(msg)
		if err != nil {
			continue
		}
		if err := c.conn.writeRecord(data); err != nil {
			return
		}
	}
}

// registry is the single source of truth for who is connected. It maps
// each live client to its attached player name ("" before LOGIN). The
// mutex also serializes sends against channel close, so the dispatcher
// can never write to an evicted client.
type registry struct {
	mu      sync.Mutex
	clients map[*client]string

	// onRemove runs after a named client leaves the registry: it drops
	// the player from the session and announces the departure. Wired once
	// at startup, before any connection is accepted.
	onRemove func(c *client, name string)
}

func newRegistry() *registry {
	return &registry{
		clients: make(map[*client]string),
	}
}

func (r *registry) register(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c] = ""
}

// attach binds a display name to a registered connection. Attaching twice
// fails; so does an empty or oversized name.
func (r *registry) attach(c *client, name string) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("name must be at most %d characters", maxNameLength)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.clients[c]
	if !ok {
		return errors.New("connection is not registered")
	}
	if current != "" {
		return errAlreadyAttached
	}

	r.clients[c] = name

	return nil
}

// remove takes a client out of the registry and closes its send channel,
// which ends the writePump and closes the transport. Removal is
// idempotent and never propagates a failure past its boundary: the
// onRemove side effects run outside the registry lock.
func (r *registry) remove(c *client) {
	r.mu.Lock()
	name, ok := r.clients[c]
	if ok {
		delete(r.clients, c)
		close(c.send)
	}
	r.mu.Unlock()

	if ok && name != "" && r.onRemove != nil {
		r.onRemove(c, name)
	}
}

func (r *registry) name(c *client) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.clients[c]
}

func (r *registry) byID(id string) *client {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.clients {
		if c.id == id {
			return c
		}
	}

	return nil
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.clients)
}

// closeAll evicts every connection, used at shutdown. Closing the
// transport unblocks each connection's reader so no worker outlives the
// server.
func (r *registry) closeAll() {
	r.mu.Lock()
	clients := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		r.remove(c)
		_ = c.conn.close()
	}
}

// attached returns the id and name of every client that has logged in,
// used to seed a fresh session when a new game starts after END.
func (r *registry) attached() []struct{ id, name string } {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster := make([]struct{ id, name string }, 0, len(r.clients))
	for c, name := range r.clients {
		if name == "" {
			continue
		}
		roster = append(roster, struct{ id, name string }{c.id, name})
	}

	return roster
}
