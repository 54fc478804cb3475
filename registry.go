package portbus

import (
	"sync"

	"github.com/portbus/portbus-go/wire"
)

// NoTab is the tab id recorded for connections not attached to any tab
// (devtools before re-homing, popups, background itself).
const NoTab = -1

// CategoryBackground is the fixed category of the background context.
const CategoryBackground = "bg"

// CategoryUnknown is the bucket for connections that declared no name.
const CategoryUnknown = "unknown"

// Connection is one live link between background and exactly one other
// context instance. It is created on attach, owned by the registry, and
// destroyed on disconnect. Outbound envelopes go through a buffered writer
// queue drained by a per-connection goroutine.
type Connection struct {
	id       string
	category string
	tabID    int // mutated only under the router lock (updateTabId)

	sendMu  sync.Mutex
	writeCh chan *wire.Envelope
	closed  bool
}

// send queues an envelope for delivery. Returns false when the connection is
// shut down or its queue is full (connection presumed dead).
func (c *Connection) send(env *wire.Envelope) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.writeCh <- env:
		return true
	default:
		return false
	}
}

// shutdown closes the writer queue. Safe to call more than once.
func (c *Connection) shutdown() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.writeCh)
	}
}

// ConnectionInfo is a read-only snapshot of one registered connection.
type ConnectionInfo struct {
	ID       string
	Category string
	TabID    int
}

// portRegistry tracks every live connection, keyed by generated connection
// id, grouped by the category the remote side declared. Not safe for
// concurrent use; the background router serializes access.
type portRegistry struct {
	buckets map[string]map[string]*Connection
	byID    map[string]*Connection
}

func newPortRegistry() *portRegistry {
	return &portRegistry{
		buckets: make(map[string]map[string]*Connection),
		byID:    make(map[string]*Connection),
	}
}

func (r *portRegistry) add(conn *Connection) {
	bucket, ok := r.buckets[conn.category]
	if !ok {
		bucket = make(map[string]*Connection)
		r.buckets[conn.category] = bucket
	}
	bucket[conn.id] = conn
	r.byID[conn.id] = conn
}

// remove deletes a connection. Returns false if it was already gone.
func (r *portRegistry) remove(conn *Connection) bool {
	if _, ok := r.byID[conn.id]; !ok {
		return false
	}
	delete(r.byID, conn.id)
	if bucket, ok := r.buckets[conn.category]; ok {
		delete(bucket, conn.id)
		if len(bucket) == 0 {
			delete(r.buckets, conn.category)
		}
	}
	return true
}

func (r *portRegistry) lookup(id string) (*Connection, bool) {
	conn, ok := r.byID[id]
	return conn, ok
}

func (r *portRegistry) snapshot() []ConnectionInfo {
	infos := make([]ConnectionInfo, 0, len(r.byID))
	for _, conn := range r.byID {
		infos = append(infos, ConnectionInfo{ID: conn.id, Category: conn.category, TabID: conn.tabID})
	}
	return infos
}
