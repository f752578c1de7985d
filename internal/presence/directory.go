// Package presence maps live user identities to their active connection
// handles. The directory is the single source every component consults to
// route an event to a specific user.
package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is a live connection handle able to receive encoded events.
type Conn interface {
	// Send enqueues an encoded event frame, reporting false when the
	// connection can no longer accept writes.
	Send(payload []byte) bool
}

// Directory is an in-memory identity-to-connection registry. One entry per
// identity: registering again overwrites the previous handle (last writer
// wins, the newest tab gets live pushes). All state is lost on restart;
// clients re-register on reconnect.
type Directory struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Conn
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{conns: make(map[uuid.UUID]Conn)}
}

// Register stores conn as the live handle for userID, silently replacing
// any previous handle.
func (d *Directory) Register(userID uuid.UUID, conn Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[userID] = conn
}

// Lookup returns the live handle for userID, if any.
func (d *Directory) Lookup(userID uuid.UUID) (Conn, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conn, ok := d.conns[userID]
	return conn, ok
}

// Deregister removes the entry for userID only when it still holds conn.
// A teardown racing with a fresh registration from a newer connection must
// not clobber the newer mapping. Reports whether an entry was removed.
func (d *Directory) Deregister(userID uuid.UUID, conn Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, ok := d.conns[userID]; ok && current == conn {
		delete(d.conns, userID)
		return true
	}
	return false
}

// Len returns the number of registered identities.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}
