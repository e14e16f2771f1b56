package session

import "sync"

// Pusher delivers an out-of-band response to one connected client.
type Pusher interface {
	Push(lines []string) error
}

var (
	activeSessions map[string]Pusher
	sessionsMutex  sync.RWMutex
)

func init() {
	activeSessions = make(map[string]Pusher)
}

// Register adds a connected session under id.
func Register(id string, p Pusher) {
	sessionsMutex.Lock()
	defer sessionsMutex.Unlock()
	activeSessions[id] = p
}

// Unregister removes a session; pending pushes to it are dropped.
func Unregister(id string) {
	sessionsMutex.Lock()
	defer sessionsMutex.Unlock()
	delete(activeSessions, id)
}

// Push sends lines to the session registered under id. Returns false when
// the session is gone; a disconnected client is not an error.
func Push(id string, lines []string) bool {
	sessionsMutex.RLock()
	p, ok := activeSessions[id]
	sessionsMutex.RUnlock()
	if !ok {
		return false
	}
	return p.Push(lines) == nil
}

// ActiveSessionCount reports the number of connected sessions.
func ActiveSessionCount() int {
	sessionsMutex.RLock()
	defer sessionsMutex.RUnlock()
	return len(activeSessions)
}
