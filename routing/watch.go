package routing

import "github.com/open-switchboard/switchboard/types"

// WatchCall registers interest in a call's lifecycle. It must be called
// before the call event is submitted so no transition is missed. The
// returned channel receives state transitions and is closed when the call
// leaves the active registry (hangup or ring timeout).
func (e *Engine) WatchCall(callID string) <-chan types.CallState {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan types.CallState, 8)
	e.watchers[callID] = ch
	return ch
}

// UnwatchCall drops the watcher for callID if one is still registered.
// Safe to call after the engine has already closed the channel.
func (e *Engine) UnwatchCall(callID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeWatcherLocked(callID)
}

func (e *Engine) notifyWatcherLocked(callID string, state types.CallState) {
	ch, ok := e.watchers[callID]
	if !ok {
		return
	}
	// Never block the engine on a slow watcher.
	select {
	case ch <- state:
	default:
	}
}

func (e *Engine) closeWatcherLocked(callID string) {
	if ch, ok := e.watchers[callID]; ok {
		close(ch)
		delete(e.watchers, callID)
	}
}
