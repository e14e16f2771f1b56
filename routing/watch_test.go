package routing

import (
	"testing"
	"time"

	"github.com/open-switchboard/switchboard/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan types.CallState) []types.CallState {
	var states []types.CallState
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return states
			}
			states = append(states, st)
		case <-time.After(time.Second):
			return states
		}
	}
}

func TestWatchCallSeesLifecycle(t *testing.T) {
	e := newTestEngine(t, "A")
	events := e.WatchCall("1")

	dispatch(t, e, types.CmdCall, "1")
	dispatch(t, e, types.CmdAnswer, "A")
	dispatch(t, e, types.CmdHangup, "1")

	// Channel is closed once the call leaves the registry.
	states := collect(events)
	assert.Equal(t, []types.CallState{types.CallRinging, types.CallAnswered}, states)
}

func TestWatchCallClosedOnTimeout(t *testing.T) {
	e, _ := newTimeoutEngine(t, 15*time.Millisecond)
	events := e.WatchCall("1")

	_, err := e.HandleCommand("", types.Command{Command: types.CmdCall, ID: "1"})
	require.NoError(t, err)

	states := collect(events)
	assert.Equal(t, []types.CallState{types.CallRinging}, states)
}

func TestUnwatchCallIsIdempotent(t *testing.T) {
	e := newTestEngine(t, "A")
	e.WatchCall("1")
	e.UnwatchCall("1")
	e.UnwatchCall("1")

	dispatch(t, e, types.CmdCall, "1")
	dispatch(t, e, types.CmdHangup, "1")
}
