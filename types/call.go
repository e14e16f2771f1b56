package types

import "time"

// Call is one inbound contact event tracked by the routing engine.
// AssignedOperator holds the id of the operator currently offered or
// handling the call; the operator pool stays authoritative for the
// operator's own state.
type Call struct {
	ID               string
	CallerID         string
	State            CallState
	AssignedOperator string
	Origin           string // session that created the call, empty for SIP ingress
	StartTime        time.Time
}

type CallState int

const (
	CallWaiting CallState = iota
	CallRinging
	CallAnswered
	CallFinished
)

func (s CallState) String() string {
	switch s {
	case CallWaiting:
		return "waiting"
	case CallRinging:
		return "ringing"
	case CallAnswered:
		return "answered"
	case CallFinished:
		return "finished"
	default:
		return "unknown"
	}
}
