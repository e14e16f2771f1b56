package types

// Command is one decoded message from a client session. The meaning of ID
// depends on the verb: a call id for "call"/"hangup", an operator id for
// "answer"/"reject".
type Command struct {
	Command string `json:"command"`
	ID      string `json:"id"`
}

const (
	CmdCall   = "call"
	CmdAnswer = "answer"
	CmdReject = "reject"
	CmdHangup = "hangup"
)
