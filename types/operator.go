package types

// Operator is a fixed agent able to handle one call at a time. Operators
// are created once at pool construction; only State and CurrentCall mutate
// afterwards.
type Operator struct {
	ID          string
	State       OperatorState
	CurrentCall string // call id, empty when idle
}

type OperatorState int

const (
	OperatorAvailable OperatorState = iota
	OperatorRinging
	OperatorBusy
)

func (s OperatorState) String() string {
	switch s {
	case OperatorAvailable:
		return "available"
	case OperatorRinging:
		return "ringing"
	case OperatorBusy:
		return "busy"
	default:
		return "unknown"
	}
}
