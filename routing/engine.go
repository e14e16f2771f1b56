package routing

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-switchboard/switchboard/types"
)

// Result is the outcome of one successfully processed routing event: the
// status lines to report, in emission order. A nil or empty result means
// the event was silently absorbed and no message is sent.
type Result struct {
	Lines []string
}

// Empty reports whether the result carries no status lines.
func (r *Result) Empty() bool {
	return r == nil || len(r.Lines) == 0
}

// PushFunc delivers a result out-of-band to the session that originated a
// call, used when a ring timeout fires outside any request/response cycle.
type PushFunc func(sessionID string, result *Result)

// Config holds the engine's construction parameters.
type Config struct {
	// Operators lists operator ids; slice order is the pool order used as
	// the assignment tie-break.
	Operators []string

	// RingTimeout is how long an operator may ring before the call is
	// treated as ignored.
	RingTimeout time.Duration
}

// Engine is the single owner of all call, operator, queue, and timer
// state. Every event, external command or fired ring timer, serializes
// through its mutex and runs to completion before the next is admitted.
type Engine struct {
	mu           sync.Mutex
	operators    []*types.Operator // pool order
	operatorByID map[string]*types.Operator
	activeCalls  map[string]*types.Call
	waitQueue    []string // call ids, FIFO
	ringTimers   map[string]*time.Timer
	watchers     map[string]chan types.CallState

	ringTimeout time.Duration
	push        PushFunc
	logger      *slog.Logger
}

// NewEngine builds an engine with a fixed operator pool. Operators are
// never created or destroyed afterwards.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		operatorByID: make(map[string]*types.Operator),
		activeCalls:  make(map[string]*types.Call),
		ringTimers:   make(map[string]*time.Timer),
		watchers:     make(map[string]chan types.CallState),
		ringTimeout:  cfg.RingTimeout,
		logger:       logger,
	}
	for _, id := range cfg.Operators {
		op := &types.Operator{ID: id, State: types.OperatorAvailable}
		e.operators = append(e.operators, op)
		e.operatorByID[id] = op
	}
	return e
}

// SetPushFunc installs the out-of-band delivery hook. Must be called
// before the engine starts receiving events.
func (e *Engine) SetPushFunc(fn PushFunc) {
	e.push = fn
}

// HandleCommand processes one decoded command to completion, including any
// queue promotion it triggers. sessionID identifies the originating
// session for later out-of-band pushes; it may be empty for callers that
// track call lifecycle another way (the SIP ingress watches instead).
func (e *Engine) HandleCommand(sessionID string, cmd types.Command) (*Result, error) {
	if cmd.ID == "" {
		return nil, newMalformedError()
	}
	switch cmd.Command {
	case types.CmdCall:
		return e.handleCall(sessionID, cmd.ID)
	case types.CmdAnswer:
		return e.handleAnswer(cmd.ID)
	case types.CmdReject:
		return e.handleReject(cmd.ID)
	case types.CmdHangup:
		return e.handleHangup(cmd.ID)
	default:
		return nil, newMalformedError()
	}
}

func (e *Engine) handleCall(sessionID, callID string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.activeCalls[callID]; exists {
		return nil, newDuplicateIDError(callID)
	}

	call := &types.Call{
		ID:        callID,
		State:     types.CallWaiting,
		Origin:    sessionID,
		StartTime: time.Now(),
	}
	e.activeCalls[callID] = call

	lines := []string{fmt.Sprintf("Call %s received", callID)}
	if line, ok := e.assignLocked(call, ""); ok {
		lines = append(lines, line)
	} else {
		e.waitQueue = append(e.waitQueue, callID)
		lines = append(lines, fmt.Sprintf("Call %s waiting in queue", callID))
	}

	e.logger.Info("call received", "call", callID, "queued", call.AssignedOperator == "")
	return &Result{Lines: lines}, nil
}

func (e *Engine) handleAnswer(operatorID string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.knownIDLocked(operatorID) {
		return nil, newInvalidIDError(operatorID)
	}

	op := e.operatorByID[operatorID]
	if op == nil || op.State != types.OperatorRinging {
		// Already busy, already available, or the id named a call: the
		// event is absorbed without a response.
		return nil, nil
	}

	e.disarmTimerLocked(op.CurrentCall)
	call := e.activeCalls[op.CurrentCall]
	call.State = types.CallAnswered
	op.State = types.OperatorBusy
	e.notifyWatcherLocked(call.ID, types.CallAnswered)

	e.logger.Info("call answered", "call", call.ID, "operator", op.ID)
	return &Result{Lines: []string{fmt.Sprintf("Call %s answered by operator %s", call.ID, op.ID)}}, nil
}

func (e *Engine) handleReject(operatorID string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.knownIDLocked(operatorID) {
		return nil, newInvalidIDError(operatorID)
	}

	op := e.operatorByID[operatorID]
	if op == nil || op.State != types.OperatorRinging {
		return nil, nil
	}

	e.disarmTimerLocked(op.CurrentCall)
	call := e.activeCalls[op.CurrentCall]
	call.AssignedOperator = ""
	call.State = types.CallWaiting
	op.CurrentCall = ""
	op.State = types.OperatorAvailable
	e.notifyWatcherLocked(call.ID, types.CallWaiting)

	lines := []string{fmt.Sprintf("Call %s rejected by operator %s", call.ID, op.ID)}

	// Re-attempt assignment, skipping the operator that just rejected so
	// the call lands on a different one when any is free.
	if line, ok := e.assignLocked(call, op.ID); ok {
		lines = append(lines, line)
	} else {
		e.waitQueue = append(e.waitQueue, call.ID)
		lines = append(lines, fmt.Sprintf("Call %s waiting in queue", call.ID))
	}

	e.logger.Info("call rejected", "call", call.ID, "operator", op.ID)
	return &Result{Lines: lines}, nil
}

func (e *Engine) handleHangup(callID string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	call, ok := e.activeCalls[callID]
	if !ok {
		return nil, newInvalidIDError(callID)
	}

	e.disarmTimerLocked(callID)

	operatorID := call.AssignedOperator
	if operatorID != "" {
		op := e.operatorByID[operatorID]
		op.State = types.OperatorAvailable
		op.CurrentCall = ""
	}

	var lines []string
	if call.State == types.CallAnswered {
		call.State = types.CallFinished
		lines = append(lines, fmt.Sprintf("Call %s finished and operator %s available", callID, operatorID))
	} else {
		lines = append(lines, fmt.Sprintf("Call %s missed", callID))
	}

	e.removeFromQueueLocked(callID)
	delete(e.activeCalls, callID)
	e.closeWatcherLocked(callID)

	if line, ok := e.promoteLocked(); ok {
		lines = append(lines, line)
	}

	e.logger.Info("call hung up", "call", callID, "operator", operatorID, "state", call.State.String())
	return &Result{Lines: lines}, nil
}

// handleRingTimeout re-enters the engine when an armed ring deadline
// fires. The timer registry entry is the single source of truth for
// liveness: a missing entry means the timer was cancelled after this
// callback was scheduled, and the event must not run.
func (e *Engine) handleRingTimeout(callID, operatorID string) {
	e.mu.Lock()
	if _, live := e.ringTimers[callID]; !live {
		e.mu.Unlock()
		return
	}
	delete(e.ringTimers, callID)

	call := e.activeCalls[callID]
	op := e.operatorByID[operatorID]
	op.State = types.OperatorAvailable
	op.CurrentCall = ""

	// A timed-out call is discarded, not requeued.
	delete(e.activeCalls, callID)
	e.closeWatcherLocked(callID)

	lines := []string{fmt.Sprintf("Call %s ignored by operator %s", callID, operatorID)}
	if line, ok := e.promoteLocked(); ok {
		lines = append(lines, line)
	}
	origin := call.Origin
	e.mu.Unlock()

	e.logger.Info("ring timeout", "call", callID, "operator", operatorID)
	if e.push != nil {
		e.push(origin, &Result{Lines: lines})
	}
}

// assignLocked offers the call to the first available operator in pool
// order, arming a fresh ring timer on success. excludeOperator skips one
// operator id, used on the reject path. Caller holds the mutex.
func (e *Engine) assignLocked(call *types.Call, excludeOperator string) (string, bool) {
	for _, op := range e.operators {
		if op.ID == excludeOperator || op.State != types.OperatorAvailable {
			continue
		}
		op.State = types.OperatorRinging
		op.CurrentCall = call.ID
		call.AssignedOperator = op.ID
		call.State = types.CallRinging
		e.armTimerLocked(call.ID, op.ID)
		e.notifyWatcherLocked(call.ID, types.CallRinging)
		return fmt.Sprintf("Call %s ringing for operator %s", call.ID, op.ID), true
	}
	return "", false
}

// promoteLocked tries to hand the queue head to a freed operator. The head
// is only popped once assignment succeeds, so no call ever leaves the
// queue except by being assigned.
func (e *Engine) promoteLocked() (string, bool) {
	if len(e.waitQueue) == 0 {
		return "", false
	}
	head := e.activeCalls[e.waitQueue[0]]
	line, ok := e.assignLocked(head, "")
	if !ok {
		return "", false
	}
	e.waitQueue = e.waitQueue[1:]
	return line, true
}

func (e *Engine) armTimerLocked(callID, operatorID string) {
	e.ringTimers[callID] = time.AfterFunc(e.ringTimeout, func() {
		e.handleRingTimeout(callID, operatorID)
	})
}

// disarmTimerLocked removes the registry entry, which is the cancellation
// contract: a fired callback that finds no entry must no-op.
func (e *Engine) disarmTimerLocked(callID string) {
	if t, ok := e.ringTimers[callID]; ok {
		t.Stop()
		delete(e.ringTimers, callID)
	}
}

func (e *Engine) removeFromQueueLocked(callID string) {
	for i, id := range e.waitQueue {
		if id == callID {
			e.waitQueue = append(e.waitQueue[:i], e.waitQueue[i+1:]...)
			return
		}
	}
}

// knownIDLocked reports whether id names an operator, an active call, or a
// queued call. Queued calls are a subset of active calls, so two lookups
// suffice.
func (e *Engine) knownIDLocked(id string) bool {
	if _, ok := e.operatorByID[id]; ok {
		return true
	}
	_, ok := e.activeCalls[id]
	return ok
}
