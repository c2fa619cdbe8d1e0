package link

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/venlet/go-armlink/logger"
)

// State represents the stages of a link's lifetime.
type State uint32

// Link states.
const (
	// ClosedState indicates no usable transport; the initial and final state.
	ClosedState State = iota
	// OpeningState indicates the transport handle is being opened.
	OpeningState
	// AwaitingReadyState indicates the transport is open but the controller
	// has not announced readiness; inbound lines are boot banner.
	AwaitingReadyState
	// ReadyState indicates the readiness sentinel was observed; the link is
	// usable for sending commands.
	ReadyState
)

// IsClosed returns if the state is ClosedState.
func (s State) IsClosed() bool { return s == ClosedState }

// IsReady returns if the state is ReadyState.
func (s State) IsReady() bool { return s == ReadyState }

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case ClosedState:
		return "closed"
	case OpeningState:
		return "opening"
	case AwaitingReadyState:
		return "awaiting-ready"
	case ReadyState:
		return "ready"
	default:
		return "unknown"
	}
}

// StateChangeHandler is invoked when the link state changes.
//
// Note: the handler is invoked in a blocking mode from the transition path.
// Take care with long-running implementations.
type StateChangeHandler func(prevState State, newState State)

// StateMgr manages the link state machine.
//
// It provides the allowed transitions, notifies registered handlers of state
// changes, and lets callers block until a desired state is reached. All
// transitions are safe for concurrent use.
type StateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []StateChangeHandler
}

// NewStateMgr creates a new StateMgr in ClosedState.
//
// It accepts optional StateChangeHandler functions invoked on every state
// change.
func NewStateMgr(l logger.Logger, handlers ...StateChangeHandler) *StateMgr {
	if l == nil {
		l = logger.GetLogger()
	}

	sm := &StateMgr{
		logger:   l,
		handlers: make([]StateChangeHandler, 0, len(handlers)),
	}
	sm.handlers = append(sm.handlers, handlers...)
	sm.state.Store(uint32(ClosedState))
	sm.cond = sync.NewCond(&sm.mu)

	return sm
}

// State returns the current link state.
func (sm *StateMgr) State() State {
	return State(sm.state.Load())
}

// IsReady returns if the current state is ReadyState.
func (sm *StateMgr) IsReady() bool { return sm.State().IsReady() }

// IsClosed returns if the current state is ClosedState.
func (sm *StateMgr) IsClosed() bool { return sm.State().IsClosed() }

// AddHandler adds one or more StateChangeHandler functions to be invoked on
// state changes.
func (sm *StateMgr) AddHandler(handlers ...StateChangeHandler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.handlers = append(sm.handlers, handlers...)
}

// WaitState waits for the link state to reach the desired state or until the
// context is done.
//
// When a state other than ClosedState is desired and the link reaches
// ClosedState while waiting, WaitState returns ErrClosed: a closed link is
// final and the desired state can no longer be reached.
func (sm *StateMgr) WaitState(ctx context.Context, state State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.State() == state {
		return nil
	}

	stopFunc := context.AfterFunc(ctx, func() {
		sm.cond.Broadcast()
	})
	defer stopFunc()

	for sm.State() != state {
		if state != ClosedState && sm.State() == ClosedState {
			return ErrClosed
		}

		select {
		case <-ctx.Done():
			sm.logger.Debug("wait link state canceled", "cur_state", sm.State(), "desired_state", state)
			return ctx.Err()
		default:
			sm.cond.Wait()
		}
	}

	return nil
}

// ToOpening transitions to OpeningState.
//
// Only allowed from ClosedState, before the link has ever opened.
// Returns ErrInvalidTransition otherwise.
func (sm *StateMgr) ToOpening() error {
	return sm.transition(OpeningState, ClosedState)
}

// ToAwaitingReady transitions to AwaitingReadyState once the transport
// handle is open, distinct from application-level readiness.
//
// Only allowed from OpeningState. Returns ErrInvalidTransition otherwise.
func (sm *StateMgr) ToAwaitingReady() error {
	return sm.transition(AwaitingReadyState, OpeningState)
}

// ToReady transitions to ReadyState when the readiness sentinel is observed.
//
// Only allowed from AwaitingReadyState. Returns ErrInvalidTransition
// otherwise.
func (sm *StateMgr) ToReady() error {
	return sm.transition(ReadyState, AwaitingReadyState)
}

// ToClosed transitions to ClosedState.
//
// This transition is allowed from any state. If the state is already
// ClosedState, the function is a no-op.
func (sm *StateMgr) ToClosed() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	curState := sm.State()
	if curState == ClosedState {
		return
	}

	// change state before handlers run so late senders observe closed
	sm.setState(ClosedState)

	sm.invokeHandlers(curState, ClosedState)
}

// transition moves to newState if the current state equals from.
func (sm *StateMgr) transition(newState State, from State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	curState := sm.State()

	if curState == newState {
		return nil
	}
	if curState != from {
		return ErrInvalidTransition
	}

	sm.invokeHandlers(curState, newState)
	// change state after all handlers finished
	sm.setState(newState)

	return nil
}

// setState atomically sets the current state and broadcasts to any waiting
// goroutines.
func (sm *StateMgr) setState(newState State) {
	sm.state.Store(uint32(newState))
	sm.cond.Broadcast()
}

// invokeHandlers invokes all registered handlers with the previous and new
// states.
func (sm *StateMgr) invokeHandlers(prevState State, newState State) {
	for _, handler := range sm.handlers {
		if handler != nil {
			handler(prevState, newState)
		}
	}
}
