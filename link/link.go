package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/venlet/go-armlink/internal/pool"
	"github.com/venlet/go-armlink/logger"
	"github.com/venlet/go-armlink/wire"
)

// Transport is the line-oriented byte layer under a Link.
//
// Open blocks until the underlying device handle is open, not until the
// controller is usable; readiness is the link's concern. Lines yields each
// received line with its terminator stripped; the channel closes when the
// transport fails or is closed, and Err then reports the terminal read
// error, nil on clean close. WriteLine writes one line, appending the
// terminator, and must be safe for concurrent use.
type Transport interface {
	Open(ctx context.Context) error
	WriteLine(line string) error
	Lines() <-chan string
	Err() error
	Close() error
}

// StatusHandler receives unsolicited status lines once the link is ready.
//
// Note: the handler is invoked in a blocking mode from the read loop. It
// must not wait for a reply to a command it issues; that reply cannot be
// processed until the handler returns.
type StatusHandler func(msg wire.Message)

// ErrorHandler receives link-level errors: device errors, protocol
// violations, and transport faults.
//
// Note: the handler is invoked in a blocking mode from the read loop; the
// same constraints as StatusHandler apply.
type ErrorHandler func(err error)

// Link is a single logical connection to an arm controller over a line
// transport.
//
// A Link is single-use: Open it once, Close it once. After Close, or after a
// transport fault, it cannot be reopened.
type Link struct {
	cfg    *Config
	tr     Transport
	logger logger.Logger

	stateMgr *StateMgr
	taskMgr  *taskManager

	// sendMu keeps message ids on the wire in allocation order.
	sendMu sync.Mutex
	nextID atomic.Uint64

	// handlersMu guards the observer slices; registration happens before
	// Open, invocation on the read loop.
	handlersMu     sync.Mutex
	statusHandlers []StatusHandler
	errorHandlers  []ErrorHandler

	pendings *xsync.MapOf[uint64, *Pending]

	opened  atomic.Bool
	closing atomic.Bool

	metrics LinkMetrics
}

// New creates a new Link over the given transport.
//
// cfg may be nil, in which case defaults are used. The returned link is in
// ClosedState until Open is called.
func New(ctx context.Context, tr Transport, cfg *Config) (*Link, error) {
	if tr == nil {
		return nil, errors.New("link: transport is nil")
	}

	if cfg == nil {
		var err error
		cfg, err = NewConfig()
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.dialect.Validate(); err != nil {
		return nil, err
	}

	l := &Link{
		cfg:      cfg,
		tr:       tr,
		logger:   cfg.logger,
		pendings: xsync.NewMapOf[uint64, *Pending](),
		taskMgr:  newTaskManager(ctx, cfg.logger),
	}
	l.stateMgr = NewStateMgr(cfg.logger)

	if cfg.statusHandler != nil {
		l.statusHandlers = append(l.statusHandlers, cfg.statusHandler)
	}
	if cfg.errorHandler != nil {
		l.errorHandlers = append(l.errorHandlers, cfg.errorHandler)
	}

	return l, nil
}

// OnStatus adds handlers for unsolicited status lines. Register before
// Open.
func (l *Link) OnStatus(handlers ...StatusHandler) {
	l.handlersMu.Lock()
	defer l.handlersMu.Unlock()

	for _, h := range handlers {
		if h != nil {
			l.statusHandlers = append(l.statusHandlers, h)
		}
	}
}

// OnError adds handlers for link-level errors: device errors, protocol
// violations, and transport faults. Register before Open.
func (l *Link) OnError(handlers ...ErrorHandler) {
	l.handlersMu.Lock()
	defer l.handlersMu.Unlock()

	for _, h := range handlers {
		if h != nil {
			l.errorHandlers = append(l.errorHandlers, h)
		}
	}
}

// State returns the current link state.
func (l *Link) State() State {
	return l.stateMgr.State()
}

// AddStateChangeHandler adds one or more handlers invoked on every link
// state change.
func (l *Link) AddStateChangeHandler(handlers ...StateChangeHandler) {
	l.stateMgr.AddHandler(handlers...)
}

// GetMetrics returns the metrics associated with the link.
func (l *Link) GetMetrics() *LinkMetrics {
	return &l.metrics
}

// GetLogger returns the logger associated with the link.
func (l *Link) GetLogger() logger.Logger {
	return l.logger
}

// Open opens the transport and blocks until the controller announces
// readiness.
//
// Open means usable: it resolves once the readiness sentinel line is
// observed, not merely once the device handle exists. Boot banner lines
// received meanwhile are dropped. If readiness is not reached before the
// open timeout (or ctx is done first), the link is torn down and the error
// returned.
func (l *Link) Open(ctx context.Context) error {
	if !l.opened.CompareAndSwap(false, true) {
		return ErrAlreadyOpened
	}

	if err := l.stateMgr.ToOpening(); err != nil {
		return err
	}

	openCtx := ctx
	if l.cfg.openTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, l.cfg.openTimeout)
		defer cancel()
	}

	if err := l.tr.Open(openCtx); err != nil {
		l.stateMgr.ToClosed()

		return fmt.Errorf("%w: open: %v", ErrTransport, err)
	}

	if err := l.stateMgr.ToAwaitingReady(); err != nil {
		l.teardown(ErrClosed)

		return err
	}

	l.logger.Debug("transport open, awaiting readiness", "sentinel", l.cfg.dialect.ReadySentinel)

	l.taskMgr.start("readLoop", l.readLoopIteration, func() {
		l.teardown(ErrClosed)
	})

	if err := l.stateMgr.WaitState(openCtx, ReadyState); err != nil {
		l.teardown(ErrClosed)

		return fmt.Errorf("link: wait ready: %w", err)
	}

	return nil
}

// Close closes the link: the transport is closed, the read loop stopped, and
// every still-pending request settled with ErrClosed.
//
// Close is idempotent. It returns an error only when the read loop fails to
// stop within the close timeout.
func (l *Link) Close() error {
	l.teardown(ErrClosed)

	done := make(chan struct{})
	go func() {
		l.taskMgr.wait()
		close(done)
	}()

	closeTimer := pool.GetTimer(l.cfg.closeTimeout)
	defer pool.PutTimer(closeTimer)

	select {
	case <-done:
		l.logger.Debug("link closed")
		return nil

	case <-closeTimer.C:
		l.logger.Error("close link timeout",
			"timeout", l.cfg.closeTimeout,
			"task_count", l.taskMgr.taskCount())

		return errors.New("link: close timeout")
	}
}

// Send frames the command with the next message id, writes it through the
// transport, and returns the pending handle that settles when the reply (or
// a correlated error line) arrives.
//
// Ids are strictly increasing from 1 and never reused. Send fails with
// ErrNotReady unless the link is in ReadyState; the command is then never
// written. A write failure is a transport fault and tears the link down.
func (l *Link) Send(command string) (*Pending, error) {
	if !l.stateMgr.IsReady() {
		return nil, ErrNotReady
	}

	p, err := l.writeCommand(command)
	if err != nil {
		fault := fmt.Errorf("%w: write: %v", ErrTransport, err)
		l.logger.Error("command write failed", "command", command, "error", err)
		l.notifyError(fault)
		l.teardown(fault)

		return nil, fault
	}

	return p, nil
}

// Do sends the command and waits for its reply, returning the reply payload.
//
// When a reply timeout is configured it bounds the wait; on timeout the
// request stays pending and a late reply still settles its handle. Without
// one, Do waits until ctx is done.
func (l *Link) Do(ctx context.Context, command string) (string, error) {
	p, err := l.Send(command)
	if err != nil {
		return "", err
	}

	if t := l.cfg.replyTimeout; t > 0 {
		timer := pool.GetTimer(t)
		defer pool.PutTimer(timer)

		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-timer.C:
			l.logger.Warn("reply timeout", "id", p.ID(), "command", p.Command(), "timeout", t)
			return "", ErrReplyTimeout

		case <-p.Done():
			return p.Result()
		}
	}

	return p.Wait(ctx)
}

// writeCommand allocates the next id, registers the pending entry, and
// writes the framed line. Registration precedes the write so a reply cannot
// arrive before its entry exists; the send lock keeps ids on the wire in
// allocation order. The inflight gauge counts table entries: it rises with
// the store and falls only with the removal, wherever that happens.
func (l *Link) writeCommand(command string) (*Pending, error) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	id := l.nextID.Add(1)
	p := newPending(id, command)
	l.pendings.Store(id, p)
	l.metrics.incInflightGauge()

	if err := l.tr.WriteLine(l.cfg.dialect.Frame(id, command)); err != nil {
		// A concurrent teardown may have removed and settled the entry
		// while the write was failing. Only the remover decrements.
		if _, ok := l.pendings.LoadAndDelete(id); ok {
			l.metrics.decInflightGauge()
		}

		return nil, err
	}

	l.metrics.incLineSendCount()
	l.logger.Debug("command sent", "id", id, "command", command)

	return p, nil
}

// --- Read loop ---

// readLoopIteration consumes one inbound line. Lines are processed strictly
// one at a time: classification for a line completes before the next is
// taken.
func (l *Link) readLoopIteration() bool {
	select {
	case <-l.taskMgr.context().Done():
		return false

	case raw, ok := <-l.tr.Lines():
		if !ok {
			l.handleTransportDown()
			return false
		}

		l.handleLine(raw)

		return true
	}
}

// handleTransportDown reacts to the transport's line stream ending without
// Close having been called.
func (l *Link) handleTransportDown() {
	if l.closing.Load() {
		return
	}

	cause := ErrClosed
	if err := l.tr.Err(); err != nil {
		cause = fmt.Errorf("%w: read: %v", ErrTransport, err)
		l.logger.Error("transport failed", "error", err)
		l.notifyError(cause)
	} else {
		l.logger.Debug("transport closed by peer")
	}

	l.teardown(cause)
}

// handleLine routes one inbound line: boot banner gating before readiness,
// classification after.
func (l *Link) handleLine(raw string) {
	if raw == "" {
		return
	}

	l.metrics.incLineRecvCount()

	if !l.stateMgr.IsReady() {
		if raw == l.cfg.dialect.ReadySentinel {
			if err := l.stateMgr.ToReady(); err != nil {
				l.logger.Warn("readiness sentinel in unexpected state", "state", l.State(), "error", err)
				return
			}

			l.logger.Debug("controller ready", "sentinel", raw)

			return
		}

		l.metrics.incBannerDropCount()
		l.logger.Debug("boot banner dropped", "line", raw)

		return
	}

	msg, err := l.cfg.dialect.Parse(raw)
	if err != nil {
		l.protocolViolation("unclassifiable line", raw)
		return
	}

	switch msg.Kind {
	case wire.KindReply:
		l.handleReply(msg)
	case wire.KindError:
		l.handleError(msg)
	case wire.KindStatus:
		l.handleStatus(msg)
	default:
	}
}

// handleReply settles the pending request the reply references. Replies can
// never be unsolicited: an id with no pending request is a protocol
// violation.
func (l *Link) handleReply(msg wire.Message) {
	if !msg.HasID {
		l.protocolViolation("reply without id", msg.Raw)
		return
	}

	p, ok := l.pendings.LoadAndDelete(msg.ID)
	if !ok {
		// During teardown the dropper may win the removal; the reply
		// then references an entry that was just legitimately settled.
		if l.closing.Load() {
			return
		}

		l.protocolViolation("reply references no pending request", msg.Raw)
		return
	}

	l.metrics.incReplyCount()
	l.metrics.decInflightGauge()
	l.settlePending(p, msg.Payload, nil)
}

// handleError classifies an error line against the fault table, settles the
// referenced pending request when one exists, and always notifies the error
// handler: request failure and link-level reporting are orthogonal. An error
// id with no pending request is a link-level fault, not a violation.
func (l *Link) handleError(msg wire.Message) {
	fault := wire.ClassifyFault(msg.Payload)
	l.metrics.incDeviceErrCount()

	if msg.HasID {
		if p, ok := l.pendings.LoadAndDelete(msg.ID); ok {
			l.metrics.decInflightGauge()
			l.settlePending(p, "", fault)
		}
	}

	l.logger.Warn("device error", "code", fault.Code, "kind", fault.Kind.String(), "line", msg.Raw)
	l.notifyError(fault)
}

// handleStatus forwards an unsolicited status line to the status handlers.
// Status lines never touch the pending table; a repeated readiness sentinel
// lands here as an ordinary status tick.
func (l *Link) handleStatus(msg wire.Message) {
	l.metrics.incStatusCount()

	l.handlersMu.Lock()
	handlers := append([]StatusHandler(nil), l.statusHandlers...)
	l.handlersMu.Unlock()

	for _, h := range handlers {
		l.invokeHandler("statusHandler", func() { h(msg) })
	}
}

// --- Failure plumbing ---

// protocolViolation records a recoverable protocol violation: counted,
// logged, reported to the error handler. Processing continues and the
// pending table is untouched.
func (l *Link) protocolViolation(reason string, raw string) {
	l.metrics.incProtocolErrCount()
	l.logger.Warn("protocol violation", "reason", reason, "line", raw)
	l.notifyError(&ProtocolError{Reason: reason, Line: raw})
}

// settlePending settles p and reports a double settlement as a programming
// error. Removal from the pending table is the settlement gate, so this
// firing means the gate was bypassed.
func (l *Link) settlePending(p *Pending, payload string, err error) {
	if !p.settle(payload, err) {
		l.logger.Error("pending request settled twice", "id", p.ID(), "command", p.Command())
	}
}

// teardown moves the link to ClosedState, closes the transport, stops the
// read loop, and settles every pending request with cause. Only the first
// call acts.
func (l *Link) teardown(cause error) {
	if !l.closing.CompareAndSwap(false, true) {
		return
	}

	l.stateMgr.ToClosed()

	if err := l.tr.Close(); err != nil {
		l.logger.Debug("transport close", "error", err)
	}

	l.taskMgr.stop()
	l.dropAllPendings(cause)
}

// dropAllPendings removes and settles every pending request with cause.
//
// Removal goes entry by entry through LoadAndDelete: the read loop and a
// failing sender may still be racing for the same entries, and only the
// winner of the removal settles and decrements the gauge.
func (l *Link) dropAllPendings(cause error) {
	var ids []uint64
	l.pendings.Range(func(id uint64, _ *Pending) bool {
		ids = append(ids, id)
		return true
	})

	for _, id := range ids {
		if p, ok := l.pendings.LoadAndDelete(id); ok {
			l.metrics.decInflightGauge()
			l.settlePending(p, "", cause)
		}
	}
}

// notifyError delivers a link-level error to the error handlers.
func (l *Link) notifyError(err error) {
	l.handlersMu.Lock()
	handlers := append([]ErrorHandler(nil), l.errorHandlers...)
	l.handlersMu.Unlock()

	for _, h := range handlers {
		l.invokeHandler("errorHandler", func() { h(err) })
	}
}

// invokeHandler calls a user handler with panic protection.
func (l *Link) invokeHandler(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic in handler", "name", name, "panic", r)
		}
	}()

	fn()
}
