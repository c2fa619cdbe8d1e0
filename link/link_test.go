package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/venlet/go-armlink/logger"
	"github.com/venlet/go-armlink/wire"
)

type fakeTransport struct {
	mu      sync.Mutex
	written []string
	readErr error

	lines    chan string
	openErr  error
	writeErr error
	closed   atomic.Bool
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{lines: make(chan string, 64)}
}

func (t *fakeTransport) Open(ctx context.Context) error { return t.openErr }

func (t *fakeTransport) WriteLine(line string) error {
	if t.writeErr != nil {
		return t.writeErr
	}
	t.mu.Lock()
	t.written = append(t.written, line)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Lines() <-chan string { return t.lines }

func (t *fakeTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readErr
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.CompareAndSwap(false, true) {
		close(t.lines)
	}
	return nil
}

// push delivers an inbound line to the read loop. Lines pushed after close
// are dropped.
func (t *fakeTransport) push(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed.Load() {
		t.lines <- line
	}
}

// failRead simulates the read side dying with err.
func (t *fakeTransport) failRead(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readErr = err
	if t.closed.CompareAndSwap(false, true) {
		close(t.lines)
	}
}

func (t *fakeTransport) writtenLines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.written...)
}

// blockingTransport gates WriteLine so a test can hold a send mid-write.
type blockingTransport struct {
	*fakeTransport
	entered chan struct{}
	release chan struct{}
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		fakeTransport: newFakeTransport(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

// WriteLine signals entry, blocks until released, and then fails the way a
// write on a closed port does.
func (t *blockingTransport) WriteLine(line string) error {
	close(t.entered)
	<-t.release
	return errors.New("write /dev/ttyUSB0: file already closed")
}

type errCapture struct {
	mu   sync.Mutex
	errs []error
}

func (c *errCapture) capture(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *errCapture) all() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

func (c *errCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

type statusCapture struct {
	mu   sync.Mutex
	msgs []wire.Message
}

func (c *statusCapture) capture(msg wire.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func (c *statusCapture) all() []wire.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.Message(nil), c.msgs...)
}

func (c *statusCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func settled(p *Pending) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

// newTestLink opens a link against a fake transport and drives it to ready.
func newTestLink(t *testing.T, opts ...Option) (*Link, *fakeTransport) {
	t.Helper()
	require := require.New(t)

	tr := newFakeTransport()
	cfg, err := NewConfig(append([]Option{WithOpenTimeout(time.Second)}, opts...)...)
	require.NoError(err)

	l, err := New(context.Background(), tr, cfg)
	require.NoError(err)

	openErr := make(chan error, 1)
	go func() { openErr <- l.Open(context.Background()) }()

	require.Eventually(func() bool { return l.State() == AwaitingReadyState },
		time.Second, time.Millisecond)
	tr.push("@1")
	require.NoError(<-openErr)
	require.Equal(ReadyState, l.State())

	t.Cleanup(func() { _ = l.Close() })
	return l, tr
}

func TestNewLink(t *testing.T) {
	require := require.New(t)

	_, err := New(context.Background(), nil, nil)
	require.Error(err)

	l, err := New(context.Background(), newFakeTransport(), nil)
	require.NoError(err)
	require.Equal(ClosedState, l.State())
	require.NotNil(l.GetMetrics())
	require.NotNil(l.GetLogger())
}

func TestLinkOpen_ReadinessGating(t *testing.T) {
	require := require.New(t)

	tr := newFakeTransport()
	l, err := New(context.Background(), tr, nil)
	require.NoError(err)

	openErr := make(chan error, 1)
	go func() { openErr <- l.Open(context.Background()) }()

	require.Eventually(func() bool { return l.State() == AwaitingReadyState },
		time.Second, time.Millisecond)

	// Boot banners arrive before the ready sentinel and must not
	// surface anywhere.
	tr.push("uArm SwiftPro")
	tr.push("V4.5.0")
	tr.push("@1")

	require.NoError(<-openErr)
	require.Equal(ReadyState, l.State())
	require.Equal(uint64(2), l.GetMetrics().BannerDropCount.Load())
	require.Equal(uint64(3), l.GetMetrics().LineRecvCount.Load())

	require.NoError(l.Close())
}

func TestLinkOpen_Timeout(t *testing.T) {
	require := require.New(t)

	tr := newFakeTransport()
	cfg, err := NewConfig(WithOpenTimeout(50 * time.Millisecond))
	require.NoError(err)

	l, err := New(context.Background(), tr, cfg)
	require.NoError(err)

	// The device never reports ready.
	err = l.Open(context.Background())
	require.ErrorIs(err, context.DeadlineExceeded)
	require.Equal(ClosedState, l.State())
}

func TestLinkOpen_TransportError(t *testing.T) {
	require := require.New(t)

	tr := newFakeTransport()
	tr.openErr = errors.New("open /dev/ttyUSB0: no such file or directory")

	l, err := New(context.Background(), tr, nil)
	require.NoError(err)

	err = l.Open(context.Background())
	require.ErrorIs(err, ErrTransport)
	require.Equal(ClosedState, l.State())
}

func TestLinkOpen_AlreadyOpened(t *testing.T) {
	require := require.New(t)

	l, _ := newTestLink(t)
	require.ErrorIs(l.Open(context.Background()), ErrAlreadyOpened)
}

func TestLinkSend_NotReady(t *testing.T) {
	require := require.New(t)

	l, err := New(context.Background(), newFakeTransport(), nil)
	require.NoError(err)

	_, err = l.Send("P2220")
	require.ErrorIs(err, ErrNotReady)
}

func TestLinkSend_SequentialIDs(t *testing.T) {
	require := require.New(t)

	l, tr := newTestLink(t)

	p1, err := l.Send("P2220")
	require.NoError(err)
	p2, err := l.Send("P2221")
	require.NoError(err)
	p3, err := l.Send("M2019")
	require.NoError(err)

	require.Equal(uint64(1), p1.ID())
	require.Equal(uint64(2), p2.ID())
	require.Equal(uint64(3), p3.ID())
	require.Equal([]string{"$1 P2220", "$2 P2221", "$3 M2019"}, tr.writtenLines())
	require.Equal(uint64(3), l.GetMetrics().LineSendCount.Load())
	require.Equal(int64(3), l.GetMetrics().InflightGauge.Load())
}

func TestLinkDo_ResolvesReply(t *testing.T) {
	require := require.New(t)

	l, tr := newTestLink(t)

	type doResult struct {
		payload string
		err     error
	}
	resCh := make(chan doResult, 1)
	go func() {
		payload, err := l.Do(context.Background(), "P2220")
		resCh <- doResult{payload, err}
	}()

	require.Eventually(func() bool { return len(tr.writtenLines()) == 1 },
		time.Second, time.Millisecond)
	require.Equal("$1 P2220", tr.writtenLines()[0])

	tr.push("refer:1 ok X10.0000 Y20.0000 Z30.0000")

	res := <-resCh
	require.NoError(res.err)
	require.Equal("ok X10.0000 Y20.0000 Z30.0000", res.payload)
	require.Equal(uint64(1), l.GetMetrics().ReplyCount.Load())
	require.Equal(int64(0), l.GetMetrics().InflightGauge.Load())
}

func TestLink_OutOfOrderReplies(t *testing.T) {
	require := require.New(t)

	l, tr := newTestLink(t)

	p1, err := l.Send("P2220")
	require.NoError(err)
	p2, err := l.Send("P2200")
	require.NoError(err)

	// The second request resolves first.
	tr.push("refer:2 ok V4.5.0")
	require.Eventually(func() bool { return settled(p2) }, time.Second, time.Millisecond)
	require.False(settled(p1))
	_, err = p1.Result()
	require.ErrorIs(err, ErrNotSettled)

	tr.push("refer:1 ok X10.0000 Y20.0000 Z30.0000")
	require.Eventually(func() bool { return settled(p1) }, time.Second, time.Millisecond)

	payload, err := p1.Result()
	require.NoError(err)
	require.Equal("ok X10.0000 Y20.0000 Z30.0000", payload)

	payload, err = p2.Result()
	require.NoError(err)
	require.Equal("ok V4.5.0", payload)
}

func TestLink_UnknownReplyID(t *testing.T) {
	require := require.New(t)

	errs := &errCapture{}
	l, tr := newTestLink(t, WithErrorHandler(errs.capture))

	tr.push("refer:99 ok")
	require.Eventually(func() bool { return errs.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(uint64(1), l.GetMetrics().ProtocolErrCount.Load())

	var perr *ProtocolError
	require.ErrorAs(errs.all()[0], &perr)
	require.Equal("refer:99 ok", perr.Line)

	// The link keeps running after a violation.
	p, err := l.Send("P2220")
	require.NoError(err)
	tr.push("refer:1 ok X0.0000 Y0.0000 Z0.0000")
	require.Eventually(func() bool { return settled(p) }, time.Second, time.Millisecond)

	payload, err := p.Result()
	require.NoError(err)
	require.Equal("ok X0.0000 Y0.0000 Z0.0000", payload)
}

func TestLink_ReplyWithoutID(t *testing.T) {
	require := require.New(t)

	errs := &errCapture{}
	l, tr := newTestLink(t, WithErrorHandler(errs.capture))

	tr.push("refer: ok")
	require.Eventually(func() bool { return errs.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(uint64(1), l.GetMetrics().ProtocolErrCount.Load())

	var perr *ProtocolError
	require.ErrorAs(errs.all()[0], &perr)
	require.Equal("refer: ok", perr.Line)
}

func TestLink_ErrorLine_SettlesPending(t *testing.T) {
	require := require.New(t)

	errs := &errCapture{}
	l, tr := newTestLink(t, WithErrorHandler(errs.capture))

	var pendings []*Pending
	for i := 0; i < 7; i++ {
		p, err := l.Send("M2231 V1")
		require.NoError(err)
		pendings = append(pendings, p)
	}
	require.Equal(uint64(7), pendings[6].ID())

	tr.push("E7 21")
	require.Eventually(func() bool { return settled(pendings[6]) }, time.Second, time.Millisecond)

	_, err := pendings[6].Result()
	var derr *wire.DeviceError
	require.ErrorAs(err, &derr)
	require.Equal(21, derr.Code)
	require.Equal(wire.FaultParameter, derr.Kind)

	// The fault also reaches the link-level observer.
	require.Eventually(func() bool { return errs.count() == 1 }, time.Second, time.Millisecond)
	require.ErrorAs(errs.all()[0], &derr)
	require.Equal(21, derr.Code)

	require.Equal(uint64(1), l.GetMetrics().DeviceErrCount.Load())
	require.Equal(int64(6), l.GetMetrics().InflightGauge.Load())
	for _, p := range pendings[:6] {
		require.False(settled(p))
	}
}

func TestLink_ErrorLine_UnknownCode(t *testing.T) {
	require := require.New(t)

	l, tr := newTestLink(t)

	p, err := l.Send("M2400 S3")
	require.NoError(err)

	tr.push("E1 47")
	require.Eventually(func() bool { return settled(p) }, time.Second, time.Millisecond)

	_, err = p.Result()
	var derr *wire.DeviceError
	require.ErrorAs(err, &derr)
	require.Equal(47, derr.Code)
	require.Equal(wire.FaultUnknown, derr.Kind)
	require.True(derr.Unclassified())
}

func TestLink_ErrorLine_Uncorrelated(t *testing.T) {
	require := require.New(t)

	errs := &errCapture{}
	l, tr := newTestLink(t, WithErrorHandler(errs.capture))

	tr.push("E 24")
	require.Eventually(func() bool { return errs.count() == 1 }, time.Second, time.Millisecond)

	var derr *wire.DeviceError
	require.ErrorAs(errs.all()[0], &derr)
	require.Equal(24, derr.Code)
	require.Equal(wire.FaultPower, derr.Kind)

	require.Equal(uint64(1), l.GetMetrics().DeviceErrCount.Load())
	require.Equal(uint64(0), l.GetMetrics().ProtocolErrCount.Load())
}

func TestLink_StatusLines(t *testing.T) {
	require := require.New(t)

	status := &statusCapture{}
	l, tr := newTestLink(t, WithStatusHandler(status.capture))

	tr.push("@3 X100.0000 Y0.0000 Z50.0000")
	// The sentinel after readiness is an ordinary status tick.
	tr.push("@1")
	require.Eventually(func() bool { return status.count() == 2 }, time.Second, time.Millisecond)

	msgs := status.all()
	require.Equal(wire.KindStatus, msgs[0].Kind)
	require.Equal(uint64(3), msgs[0].ID)
	require.Equal("X100.0000 Y0.0000 Z50.0000", msgs[0].Payload)
	require.Equal(uint64(1), msgs[1].ID)
	require.Equal("", msgs[1].Payload)

	require.Equal(uint64(2), l.GetMetrics().StatusCount.Load())
}

func TestLink_MalformedLine(t *testing.T) {
	require := require.New(t)

	errs := &errCapture{}
	l, tr := newTestLink(t, WithErrorHandler(errs.capture))

	tr.push("start")
	require.Eventually(func() bool { return errs.count() == 1 }, time.Second, time.Millisecond)

	var perr *ProtocolError
	require.ErrorAs(errs.all()[0], &perr)
	require.Equal("start", perr.Line)
	require.Equal(uint64(1), l.GetMetrics().ProtocolErrCount.Load())
	require.Equal(ReadyState, l.State())
}

func TestLink_EmptyLinesSkipped(t *testing.T) {
	require := require.New(t)

	status := &statusCapture{}
	l, tr := newTestLink(t, WithStatusHandler(status.capture))

	tr.push("")
	tr.push("@4 B0 V1")
	require.Eventually(func() bool { return status.count() == 1 }, time.Second, time.Millisecond)

	// The sentinel from open plus the status line. The blank line is
	// a serial framing artifact and is not counted.
	require.Equal(uint64(2), l.GetMetrics().LineRecvCount.Load())
}

func TestLinkClose(t *testing.T) {
	require := require.New(t)

	l, _ := newTestLink(t)

	p, err := l.Send("P2220")
	require.NoError(err)

	require.NoError(l.Close())
	require.Equal(ClosedState, l.State())

	require.True(settled(p))
	_, err = p.Result()
	require.ErrorIs(err, ErrClosed)
	require.Equal(int64(0), l.GetMetrics().InflightGauge.Load())

	// Close is idempotent, and the link stays unusable.
	require.NoError(l.Close())
	_, err = l.Send("P2220")
	require.ErrorIs(err, ErrNotReady)
}

func TestLinkClose_DuringBlockedWrite(t *testing.T) {
	require := require.New(t)

	tr := newBlockingTransport()
	l, err := New(context.Background(), tr, nil)
	require.NoError(err)

	openErr := make(chan error, 1)
	go func() { openErr <- l.Open(context.Background()) }()
	require.Eventually(func() bool { return l.State() == AwaitingReadyState },
		time.Second, time.Millisecond)
	tr.push("@1")
	require.NoError(<-openErr)

	// The send registers its entry, then hangs inside the transport write.
	sendErr := make(chan error, 1)
	go func() {
		_, err := l.Send("P2220")
		sendErr <- err
	}()
	<-tr.entered

	require.NoError(l.Close())
	close(tr.release)

	require.ErrorIs(<-sendErr, ErrTransport)
	require.Equal(ClosedState, l.State())
	require.Equal(int64(0), l.GetMetrics().InflightGauge.Load())
	require.Equal(uint64(0), l.GetMetrics().LineSendCount.Load())
}

func TestLinkClose_RacesInboundReply(t *testing.T) {
	require := require.New(t)

	ml := logger.NewMockLogger()
	for _, method := range []string{"Debug", "Info", "Warn", "Error"} {
		ml.On(method, mock.Anything, mock.Anything).Return()
	}

	l, tr := newTestLink(t, WithLogger(ml))

	p, err := l.Send("P2220")
	require.NoError(err)

	// The reply and the close contend for the same entry; whichever side
	// removes it from the table is the one that settles it.
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		tr.push("refer:1 ok X10.0000 Y20.0000 Z30.0000")
	}()
	go func() {
		defer wg.Done()
		<-start
		_ = l.Close()
	}()
	close(start)
	wg.Wait()

	require.True(settled(p))
	payload, err := p.Result()
	if err != nil {
		require.ErrorIs(err, ErrClosed)
	} else {
		require.Equal("ok X10.0000 Y20.0000 Z30.0000", payload)
	}

	require.Equal(int64(0), l.GetMetrics().InflightGauge.Load())
	require.Equal(uint64(0), l.GetMetrics().ProtocolErrCount.Load())
	ml.AssertNotCalled(t, "Error", "pending request settled twice", mock.Anything)
}

func TestLink_TransportFailure(t *testing.T) {
	require := require.New(t)

	errs := &errCapture{}
	l, tr := newTestLink(t, WithErrorHandler(errs.capture))

	p, err := l.Send("P2220")
	require.NoError(err)

	tr.failRead(errors.New("read /dev/ttyUSB0: input/output error"))

	require.Eventually(func() bool { return l.State() == ClosedState },
		time.Second, time.Millisecond)
	require.True(settled(p))

	_, err = p.Result()
	require.ErrorIs(err, ErrTransport)

	require.Eventually(func() bool { return errs.count() >= 1 }, time.Second, time.Millisecond)
	require.ErrorIs(errs.all()[0], ErrTransport)
}

func TestLink_WriteFailure(t *testing.T) {
	require := require.New(t)

	l, tr := newTestLink(t)

	tr.writeErr = errors.New("write /dev/ttyUSB0: broken pipe")

	_, err := l.Send("G0 X180.0000 Y0.0000 Z150.0000 F5000")
	require.ErrorIs(err, ErrTransport)

	require.Eventually(func() bool { return l.State() == ClosedState },
		time.Second, time.Millisecond)
	require.Equal(uint64(0), l.GetMetrics().LineSendCount.Load())
	require.Equal(int64(0), l.GetMetrics().InflightGauge.Load())
}

func TestLink_ReplyTimeout(t *testing.T) {
	require := require.New(t)

	l, tr := newTestLink(t, WithReplyTimeout(30*time.Millisecond))

	_, err := l.Do(context.Background(), "P2220")
	require.ErrorIs(err, ErrReplyTimeout)

	// The request stays registered, so the late reply settles it
	// without raising a violation.
	tr.push("refer:1 ok X10.0000 Y20.0000 Z30.0000")
	require.Eventually(func() bool { return l.GetMetrics().ReplyCount.Load() == 1 },
		time.Second, time.Millisecond)
	require.Equal(uint64(0), l.GetMetrics().ProtocolErrCount.Load())
	require.Equal(int64(0), l.GetMetrics().InflightGauge.Load())
}

func TestLink_StateChangeHandler(t *testing.T) {
	require := require.New(t)

	type change struct{ prev, next State }

	var mu sync.Mutex
	var changes []change

	tr := newFakeTransport()
	l, err := New(context.Background(), tr, nil)
	require.NoError(err)
	l.AddStateChangeHandler(func(prevState State, newState State) {
		mu.Lock()
		changes = append(changes, change{prevState, newState})
		mu.Unlock()
	})

	openErr := make(chan error, 1)
	go func() { openErr <- l.Open(context.Background()) }()

	require.Eventually(func() bool { return l.State() == AwaitingReadyState },
		time.Second, time.Millisecond)
	tr.push("@1")
	require.NoError(<-openErr)
	require.NoError(l.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Equal([]change{
		{ClosedState, OpeningState},
		{OpeningState, AwaitingReadyState},
		{AwaitingReadyState, ReadyState},
		{ReadyState, ClosedState},
	}, changes)
}

func TestLink_ObserverRegistration(t *testing.T) {
	require := require.New(t)

	status1 := &statusCapture{}
	status2 := &statusCapture{}
	errs := &errCapture{}

	tr := newFakeTransport()
	l, err := New(context.Background(), tr, nil)
	require.NoError(err)

	l.OnStatus(status1.capture, status2.capture)
	l.OnError(errs.capture)
	l.OnError(nil) // ignored

	openErr := make(chan error, 1)
	go func() { openErr <- l.Open(context.Background()) }()

	require.Eventually(func() bool { return l.State() == AwaitingReadyState },
		time.Second, time.Millisecond)
	tr.push("@1")
	require.NoError(<-openErr)
	t.Cleanup(func() { _ = l.Close() })

	tr.push("@3 X1.0 Y2.0 Z3.0")
	tr.push("refer:9 ok")

	require.Eventually(func() bool { return status1.count() == 1 && status2.count() == 1 },
		time.Second, time.Millisecond)
	require.Eventually(func() bool { return errs.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(status1.all(), status2.all())
}

func TestLink_TickDialect(t *testing.T) {
	require := require.New(t)

	tr := newFakeTransport()
	cfg, err := NewConfig(WithDialect(wire.TickDialect))
	require.NoError(err)

	l, err := New(context.Background(), tr, cfg)
	require.NoError(err)

	openErr := make(chan error, 1)
	go func() { openErr <- l.Open(context.Background()) }()

	require.Eventually(func() bool { return l.State() == AwaitingReadyState },
		time.Second, time.Millisecond)
	tr.push("tick: ready")
	require.NoError(<-openErr)
	t.Cleanup(func() { _ = l.Close() })

	p, err := l.Send("M114")
	require.NoError(err)
	require.Equal([]string{"gcode:1 M114"}, tr.writtenLines())

	tr.push("gcode:1 ok C: X:100.00 Y:0.00 Z:50.00")
	require.Eventually(func() bool { return settled(p) }, time.Second, time.Millisecond)

	payload, err := p.Result()
	require.NoError(err)
	require.Equal("ok C: X:100.00 Y:0.00 Z:50.00", payload)
}

func TestLink_ViolationLogsWarning(t *testing.T) {
	require := require.New(t)

	ml := logger.NewMockLogger()
	for _, method := range []string{"Debug", "Info", "Warn", "Error"} {
		ml.On(method, mock.Anything, mock.Anything).Return()
	}

	l, tr := newTestLink(t, WithLogger(ml))

	tr.push("start")
	require.Eventually(func() bool { return l.GetMetrics().ProtocolErrCount.Load() == 1 },
		time.Second, time.Millisecond)

	ml.AssertCalled(t, "Warn", "protocol violation", mock.Anything)
}
