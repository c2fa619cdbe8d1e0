package arm

import (
	"context"
	"sync"
	"time"

	"github.com/venlet/go-armlink/link"
	"github.com/venlet/go-armlink/logger"
	"github.com/venlet/go-armlink/wire"
)

// reportBuffer is the capacity of each subscription channel returned by
// Reports. A subscriber that stops draining loses reports rather than
// stalling the read loop.
const reportBuffer = 16

// Arm is a high-level facade over a link to an arm controller. It renders
// typed operations into catalogue commands, parses the replies, and fans
// status ticks out to report subscribers.
//
// Create an Arm before opening the link so no early reports are missed,
// then open through the Arm or the underlying link:
//
//	l, _ := link.New(ctx, tr, nil)
//	a := arm.New(l)
//	if err := a.Open(ctx); err != nil { ... }
type Arm struct {
	link   *link.Link
	logger logger.Logger

	reportsMu   sync.Mutex
	subscribers []chan Report
	closed      bool
}

// New wraps an already constructed link.
func New(l *link.Link) *Arm {
	a := &Arm{
		link:   l,
		logger: l.GetLogger(),
	}
	l.OnStatus(a.dispatchReport)
	l.AddStateChangeHandler(func(_, newState link.State) {
		if newState == link.ClosedState {
			a.closeSubscribers()
		}
	})
	return a
}

// Link returns the underlying link, for raw sends and metrics.
func (a *Arm) Link() *link.Link { return a.link }

// Open opens the underlying link and blocks until the controller reports
// ready.
func (a *Arm) Open(ctx context.Context) error { return a.link.Open(ctx) }

// Close closes the underlying link. All report subscription channels are
// closed once the link goes down.
func (a *Arm) Close() error { return a.link.Close() }

// Reports returns a new buffered channel of parsed status reports. The
// channel closes when the link closes. Reports are dropped, not queued
// without bound, when the subscriber falls behind.
func (a *Arm) Reports() <-chan Report {
	ch := make(chan Report, reportBuffer)
	a.reportsMu.Lock()
	defer a.reportsMu.Unlock()
	if a.closed {
		close(ch)
		return ch
	}
	a.subscribers = append(a.subscribers, ch)
	return ch
}

func (a *Arm) dispatchReport(msg wire.Message) {
	r := ParseReport(msg)
	a.reportsMu.Lock()
	subs := a.subscribers
	a.reportsMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- r:
		default:
			a.logger.Warn("report subscriber full, dropping", "line", msg.Raw)
		}
	}
}

func (a *Arm) closeSubscribers() {
	a.reportsMu.Lock()
	defer a.reportsMu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	for _, ch := range a.subscribers {
		close(ch)
	}
	a.subscribers = nil
}

// exec sends a command, waits for its reply and validates the
// acknowledgment, returning the payload after "ok".
func (a *Arm) exec(ctx context.Context, command string) (string, error) {
	payload, err := a.link.Do(ctx, command)
	if err != nil {
		return "", err
	}
	return parseAck(payload)
}

// Motion. Speeds are feed rates in mm/min; non-positive values fall back
// to DefaultSpeed.

// MoveTo moves the effector to the absolute cartesian position (x, y, z).
func (a *Arm) MoveTo(ctx context.Context, x, y, z, speed float64) error {
	_, err := a.exec(ctx, G0(x, y, z, clampSpeed(speed)))
	return err
}

// MoveBy moves the effector by (dx, dy, dz) relative to where it is.
func (a *Arm) MoveBy(ctx context.Context, dx, dy, dz, speed float64) error {
	_, err := a.exec(ctx, G2204(dx, dy, dz, clampSpeed(speed)))
	return err
}

// MovePolar moves the effector to the absolute polar position.
func (a *Arm) MovePolar(ctx context.Context, stretch, rotation, height, speed float64) error {
	_, err := a.exec(ctx, G2201(stretch, rotation, height, clampSpeed(speed)))
	return err
}

// MoveJoint sets a single joint to the given angle in degrees.
func (a *Arm) MoveJoint(ctx context.Context, joint int, angle float64) error {
	_, err := a.exec(ctx, G2202(joint, angle))
	return err
}

// Dwell pauses the motion queue for the given duration. The pause happens
// on the controller, between queued moves; the call itself returns as soon
// as the command is acknowledged.
func (a *Arm) Dwell(ctx context.Context, d time.Duration) error {
	_, err := a.exec(ctx, G2004(durationMillis(d)))
	return err
}

// Effectors.

// Pump switches the suction pump on or off.
func (a *Arm) Pump(ctx context.Context, on bool) error {
	_, err := a.exec(ctx, M2231(on))
	return err
}

// Grip closes or opens the gripper.
func (a *Arm) Grip(ctx context.Context, closed bool) error {
	_, err := a.exec(ctx, M2232(closed))
	return err
}

// Buzz sounds the buzzer at freq Hz for the given duration.
func (a *Arm) Buzz(ctx context.Context, freq int, d time.Duration) error {
	_, err := a.exec(ctx, M2210(freq, durationMillis(d)))
	return err
}

// DigitalWrite drives a digital output pin high or low.
func (a *Arm) DigitalWrite(ctx context.Context, pin int, high bool) error {
	_, err := a.exec(ctx, M2240(pin, high))
	return err
}

// Motors and controller configuration.

// AttachMotors energizes all joint motors.
func (a *Arm) AttachMotors(ctx context.Context) error {
	_, err := a.exec(ctx, M17())
	return err
}

// DetachMotors releases all joint motors so the arm can be positioned by
// hand.
func (a *Arm) DetachMotors(ctx context.Context) error {
	_, err := a.exec(ctx, M2019())
	return err
}

// SetReportInterval asks the controller to push position reports at the
// given interval. Zero disables them.
func (a *Arm) SetReportInterval(ctx context.Context, interval time.Duration) error {
	_, err := a.exec(ctx, M2120(interval.Seconds()))
	return err
}

// SetWorkMode switches the controller's work mode.
func (a *Arm) SetWorkMode(ctx context.Context, mode WorkMode) error {
	_, err := a.exec(ctx, M2400(mode))
	return err
}

// Queries.

// Position reports the effector's cartesian position.
func (a *Arm) Position(ctx context.Context) (Position, error) {
	payload, err := a.exec(ctx, P2220())
	if err != nil {
		return Position{}, err
	}
	return parsePosition(payload)
}

// Polar reports the effector's polar position.
func (a *Arm) Polar(ctx context.Context) (Polar, error) {
	payload, err := a.exec(ctx, P2221())
	if err != nil {
		return Polar{}, err
	}
	return parsePolar(payload)
}

// JointAngle reports the current angle of a joint in degrees.
func (a *Arm) JointAngle(ctx context.Context, joint int) (float64, error) {
	payload, err := a.exec(ctx, P2206(joint))
	if err != nil {
		return 0, err
	}
	return fieldFloat(parseFields(payload), 'V')
}

// Moving reports whether the motion queue is still executing.
func (a *Arm) Moving(ctx context.Context) (bool, error) {
	payload, err := a.exec(ctx, M2200())
	if err != nil {
		return false, err
	}
	return fieldBool(parseFields(payload), 'V')
}

// LimitSwitch reports whether the limit switch is triggered.
func (a *Arm) LimitSwitch(ctx context.Context) (bool, error) {
	payload, err := a.exec(ctx, P2231())
	if err != nil {
		return false, err
	}
	return fieldBool(parseFields(payload), 'V')
}

// GripperState reports the gripper's actuator state.
func (a *Arm) GripperState(ctx context.Context) (ActuatorState, error) {
	return a.actuatorState(ctx, P2232())
}

// PumpState reports the pump's actuator state.
func (a *Arm) PumpState(ctx context.Context) (ActuatorState, error) {
	return a.actuatorState(ctx, P2233())
}

func (a *Arm) actuatorState(ctx context.Context, command string) (ActuatorState, error) {
	payload, err := a.exec(ctx, command)
	if err != nil {
		return ActuatorStopped, err
	}
	v, err := fieldInt(parseFields(payload), 'V')
	if err != nil {
		return ActuatorStopped, err
	}
	return ActuatorState(v), nil
}

// DigitalRead reports the level of a digital input pin.
func (a *Arm) DigitalRead(ctx context.Context, pin int) (bool, error) {
	payload, err := a.exec(ctx, P2240(pin))
	if err != nil {
		return false, err
	}
	return fieldBool(parseFields(payload), 'V')
}

// AnalogRead reports the value of an analog input pin.
func (a *Arm) AnalogRead(ctx context.Context, pin int) (int, error) {
	payload, err := a.exec(ctx, P2241(pin))
	if err != nil {
		return 0, err
	}
	return fieldInt(parseFields(payload), 'V')
}

// Info queries the controller's identity: name, hardware, firmware and API
// versions, and UID.
func (a *Arm) Info(ctx context.Context) (DeviceInfo, error) {
	var (
		info DeviceInfo
		err  error
	)
	if info.Name, err = a.exec(ctx, P2201()); err != nil {
		return DeviceInfo{}, err
	}
	if info.Hardware, err = a.execVersion(ctx, P2202()); err != nil {
		return DeviceInfo{}, err
	}
	if info.Firmware, err = a.execVersion(ctx, P2203()); err != nil {
		return DeviceInfo{}, err
	}
	if info.API, err = a.execVersion(ctx, P2204()); err != nil {
		return DeviceInfo{}, err
	}
	if info.UID, err = a.exec(ctx, P2205()); err != nil {
		return DeviceInfo{}, err
	}
	return info, nil
}

func (a *Arm) execVersion(ctx context.Context, command string) (string, error) {
	payload, err := a.exec(ctx, command)
	if err != nil {
		return "", err
	}
	return trimVersion(payload), nil
}

func clampSpeed(speed float64) float64 {
	if speed <= 0 {
		return DefaultSpeed
	}
	return speed
}
