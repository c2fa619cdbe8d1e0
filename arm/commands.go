package arm

import (
	"fmt"
	"time"
)

// WorkMode selects the end-effector profile the controller plans motion for.
type WorkMode uint8

const (
	ModeSuction WorkMode = iota // suction cup, the factory default
	ModeLaser
	ModePrinter
	ModePen
)

// String returns the name of the work mode.
func (m WorkMode) String() string {
	switch m {
	case ModeSuction:
		return "suction"
	case ModeLaser:
		return "laser"
	case ModePrinter:
		return "printer"
	case ModePen:
		return "pen"
	default:
		return "unknown"
	}
}

// DefaultSpeed is the feed rate, in mm/min, the Arm facade uses for motion
// commands when the caller passes a non-positive speed.
const DefaultSpeed = 1000

// Coordinates are rendered with four decimals and feed rates without any,
// matching what the firmware parser expects.

// G0 creates an absolute cartesian move to (x, y, z) mm at the given feed
// rate in mm/min.
func G0(x, y, z, speed float64) string {
	return fmt.Sprintf("G0 X%.4f Y%.4f Z%.4f F%.0f", x, y, z, speed)
}

// G2004 creates a dwell command pausing the motion queue for the given
// number of milliseconds.
func G2004(ms int) string {
	return fmt.Sprintf("G2004 P%d", ms)
}

// G2201 creates an absolute polar move: stretch and height in mm, rotation
// in degrees, feed rate in mm/min.
func G2201(stretch, rotation, height, speed float64) string {
	return fmt.Sprintf("G2201 S%.4f R%.4f H%.4f F%.0f", stretch, rotation, height, speed)
}

// G2202 creates a single-joint move setting joint n to the given angle in
// degrees.
func G2202(n int, angle float64) string {
	return fmt.Sprintf("G2202 N%d V%.2f", n, angle)
}

// G2204 creates a relative cartesian move by (dx, dy, dz) mm at the given
// feed rate in mm/min.
func G2204(dx, dy, dz, speed float64) string {
	return fmt.Sprintf("G2204 X%.4f Y%.4f Z%.4f F%.0f", dx, dy, dz, speed)
}

// M17 creates the command that energizes all joint motors.
func M17() string { return "M17" }

// M2019 creates the command that releases all joint motors so the arm can
// be moved by hand.
func M2019() string { return "M2019" }

// M2120 creates the command that sets the position report interval in
// seconds. Zero stops the reports.
func M2120(seconds float64) string {
	return fmt.Sprintf("M2120 V%.2f", seconds)
}

// M2200 creates the query for whether the motion queue is still executing.
func M2200() string { return "M2200" }

// M2210 creates a buzzer command with the given frequency in Hz and
// duration in milliseconds.
func M2210(freq, ms int) string {
	return fmt.Sprintf("M2210 F%d T%d", freq, ms)
}

// M2231 creates the command that switches the suction pump on or off.
func M2231(on bool) string {
	return fmt.Sprintf("M2231 V%d", boolVal(on))
}

// M2232 creates the command that opens or closes the gripper.
func M2232(on bool) string {
	return fmt.Sprintf("M2232 V%d", boolVal(on))
}

// M2240 creates the command that drives a digital output pin high or low.
func M2240(pin int, high bool) string {
	return fmt.Sprintf("M2240 N%d V%d", pin, boolVal(high))
}

// M2400 creates the command that switches the controller's work mode.
func M2400(mode WorkMode) string {
	return fmt.Sprintf("M2400 S%d", mode)
}

// P2201 creates the device name query.
func P2201() string { return "P2201" }

// P2202 creates the hardware version query.
func P2202() string { return "P2202" }

// P2203 creates the firmware version query.
func P2203() string { return "P2203" }

// P2204 creates the API version query.
func P2204() string { return "P2204" }

// P2205 creates the device UID query.
func P2205() string { return "P2205" }

// P2206 creates the query for the current angle of joint n in degrees.
func P2206(n int) string {
	return fmt.Sprintf("P2206 N%d", n)
}

// P2220 creates the cartesian position query.
func P2220() string { return "P2220" }

// P2221 creates the polar position query.
func P2221() string { return "P2221" }

// P2231 creates the limit switch state query.
func P2231() string { return "P2231" }

// P2232 creates the gripper state query.
func P2232() string { return "P2232" }

// P2233 creates the pump state query.
func P2233() string { return "P2233" }

// P2240 creates the query for the level of a digital input pin.
func P2240(pin int) string {
	return fmt.Sprintf("P2240 N%d", pin)
}

// P2241 creates the query for the value of an analog input pin.
func P2241(pin int) string {
	return fmt.Sprintf("P2241 N%d", pin)
}

func boolVal(b bool) int {
	if b {
		return 1
	}
	return 0
}

// durationMillis converts d to whole milliseconds for commands that take a
// T or P parameter, rounding up so short non-zero durations do not vanish.
func durationMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := int((d + time.Millisecond - 1) / time.Millisecond)
	return ms
}
