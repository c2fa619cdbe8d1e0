package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/venlet/go-armlink/arm"
)

var (
	moveSpeed    float64
	moveRelative bool
	movePolar    bool
	moveWait     bool
)

var moveCmd = &cobra.Command{
	Use:   "move <x> <y> <z>",
	Short: "Move the effector",
	Long: `Move the effector to a cartesian position in mm.

With --relative the coordinates are offsets from the current position.
With --polar they are read as stretch (mm), rotation (deg) and height (mm).
With --wait the command polls the controller until the motion queue drains.`,
	Args: cobra.ExactArgs(3),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().Float64Var(&moveSpeed, "speed", 0, "Feed rate in mm/min (0 uses the default)")
	moveCmd.Flags().BoolVar(&moveRelative, "relative", false, "Treat coordinates as offsets")
	moveCmd.Flags().BoolVar(&movePolar, "polar", false, "Treat coordinates as stretch/rotation/height")
	moveCmd.Flags().BoolVar(&moveWait, "wait", false, "Block until the motion queue is empty")
}

func runMove(cmd *cobra.Command, args []string) error {
	if moveRelative && movePolar {
		return fmt.Errorf("--relative and --polar are mutually exclusive")
	}

	coords := make([]float64, 3)
	for i, argVal := range args {
		v, err := strconv.ParseFloat(argVal, 64)
		if err != nil {
			return fmt.Errorf("bad coordinate %q: %w", argVal, err)
		}
		coords[i] = v
	}

	ctx, cancel := cmdContext()
	defer cancel()

	a, _, err := openArm(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case movePolar:
		err = a.MovePolar(ctx, coords[0], coords[1], coords[2], moveSpeed)
	case moveRelative:
		err = a.MoveBy(ctx, coords[0], coords[1], coords[2], moveSpeed)
	default:
		err = a.MoveTo(ctx, coords[0], coords[1], coords[2], moveSpeed)
	}
	if err != nil {
		return err
	}

	if moveWait {
		if err := waitMotionDone(ctx, a); err != nil {
			return err
		}
	}

	pos, err := a.Position(ctx)
	if err != nil {
		return err
	}
	fmt.Println(pos)
	return nil
}

// waitMotionDone polls the controller until it reports an empty motion
// queue.
func waitMotionDone(ctx context.Context, a *arm.Arm) error {
	for {
		moving, err := a.Moving(ctx)
		if err != nil {
			return err
		}
		if !moving {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
