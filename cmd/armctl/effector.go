package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pumpCmd = &cobra.Command{
	Use:   "pump on|off",
	Short: "Switch the suction pump",
	Args:  cobra.ExactArgs(1),
	RunE:  runPump,
}

var gripCmd = &cobra.Command{
	Use:   "grip on|off",
	Short: "Close or open the gripper",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrip,
}

var (
	buzzFreq     int
	buzzDuration time.Duration
)

var buzzCmd = &cobra.Command{
	Use:   "buzz",
	Short: "Sound the buzzer",
	RunE:  runBuzz,
}

func init() {
	rootCmd.AddCommand(pumpCmd)
	rootCmd.AddCommand(gripCmd)
	rootCmd.AddCommand(buzzCmd)
	buzzCmd.Flags().IntVar(&buzzFreq, "freq", 440, "Frequency in Hz")
	buzzCmd.Flags().DurationVar(&buzzDuration, "duration", 500*time.Millisecond, "How long to sound")
}

func parseOnOff(arg string) (bool, error) {
	switch arg {
	case "on", "1":
		return true, nil
	case "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("want on or off, got %q", arg)
	}
}

func runPump(cmd *cobra.Command, args []string) error {
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := cmdContext()
	defer cancel()

	a, _, err := openArm(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Pump(ctx, on)
}

func runGrip(cmd *cobra.Command, args []string) error {
	closed, err := parseOnOff(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := cmdContext()
	defer cancel()

	a, _, err := openArm(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Grip(ctx, closed)
}

func runBuzz(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	a, _, err := openArm(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Buzz(ctx, buzzFreq, buzzDuration)
}
