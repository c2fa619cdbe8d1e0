package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the controller's identity and current position",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	a, desc, err := openArm(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.Info(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Connection: %s\n", desc)
	fmt.Printf("Device:     %s\n", info.Name)
	fmt.Printf("Hardware:   %s\n", info.Hardware)
	fmt.Printf("Firmware:   %s\n", info.Firmware)
	fmt.Printf("API:        %s\n", info.API)
	fmt.Printf("UID:        %s\n", info.UID)

	if pos, err := a.Position(ctx); err == nil {
		fmt.Printf("Position:   %s\n", pos)
	}
	return nil
}
