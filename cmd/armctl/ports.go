package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venlet/go-armlink/discovery"
)

var portsAll bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and identify arm controllers",
	Long: `Enumerate the system's serial ports and flag the ones whose USB identity
matches a known arm controller. No port is opened.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVar(&portsAll, "all", false, "Show every port, not only USB ones")
}

func runPorts(cmd *cobra.Command, args []string) error {
	finder := discovery.NewFinder(discovery.WithLogger(cliLogger()))
	ports, err := finder.List()
	if err != nil {
		return err
	}

	isArm := discovery.IsArm()
	shown := 0
	for _, port := range ports {
		if !portsAll && !port.IsUSB {
			continue
		}
		shown++

		marker := " "
		if isArm(port) {
			marker = "*"
		}
		if port.IsUSB {
			fmt.Printf("%s %-16s %s:%s", marker, port.Name, port.VID, port.PID)
			if port.Product != "" {
				fmt.Printf("  %s", port.Product)
			}
			if port.SerialNumber != "" {
				fmt.Printf("  (SN %s)", port.SerialNumber)
			}
			fmt.Println()
		} else {
			fmt.Printf("%s %-16s (not USB)\n", marker, port.Name)
		}
	}

	if shown == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}
	fmt.Println("\n* known arm controller")
	return nil
}
