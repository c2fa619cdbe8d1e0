package main

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoTLSVerify bool

	// TCP connection flags
	tcpAddr string

	dialectName string
	waitTimeout time.Duration
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "armctl",
	Short: "Control and monitor a serial arm controller",
	Long: `Armctl - a CLI for driving and monitoring line-protocol arm controllers.

Commands block until the controller acknowledges them, so a move that the
firmware rejects is reported with the device's own error code.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  TCP:       --tcp host:4000
  WebSocket: --url ws://host/path [--username user]

With no connection flags, the first USB serial port that looks like a known
arm controller is used.

For WebSocket authentication, the password is read from the ARMLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version: "0.4.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoTLSVerify, "no-tls-verify", false, "Skip TLS certificate verification (wss:// only)")

	// TCP connection flags
	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "", "TCP address of a serial bridge (host:port)")

	rootCmd.PersistentFlags().StringVar(&dialectName, "dialect", "default", "Wire dialect: default or tick")
	rootCmd.PersistentFlags().DurationVar(&waitTimeout, "timeout", 10*time.Second, "Per-command reply timeout (0 waits forever)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
