package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/venlet/go-armlink/arm"
	"github.com/venlet/go-armlink/discovery"
	"github.com/venlet/go-armlink/link"
	"github.com/venlet/go-armlink/logger"
	"github.com/venlet/go-armlink/transport"
	"github.com/venlet/go-armlink/wire"
)

// openTransport resolves the connection flags to a transport and a
// human-readable description of it. At most one of --port, --url and --tcp
// may be given; with none, discovery picks the first known arm controller.
func openTransport() (link.Transport, string, error) {
	modes := 0
	for _, set := range []bool{portName != "", wsURL != "", tcpAddr != ""} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return nil, "", fmt.Errorf("choose one of --port, --url or --tcp")
	}

	switch {
	case wsURL != "":
		var opts []transport.WebSocketOption
		if wsUsername != "" {
			password, err := getPassword()
			if err != nil {
				return nil, "", err
			}
			opts = append(opts, transport.WithBasicAuth(wsUsername, password))
		}
		if wsNoTLSVerify {
			opts = append(opts, transport.WithInsecureSkipVerify())
		}
		tr, err := transport.NewWebSocket(wsURL, opts...)
		if err != nil {
			return nil, "", err
		}
		return tr, "WebSocket " + wsURL, nil

	case tcpAddr != "":
		tr, err := transport.NewTCP(tcpAddr)
		if err != nil {
			return nil, "", err
		}
		return tr, "TCP " + tcpAddr, nil

	default:
		name := portName
		if name == "" {
			port, err := discovery.Find()
			if err != nil {
				return nil, "", fmt.Errorf("no --port given: %w", err)
			}
			name = port.Name
			fmt.Fprintf(os.Stderr, "Using discovered controller on %s (%s)\n", name, port.Product)
		}
		tr, err := transport.NewSerial(name, transport.WithBaudRate(baudRate))
		if err != nil {
			return nil, "", err
		}
		return tr, fmt.Sprintf("serial %s @ %d baud", name, baudRate), nil
	}
}

// getPassword retrieves the WebSocket password from the environment or
// prompts for it on the terminal.
func getPassword() (string, error) {
	if pw := os.Getenv("ARMLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(passwordBytes), nil
}

func selectedDialect() (wire.Dialect, error) {
	switch dialectName {
	case "default":
		return wire.DefaultDialect, nil
	case "tick":
		return wire.TickDialect, nil
	default:
		return wire.Dialect{}, fmt.Errorf("unknown dialect %q (want default or tick)", dialectName)
	}
}

func cliLogger() logger.Logger {
	if verbose {
		return logger.NewConsole(logger.DebugLevel)
	}
	return logger.NewConsole(logger.WarnLevel)
}

// openArm opens a link over the flag-selected transport and blocks until
// the controller reports ready. The caller owns the returned Arm and must
// Close it.
func openArm(ctx context.Context) (*arm.Arm, string, error) {
	dialect, err := selectedDialect()
	if err != nil {
		return nil, "", err
	}

	tr, desc, err := openTransport()
	if err != nil {
		return nil, "", err
	}

	cfg, err := link.NewConfig(
		link.WithDialect(dialect),
		link.WithLogger(cliLogger()),
	)
	if err != nil {
		return nil, "", err
	}

	l, err := link.New(ctx, tr, cfg)
	if err != nil {
		return nil, "", err
	}

	a := arm.New(l)
	if err := a.Open(ctx); err != nil {
		return nil, "", fmt.Errorf("open %s: %w", desc, err)
	}
	return a, desc, nil
}

// cmdContext returns the context commands run their requests under,
// bounded by --timeout unless that is zero.
func cmdContext() (context.Context, context.CancelFunc) {
	if waitTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), waitTimeout)
}
