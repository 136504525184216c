// Command l0-host is the external collaborator for the L0 link-layer
// framing core: it opens a transport (a real serial device or a
// websocket bridge), drives the handshake, and lets an operator send
// and observe packets interactively.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"l0link/host/link"
	"l0link/host/serial"
	"l0link/host/wsbridge"
	"l0link/l0"
)

var (
	device   string
	baud     int
	wsURL    string
	timeout  time.Duration
	initiate bool
	logLevel string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "l0-host",
		Short: "Interactive driver for an L0 link-layer connection",
		Long: fmt.Sprintf(
			"l0-host (v%s) connects to an L0 peer over a serial device or a websocket\n"+
				"bridge, performs the sync handshake, and lets you send and observe packets.",
			l0.Version,
		),
		RunE: runHost,
	}

	flags := cmd.Flags()
	flags.StringVar(&device, "device", "/dev/ttyUSB0", "serial device path")
	flags.IntVar(&baud, "baud", 115200, "baud rate (ignored for websocket transport)")
	flags.StringVar(&wsURL, "ws", "", "connect over a websocket bridge instead of a serial device (ws://host:port/path)")
	flags.DurationVar(&timeout, "timeout", 2*time.Second, "inter-byte / handshake timeout")
	flags.BoolVar(&initiate, "initiate", false, "act as the handshake initiator (send the first SYNC_REQ)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	return cmd
}

func runHost(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetLevel(level)
	log.WithField("version", l0.Version.String()).Info("l0-host starting")

	port, err := openPort()
	if err != nil {
		return fmt.Errorf("l0-host: %w", err)
	}

	received := make(chan l0.Packet, 16)
	lk := link.New(port, timeout, 1, func(pkt l0.Packet) {
		received <- pkt
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- lk.Run(ctx) }()

	if initiate {
		if err := lk.Initiate(); err != nil {
			return fmt.Errorf("l0-host: initiate: %w", err)
		}
		log.Info("sent initial SYNC_REQ")
	}

	go func() {
		for pkt := range received {
			log.WithFields(logrus.Fields{
				"seq":  pkt.Seq,
				"code": fmt.Sprintf("0x%02X", pkt.Code),
				"data": hex.EncodeToString(pkt.Data),
			}).Info("received packet")
		}
	}()

	fmt.Println("Enter 'send <code-hex> [data-hex...]', or 'quit'. Ctrl-C also exits.")
	scanner := bufio.NewScanner(os.Stdin)
	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := dispatchCommand(lk, line); err != nil {
				if err == errQuit {
					return
				}
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		}
	}()

	select {
	case <-inputDone:
		cancel()
	case err := <-runErrCh:
		if err != nil {
			log.WithError(err).Warn("link stopped")
		}
	case <-ctx.Done():
	}

	return lk.Close()
}

var errQuit = errors.New("quit")

func dispatchCommand(lk *link.Link, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "quit", "exit", "q":
		return errQuit

	case "send":
		if len(fields) < 2 {
			return fmt.Errorf("usage: send <code-hex> [data-hex...]")
		}
		code, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 8)
		if err != nil {
			return fmt.Errorf("invalid code: %w", err)
		}
		data := make([]byte, 0, len(fields)-2)
		for _, f := range fields[2:] {
			b, err := strconv.ParseUint(strings.TrimPrefix(f, "0x"), 16, 8)
			if err != nil {
				return fmt.Errorf("invalid data byte %q: %w", f, err)
			}
			data = append(data, byte(b))
		}
		if len(data) > l0.MaxDataLen {
			return fmt.Errorf("data too long: %d bytes (max %d)", len(data), l0.MaxDataLen)
		}
		return lk.Send(l0.Packet{Code: uint8(code), Data: data})

	default:
		return fmt.Errorf("unknown command: %s", fields[0])
	}
}

func openPort() (serial.Port, error) {
	if wsURL != "" {
		return wsbridge.Dial(wsURL)
	}
	cfg := serial.DefaultConfig(device)
	cfg.Baud = baud
	return serial.Open(cfg)
}
