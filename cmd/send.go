package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// dialTarget connects to a running server. An address containing a path
// separator is treated as a unix socket.
func dialTarget(ctx context.Context, address string) (net.Conn, error) {
	network := "tcp"
	if strings.ContainsRune(address, '/') {
		network = "unix"
	}
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn, nil
}

// sendPayloads writes each payload on its own connection when direct is set,
// or all of them on one connection otherwise. It returns the number sent.
func sendPayloads(ctx context.Context, address string, payloads [][]byte, direct bool) (int, error) {
	if direct {
		for i, p := range payloads {
			if err := sendOnce(ctx, address, p); err != nil {
				return i, err
			}
		}
		return len(payloads), nil
	}

	conn, err := dialTarget(ctx, address)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	for i, p := range payloads {
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		if _, err := w.Write(p); err != nil {
			return i, err
		}
		if err := w.WriteByte('\n'); err != nil {
			return i, err
		}
	}
	return len(payloads), w.Flush()
}

func sendOnce(ctx context.Context, address string, payload []byte) error {
	conn, err := dialTarget(ctx, address)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return err
	}
	// the server reads the body until EOF
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}
