// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package link

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig holds the parameters for a sensor reached through a WebSocket
// bridge instead of a local serial port.
type WSConfig struct {
	URL                string
	Username           string
	Password           string
	InsecureSkipVerify bool
	ReadTimeout        time.Duration
}

// WSDriver reads frames from a remote sensor bridge. Each WebSocket
// message carries one or more newline-delimited protocol lines.
type WSDriver struct {
	cfg WSConfig

	mu      sync.Mutex
	conn    *websocket.Conn
	pending [][]byte
	partial []byte
}

// NewWSDriver creates a driver for the given bridge URL.
func NewWSDriver(cfg WSConfig) *WSDriver {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &WSDriver{cfg: cfg}
}

// Open dials the bridge with optional HTTP Basic auth.
func (d *WSDriver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return nil
	}

	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: d.cfg.InsecureSkipVerify,
		}
	}

	headers := http.Header{}
	if d.cfg.Username != "" && d.cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.cfg.Username + ":" + d.cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, d.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connect failed: %w", err)
	}

	d.conn = conn
	d.pending = d.pending[:0]
	d.partial = d.partial[:0]
	return nil
}

// ReadFrame returns the next buffered line, reading another message from
// the bridge when the buffer runs dry. A read deadline maps the bridge
// going quiet onto ErrTimeout.
func (d *WSDriver) ReadFrame() ([]byte, error) {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return nil, ErrNotOpen
	}

	if line, ok := d.takeLine(); ok {
		return line, nil
	}

	_ = conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("websocket read: %w", err)
		}
		d.buffer(data)
		if line, ok := d.takeLine(); ok {
			return line, nil
		}
	}
}

// buffer splits incoming bytes into complete lines. A trailing chunk with
// no terminator is carried until the next message finishes it, the same
// way the serial driver carries partial reads.
func (d *WSDriver) buffer(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partial = append(d.partial, data...)
	for {
		i := bytes.IndexByte(d.partial, '\n')
		if i < 0 {
			return
		}
		if i > 0 {
			d.pending = append(d.pending, append([]byte(nil), d.partial[:i]...))
		}
		d.partial = d.partial[i+1:]
	}
}

func (d *WSDriver) takeLine() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil, false
	}
	line := d.pending[0]
	d.pending = d.pending[1:]
	return line, true
}

// Close closes the bridge connection. Idempotent.
func (d *WSDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.pending = nil
	d.partial = nil
	return err
}
