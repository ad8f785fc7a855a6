// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package transport

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/driftgate/driftgate/internal/login"
)

const (
	// outBufferSize bounds outbound messages queued per connection. A peer
	// that stops reading fills the buffer and gets disconnected instead of
	// blocking the dispatch loop.
	outBufferSize = 64

	writeTimeout = 10 * time.Second
)

// peerConn adapts one TCP connection to login.Conn. Sends are queued to a
// writer goroutine so callers never block on peer I/O.
type peerConn struct {
	conn   net.Conn
	connID ulid.ULID

	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newPeerConn(conn net.Conn) *peerConn {
	pc := &peerConn{
		conn:   conn,
		connID: ulid.Make(),
		out:    make(chan []byte, outBufferSize),
		done:   make(chan struct{}),
	}
	go pc.writeLoop()
	return pc
}

// Send queues one outbound message. It fails when the connection is closed
// or the peer has stopped draining its buffer.
func (pc *peerConn) Send(msg any) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	select {
	case <-pc.done:
		return oops.Code("CONN_CLOSED").
			With("conn_id", pc.connID.String()).
			Errorf("connection closed")
	default:
	}

	select {
	case pc.out <- data:
		return nil
	default:
		return oops.Code("CONN_BACKPRESSURE").
			With("conn_id", pc.connID.String()).
			Errorf("outbound buffer full")
	}
}

// Disconnect closes the connection. reason is logged once; nil means a
// deliberate close.
func (pc *peerConn) Disconnect(reason error) {
	pc.once.Do(func() {
		if reason != nil {
			slog.Info("disconnecting peer",
				"conn_id", pc.connID.String(),
				"remote_addr", pc.RemoteAddr(),
				"reason", reason,
			)
		}
		close(pc.done)
		if err := pc.conn.Close(); err != nil {
			slog.Debug("error closing connection",
				"conn_id", pc.connID.String(),
				"error", err,
			)
		}
	})
}

// RemoteAddr returns the peer's IP without the port.
func (pc *peerConn) RemoteAddr() string {
	host, _, err := net.SplitHostPort(pc.conn.RemoteAddr().String())
	if err != nil {
		return pc.conn.RemoteAddr().String()
	}
	return host
}

// ID returns the connection's ULID, used to correlate log lines.
func (pc *peerConn) ID() string {
	return pc.connID.String()
}

func (pc *peerConn) writeLoop() {
	for {
		select {
		case <-pc.done:
			return
		case data := <-pc.out:
			if err := pc.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				pc.Disconnect(oops.Code("CONN_WRITE_FAILED").Wrap(err))
				return
			}
			if _, err := pc.conn.Write(append(data, '\n')); err != nil {
				pc.Disconnect(oops.Code("CONN_WRITE_FAILED").Wrap(err))
				return
			}
		}
	}
}

var _ login.Conn = (*peerConn)(nil)
