// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package transport

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/driftgate/driftgate/internal/login"
)

// statusReplyTimeout bounds how long one probe waits on the dispatch loop.
const statusReplyTimeout = 5 * time.Second

// StatusServer serves the public status probe over HTTP. Each request is
// posted into the queue as an HTTPRequest event and answered with whatever
// the dispatch loop sends back.
type StatusServer struct {
	addr       string
	queue      chan<- login.Event
	listener   net.Listener
	httpServer *http.Server
}

// NewStatusServer creates a status server posting into queue.
func NewStatusServer(addr string, queue chan<- login.Event) *StatusServer {
	return &StatusServer{addr: addr, queue: queue}
}

// Addr returns the bound address, or "" before Start.
func (s *StatusServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *StatusServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           http.HandlerFunc(s.handle),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("status server error", "error", err)
		}
	}()

	slog.Info("status server started", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the server down gracefully.
func (s *StatusServer) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return oops.With("operation", "shutdown_status_server").Wrap(err)
	}
	return nil
}

func (s *StatusServer) handle(w http.ResponseWriter, r *http.Request) {
	reply := make(chan string, 1)
	requester := login.NewStatusRequester(&statusReplyConn{
		reply:      reply,
		remoteAddr: r.RemoteAddr,
	})

	ev := login.HTTPRequest{Path: r.URL.Path, Peer: requester}
	select {
	case s.queue <- ev:
	case <-r.Context().Done():
		return
	}

	select {
	case body := <-reply:
		if body == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck // probe write error means the client went away
		w.Write([]byte(body))
	case <-time.After(statusReplyTimeout):
		w.WriteHeader(http.StatusServiceUnavailable)
	case <-r.Context().Done():
	}
}

// statusReplyConn satisfies login.Conn for the one-shot HTTP reply.
type statusReplyConn struct {
	reply      chan<- string
	remoteAddr string
}

func (c *statusReplyConn) Send(msg any) error {
	body, ok := msg.(string)
	if !ok {
		return oops.Code("WIRE_ENCODE_FAILED").Errorf("status reply must be a string, got %T", msg)
	}
	select {
	case c.reply <- body:
		return nil
	default:
		return oops.Code("CONN_CLOSED").Errorf("status reply already sent")
	}
}

func (c *statusReplyConn) Disconnect(error) {}

func (c *statusReplyConn) RemoteAddr() string {
	host, _, err := net.SplitHostPort(c.remoteAddr)
	if err != nil {
		return c.remoteAddr
	}
	return host
}

var _ login.Conn = (*statusReplyConn)(nil)
