// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

// Package transport accepts player, game server launcher and auth code
// connections and funnels everything they say into the coordinator's single
// inbound queue.
package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/driftgate/driftgate/internal/login"
)

// maxLineBytes bounds one wire line. Anything larger is a protocol
// violation.
const maxLineBytes = 64 * 1024

// Config holds the three listen addresses.
type Config struct {
	PlayerAddr   string
	LauncherAddr string
	AuthCodeAddr string
}

// Server owns the TCP listeners. All decoded input is posted to the queue;
// the dispatch loop owns everything after that.
type Server struct {
	cfg   Config
	queue chan<- login.Event

	mu        sync.RWMutex
	listeners map[string]net.Listener
}

// NewServer creates a transport server posting into queue.
func NewServer(cfg Config, queue chan<- login.Event) *Server {
	return &Server{
		cfg:       cfg,
		queue:     queue,
		listeners: make(map[string]net.Listener),
	}
}

// Addr returns the bound address of the named listener ("player",
// "launcher" or "authcode"), or "" before Run.
func (s *Server) Addr(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listeners[name]
	if !ok {
		return ""
	}
	return l.Addr().String()
}

// Run binds all three listeners and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	type endpoint struct {
		name   string
		addr   string
		handle func(context.Context, net.Conn)
	}
	endpoints := []endpoint{
		{"player", s.cfg.PlayerAddr, s.handlePlayer},
		{"launcher", s.cfg.LauncherAddr, s.handleLauncher},
		{"authcode", s.cfg.AuthCodeAddr, s.handleAuthCode},
	}

	var wg sync.WaitGroup
	for _, ep := range endpoints {
		listener, err := net.Listen("tcp", ep.addr)
		if err != nil {
			s.closeListeners()
			return oops.Code("LISTEN_FAILED").With("endpoint", ep.name).With("addr", ep.addr).Wrap(err)
		}
		s.mu.Lock()
		s.listeners[ep.name] = listener
		s.mu.Unlock()
		slog.Info("listener started", "endpoint", ep.name, "addr", listener.Addr())

		wg.Add(1)
		go func(ep endpoint, listener net.Listener) {
			defer wg.Done()
			s.acceptLoop(ctx, listener, ep.handle)
		}(ep, listener)
	}

	<-ctx.Done()
	s.closeListeners()
	wg.Wait()
	return nil
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, l := range s.listeners {
		if err := l.Close(); err != nil {
			slog.Debug("error closing listener", "endpoint", name, "error", err)
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener, handle func(context.Context, net.Conn)) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		go handle(ctx, conn)
	}
}

// handlePlayer runs one player connection: announce the peer, decode each
// line into a ProtocolData event, announce the disconnect when the read
// side ends.
func (s *Server) handlePlayer(ctx context.Context, conn net.Conn) {
	pc := newPeerConn(conn)
	player := login.NewPlayer(pc)
	s.post(ctx, login.PeerConnected{Peer: player})
	defer func() {
		s.post(ctx, login.PeerDisconnected{Peer: player})
		pc.Disconnect(nil)
	}()

	s.readLines(ctx, pc, func(line []byte) error {
		ev, err := decodePlayerData(player, line)
		if err != nil {
			return err
		}
		s.post(ctx, ev)
		return nil
	})
}

// handleLauncher runs one game server launcher connection.
func (s *Server) handleLauncher(ctx context.Context, conn net.Conn) {
	pc := newPeerConn(conn)
	gs := login.NewGameServer(pc)
	s.post(ctx, login.PeerConnected{Peer: gs})
	defer func() {
		s.post(ctx, login.PeerDisconnected{Peer: gs})
		pc.Disconnect(nil)
	}()

	s.readLines(ctx, pc, func(line []byte) error {
		ev, err := decodeLauncherEvent(gs, line)
		if err != nil {
			return err
		}
		s.post(ctx, ev)
		return nil
	})
}

// handleAuthCode runs one transient auth code request: a single line
// carrying the login name, answered with the code or an error string.
func (s *Server) handleAuthCode(ctx context.Context, conn net.Conn) {
	pc := newPeerConn(conn)
	requester := login.NewAuthCodeRequester(pc)
	s.post(ctx, login.PeerConnected{Peer: requester})
	defer func() {
		s.post(ctx, login.PeerDisconnected{Peer: requester})
		pc.Disconnect(nil)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	if !scanner.Scan() {
		return
	}

	loginName := strings.TrimSpace(scanner.Text())
	s.post(ctx, login.AuthCodeRequest{LoginName: loginName, Peer: requester})

	// Keep the read side open until the reply is written or the requester
	// hangs up.
	scanner.Scan()
}

// readLines pumps decoded lines until EOF, a decode error or shutdown.
func (s *Server) readLines(ctx context.Context, pc *peerConn, handle func(line []byte) error) {
	scanner := bufio.NewScanner(pc.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := handle(line); err != nil {
			slog.Warn("dropping connection on bad input",
				"conn_id", pc.ID(),
				"remote_addr", pc.RemoteAddr(),
				"error", err,
			)
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		slog.Debug("connection read error",
			"conn_id", pc.ID(),
			"error", err,
		)
	}
}

// post delivers one event unless shutdown won the race.
func (s *Server) post(ctx context.Context, ev login.Event) {
	select {
	case s.queue <- ev:
	case <-ctx.Done():
	}
}
