// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/netip"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/driftgate/driftgate/internal/account"
	"github.com/driftgate/driftgate/internal/netinfo"
	"github.com/driftgate/driftgate/internal/observability"
	"github.com/driftgate/driftgate/internal/social"
)

// LauncherProtocolVersion is the launcher-to-login protocol version this
// server speaks. Launchers with a different major version are rejected.
var LauncherProtocolVersion = semver.MustParse("3.0.0")

// defaultQueueSize bounds the inbound event queue.
const defaultQueueSize = 256

// StatsSink receives a snapshot of the joinable game servers whenever the
// set changes.
type StatsSink interface {
	PublishServerStats(stats []ServerStat)
}

// StateLoader restores persisted per-account game state after a successful
// login. It is an external collaborator; the core only calls it.
type StateLoader interface {
	LoadPlayer(ctx context.Context, p *Player) error
}

// Config wires a Server's collaborators. Accounts and Social are required;
// the rest is optional.
type Config struct {
	Accounts    account.Store
	Social      *social.Network
	AddressPair netinfo.AddressPair

	// Metrics, Stats and Loader may be nil.
	Metrics *observability.Metrics
	Stats   StatsSink
	Loader  StateLoader

	// MenuData is the fixed bootstrap block sent on successful login.
	MenuData MenuData

	// QueueSize overrides the inbound queue capacity when > 0.
	QueueSize int
}

// Server is the single-threaded coordinator: it drains one inbound queue,
// routes each event to exactly one handler by kind, and owns both live
// registries. Handlers never yield mid-mutation, so registry and state
// machine mutations are atomic with respect to each other without locks.
type Server struct {
	queue    chan Event
	handlers map[EventKind]func(context.Context, Event) error

	players     *PlayerRegistry
	gameServers *GameServerRegistry
	callbacks   *PendingCallbacks

	accounts    account.Store
	social      *social.Network
	addressPair netinfo.AddressPair

	metrics     *observability.Metrics
	stats       StatsSink
	stateLoader StateLoader
	menuData    MenuData
}

// NewServer builds a server and its static kind-to-handler table. Adding an
// event kind without a handler here is a programming error caught by the
// exhaustiveness test.
func NewServer(cfg Config) *Server {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	s := &Server{
		queue:       make(chan Event, size),
		players:     NewPlayerRegistry(),
		gameServers: NewGameServerRegistry(),
		accounts:    cfg.Accounts,
		social:      cfg.Social,
		addressPair: cfg.AddressPair,
		metrics:     cfg.Metrics,
		stats:       cfg.Stats,
		stateLoader: cfg.Loader,
		menuData:    cfg.MenuData,
	}
	s.callbacks = NewPendingCallbacks(s.queue)

	s.handlers = map[EventKind]func(context.Context, Event) error{
		KindAuthCodeRequest: func(ctx context.Context, ev Event) error {
			return s.handleAuthCodeRequest(ctx, ev.(AuthCodeRequest))
		},
		KindExecuteCallback: func(_ context.Context, ev Event) error {
			s.callbacks.Execute(ev.(ExecuteCallback).CallbackID)
			return nil
		},
		KindHTTPRequest: func(_ context.Context, ev Event) error {
			return s.handleHTTPRequest(ev.(HTTPRequest))
		},
		KindPeerConnected: func(_ context.Context, ev Event) error {
			return s.handlePeerConnected(ev.(PeerConnected))
		},
		KindPeerDisconnected: func(_ context.Context, ev Event) error {
			return s.handlePeerDisconnected(ev.(PeerDisconnected))
		},
		KindProtocolData: func(ctx context.Context, ev Event) error {
			return s.handleProtocolData(ctx, ev.(ProtocolData))
		},
		KindProtocolVersion: func(_ context.Context, ev Event) error {
			return s.handleProtocolVersion(ev.(ProtocolVersion))
		},
		KindAddressInfo: func(_ context.Context, ev Event) error {
			return s.handleAddressInfo(ev.(AddressInfo))
		},
		KindServerInfo: func(_ context.Context, ev Event) error {
			return s.handleServerInfo(ev.(ServerInfo))
		},
		KindMapInfo: func(_ context.Context, ev Event) error {
			ev.(MapInfo).Peer.MapID = ev.(MapInfo).MapID
			return nil
		},
		KindTeamInfo: func(_ context.Context, ev Event) error {
			return s.handleTeamInfo(ev.(TeamInfo))
		},
		KindScoreInfo: func(_ context.Context, ev Event) error {
			info := ev.(ScoreInfo)
			info.Peer.BEScore = info.BEScore
			info.Peer.DSScore = info.DSScore
			return nil
		},
		KindMatchTime: func(_ context.Context, ev Event) error {
			return s.handleMatchTime(ev.(MatchTime))
		},
		KindServerReady: func(_ context.Context, ev Event) error {
			return s.handleServerReady(ev.(ServerReady))
		},
		KindMatchEnd: func(_ context.Context, ev Event) error {
			slog.Info("match ended", "server_id", ev.(MatchEnd).Peer.ServerID)
			return nil
		},
	}

	return s
}

// Queue is where the transport layer posts inbound events. It is the only
// way into the dispatch loop.
func (s *Server) Queue() chan<- Event {
	return s.queue
}

// Post enqueues one event. It blocks when the queue is full, applying
// backpressure to the transport layer.
func (s *Server) Post(ev Event) {
	s.queue <- ev
}

// Players exposes the player registry. Callers must be on the dispatch
// loop.
func (s *Server) Players() *PlayerRegistry {
	return s.players
}

// GameServers exposes the game server registry. Callers must be on the
// dispatch loop.
func (s *Server) GameServers() *GameServerRegistry {
	return s.gameServers
}

// Callbacks exposes the pending callback registry. Callers must be on the
// dispatch loop.
func (s *Server) Callbacks() *PendingCallbacks {
	return s.callbacks
}

// Run drains the inbound queue until ctx is cancelled. Exactly one event is
// processed to completion before the next is dequeued; FIFO ordering
// guarantees a peer's disconnect is fully handled before any later event
// referencing it.
//
// A handler error on an event with an identifiable originating peer is
// logged and isolated by disconnecting that peer. An error on any other
// event terminates the loop: with no peer there is no safe unit to
// isolate.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("login server started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("login server stopping")
			return nil
		case ev := <-s.queue:
			if err := s.dispatch(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, ev Event) error {
	kind := ev.EventKind()
	handler, ok := s.handlers[kind]
	if !ok {
		return oops.Code("UNKNOWN_EVENT_KIND").
			With("kind", int(kind)).
			Errorf("no handler registered for event kind %d", kind)
	}

	if s.metrics != nil {
		s.metrics.EventsTotal.WithLabelValues(kind.String()).Inc()
	}

	err := handler(ctx, ev)
	if err == nil {
		return nil
	}

	if s.metrics != nil {
		s.metrics.HandlerFailures.WithLabelValues(kind.String()).Inc()
	}

	pe, hasPeer := ev.(peerEvent)
	if !hasPeer {
		return err
	}

	slog.Error("event handler failed, disconnecting peer",
		"kind", kind.String(),
		"error", err,
	)
	pe.EventPeer().Disconnect(err)
	return nil
}

func (s *Server) handleAuthCodeRequest(ctx context.Context, ev AuthCodeRequest) error {
	if reason := ValidateLoginName(ev.LoginName); reason != "" {
		slog.Warn("auth code requested for invalid login name",
			"login_name", ev.LoginName,
			"reason", reason,
		)
		return ev.Peer.Send("Error: " + reason)
	}

	code, err := GenerateAuthCode()
	if err != nil {
		return err
	}

	if err := s.accounts.AddAccount(ctx, ev.LoginName, code); err != nil {
		return oops.Code("AUTHCODE_PERSIST_FAILED").
			With("login_name", ev.LoginName).
			Wrap(err)
	}
	if err := s.accounts.Save(ctx); err != nil {
		return oops.Code("ACCOUNT_SAVE_FAILED").Wrap(err)
	}

	slog.Info("auth code issued", "login_name", ev.LoginName)
	if s.metrics != nil {
		s.metrics.AuthCodesIssued.Inc()
	}
	return ev.Peer.Send(code)
}

// handleHTTPRequest serves the status probe. Unknown paths get an empty
// response.
func (s *Server) handleHTTPRequest(ev HTTPRequest) error {
	if ev.Path != "/status" {
		return ev.Peer.Send("")
	}

	// Keys marshal sorted, matching the documented response shape.
	body, err := json.MarshalIndent(map[string]int{
		"online_players": s.players.Len(),
		"online_servers": s.gameServers.Len(),
	}, "", "    ")
	if err != nil {
		return oops.Code("STATUS_ENCODE_FAILED").Wrap(err)
	}
	return ev.Peer.Send(string(body))
}

// handlePeerConnected registers a new peer, dispatching on its variant.
func (s *Server) handlePeerConnected(ev PeerConnected) error {
	switch peer := ev.Peer.(type) {
	case *Player:
		peer.UniqueID = FirstUnusedIDAbove(playerIDFloor, s.players.IDs())
		peer.Friends.Attach(s.social)
		peer.setState(Unauthenticated)
		s.players.Add(peer)
		s.updateGauges()

	case *GameServer:
		peer.ServerID = FirstUnusedIDAbove(serverIDFloor, s.gameServers.IDs())
		peer.MatchID = peer.ServerID + matchIDOffset
		s.gameServers.Add(peer)
		s.updateGauges()
		s.publishServerStats()
		slog.Info("added game server",
			"server_id", peer.ServerID,
			"detected_ip", peer.DetectedIP,
		)

	case *AuthCodeRequester, *StatusRequester:
		// Transient peers never enter a registry.

	default:
		return oops.Code("INVALID_PEER").Errorf("connect for unknown peer variant %T", ev.Peer)
	}
	return nil
}

// handlePeerDisconnected runs the peer's disconnect hook, cancels its
// pending callbacks and removes it from its registry.
func (s *Server) handlePeerDisconnected(ev PeerDisconnected) error {
	switch peer := ev.Peer.(type) {
	case *Player:
		peer.leave()
		s.callbacks.RemoveReceiver(peer)
		peer.setState(Offline)
		s.players.Remove(peer.UniqueID)
		s.updateGauges()

	case *GameServer:
		slog.Info("removed game server",
			"server_id", peer.ServerID,
			"detected_ip", peer.DetectedIP,
			"port", peer.Port,
		)
		peer.leave()
		s.callbacks.RemoveReceiver(peer)
		s.gameServers.Remove(peer.ServerID)
		s.updateGauges()
		s.publishServerStats()

	case *AuthCodeRequester, *StatusRequester:
		// Disconnect hook only; nothing registered.

	default:
		return oops.Code("INVALID_PEER").Errorf("disconnect for unknown peer variant %T", ev.Peer)
	}
	return nil
}

func (s *Server) handleProtocolData(ctx context.Context, ev ProtocolData) error {
	p := ev.Peer
	p.LastReceivedSeq = ev.ClientSeq

	for _, req := range ev.Requests {
		if err := p.HandleRequest(ctx, s, req); err != nil {
			return err
		}
	}
	return nil
}

// handleProtocolVersion rejects launchers whose protocol major version
// differs from ours. Minor and patch drift is tolerated.
func (s *Server) handleProtocolVersion(ev ProtocolVersion) error {
	launcherVersion, err := semver.NewVersion(ev.Version)
	if err != nil {
		return oops.Code("PROTOCOL_VIOLATION").
			With("version", ev.Version).
			Wrap(ErrProtocolViolation)
	}

	if launcherVersion.Major() != LauncherProtocolVersion.Major() {
		gs := ev.Peer
		slog.Warn("game server protocol incompatible, disconnecting",
			"server_id", gs.ServerID,
			"detected_ip", gs.DetectedIP,
			"launcher_version", launcherVersion.String(),
			"server_version", LauncherProtocolVersion.String(),
		)
		if err := gs.Send(VersionNotice{Version: LauncherProtocolVersion.String()}); err != nil {
			slog.Debug("failed to send version notice", "error", err)
		}
		gs.Disconnect(oops.Errorf("incompatible launcher protocol %s", launcherVersion))
	}
	return nil
}

func (s *Server) handleAddressInfo(ev AddressInfo) error {
	gs := ev.Peer
	gs.SetAddressInfo(ev.ExternalIP, ev.InternalIP)
	slog.Info("address info received",
		"server_id", gs.ServerID,
		"detected_ip", gs.DetectedIP,
	)
	return nil
}

func (s *Server) handleServerInfo(ev ServerInfo) error {
	gs := ev.Peer
	gs.SetInfo(ev.Description, ev.MOTD, ev.Mode, ev.PasswordHash)
	slog.Info("server info received",
		"mode", gs.Mode,
		"server_id", gs.ServerID,
		"detected_ip", gs.DetectedIP,
	)
	s.publishServerStats()
	return nil
}

// handleTeamInfo applies team assignments, but only for players that are
// both connected and attached to the emitting server. Anything else is a
// stale or racy update: logged and dropped, never fatal.
func (s *Server) handleTeamInfo(ev TeamInfo) error {
	gs := ev.Peer
	for playerID, teamID := range ev.PlayerToTeam {
		p := s.players.Get(playerID)
		if p == nil || p.GameServer != gs {
			slog.Warn("dropping team update for player not on server",
				"server_id", gs.ServerID,
				"player_id", playerID,
			)
			continue
		}
		p.Team = teamID
	}
	return nil
}

func (s *Server) handleMatchTime(ev MatchTime) error {
	gs := ev.Peer
	slog.Info("match time received",
		"server_id", gs.ServerID,
		"seconds_remaining", ev.SecondsRemaining,
		"counting", ev.Counting,
	)
	gs.SetMatchTime(ev.SecondsRemaining, ev.Counting)
	return nil
}

func (s *Server) handleServerReady(ev ServerReady) error {
	gs := ev.Peer
	gs.SetReady(ev.Port)

	status := "not ready"
	if gs.Joinable {
		status = "ready"
	}
	slog.Info("game server readiness changed",
		"server_id", gs.ServerID,
		"detected_ip", gs.DetectedIP,
		"port", gs.Port,
		"status", status,
	)
	s.publishServerStats()
	return nil
}

// advertiseAddress picks the join address shown to players. Launchers
// report their own external address when they know it; a launcher that
// connects from a loopback or private network shares our NAT, so players
// outside it need this process's detected external address instead.
func (s *Server) advertiseAddress(gs *GameServer) string {
	if gs.ExternalIP != "" {
		return gs.ExternalIP
	}
	addr, err := netip.ParseAddr(gs.DetectedIP)
	if err == nil && (addr.IsLoopback() || addr.IsPrivate()) && s.addressPair.HasExternal() {
		return s.addressPair.External.String()
	}
	return gs.DetectedIP
}

func (s *Server) publishServerStats() {
	if s.stats == nil {
		return
	}
	s.stats.PublishServerStats(s.gameServers.Stats())
}

func (s *Server) updateGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.PlayersOnline.Set(float64(s.players.Len()))
	s.metrics.GameServersOnline.Set(float64(s.gameServers.Len()))
}

func (s *Server) countLogin(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.LoginsTotal.WithLabelValues(result).Inc()
}
