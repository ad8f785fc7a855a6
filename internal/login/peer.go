// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

// Package login implements the central message dispatch loop and the
// player/game-server lifecycle state machine of the driftgate server.
//
// All mutations to the two live registries (connected players, connected
// game servers) are serialized through a single queue-draining loop; see
// Server.Run. The transport layer delivers already-decoded events into the
// queue and receives sends and disconnect signals back through the Conn
// capability attached to each peer.
package login

// Conn is the send/disconnect capability the transport layer supplies for
// every peer. Send must never block the dispatch loop; implementations
// buffer writes and fail fast when the peer is gone.
type Conn interface {
	// Send queues one outbound message for the peer.
	Send(msg any) error

	// Disconnect tears the connection down. The transport layer follows up
	// with a PeerDisconnected event on the inbound queue.
	Disconnect(err error)

	// RemoteAddr returns the peer's address as detected by the transport.
	RemoteAddr() string
}

// Peer is any connected endpoint: a player client, a game server launcher,
// a transient auth code requester, or a transient status prober. It is a
// closed set; connect and disconnect handling is a match over the variants.
type Peer interface {
	Conn
	isPeer()
}

func (*Player) isPeer()            {}
func (*GameServer) isPeer()        {}
func (*AuthCodeRequester) isPeer() {}
func (*StatusRequester) isPeer()   {}

// AuthCodeRequester is the transient peer behind an out-of-band auth code
// request. It never enters a registry.
type AuthCodeRequester struct {
	Conn
}

// NewAuthCodeRequester wraps a transport connection as an auth code
// requester.
func NewAuthCodeRequester(conn Conn) *AuthCodeRequester {
	return &AuthCodeRequester{Conn: conn}
}

// StatusRequester is the transient peer behind an HTTP status probe. The
// reply body is delivered through Send as a string.
type StatusRequester struct {
	Conn
}

// NewStatusRequester wraps a transport responder as a status requester.
func NewStatusRequester(conn Conn) *StatusRequester {
	return &StatusRequester{Conn: conn}
}
