// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

import (
	"context"

	"github.com/driftgate/driftgate/internal/social"
)

// TeamNone marks a player not yet assigned to a team.
const TeamNone = -1

// playerIDFloor is the lowest unique ID handed to a freshly connected
// player. IDs below it belong to persisted accounts.
const playerIDFloor = 10_000_000

// Player is a connected player client. It is created by the transport layer
// on connect and owned by the dispatch loop afterwards: every field below
// is only read or written while handling an event.
type Player struct {
	Conn

	// UniqueID is the player's registry key. It is reassigned exactly once,
	// on a successful login against a registered account; the registry
	// re-key moves atomically with it.
	UniqueID int

	LoginName       string
	PasswordHash    []byte
	DisplayName     string
	Registered      bool
	Team            int
	GameServer      *GameServer
	LastReceivedSeq uint32

	Friends *social.Friends

	state *State
}

// NewPlayer wraps a transport connection as a player peer.
func NewPlayer(conn Conn) *Player {
	return &Player{
		Conn:    conn,
		Team:    TeamNone,
		Friends: social.NewFriends(),
	}
}

// State returns the player's current lifecycle state.
func (p *Player) State() *State {
	return p.state
}

func (p *Player) setState(st *State) {
	p.state = st
}

// HandleRequest routes one decoded request through the current state's
// accepted set. A code the state does not accept is a protocol violation.
func (p *Player) HandleRequest(ctx context.Context, s *Server, req Request) error {
	return p.state.handle(ctx, s, p, req)
}

// leave is the player's disconnect hook: detach from the social graph and
// from any game server. Registry removal and callback cancellation are the
// dispatcher's job.
func (p *Player) leave() {
	p.Friends.Detach()
	if p.GameServer != nil {
		p.GameServer.RemovePlayer(p)
		p.GameServer = nil
	}
}
