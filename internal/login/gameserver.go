// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

// Game server identity allocation constants. The fixed offset guarantees
// match IDs never collide with server IDs as long as server IDs stay below
// the offset.
const (
	serverIDFloor = 1
	matchIDOffset = 10_000_000
)

// GameServer is a connected per-match game server launcher. Like Player it
// is owned by the dispatch loop after creation.
type GameServer struct {
	Conn

	// ServerID is the registry key, allocated on connect.
	ServerID int

	// MatchID correlates the logical match for external systems. Derived as
	// ServerID + matchIDOffset, unique by construction.
	MatchID int

	// DetectedIP is the address the transport saw the launcher connect from.
	DetectedIP string

	ExternalIP string
	InternalIP string
	Port       int

	Description string
	MOTD        string
	Mode        string

	// PasswordHash is nil for an unlocked server.
	PasswordHash []byte

	MapID   int
	BEScore int
	DSScore int

	SecondsRemaining int
	Counting         bool

	Joinable bool

	players map[*Player]struct{}
}

// NewGameServer wraps a transport connection as a game server peer.
func NewGameServer(conn Conn) *GameServer {
	return &GameServer{
		Conn:       conn,
		DetectedIP: conn.RemoteAddr(),
		players:    make(map[*Player]struct{}),
	}
}

// Locked reports whether the server requires a password to join.
func (gs *GameServer) Locked() bool {
	return gs.PasswordHash != nil
}

// SetAddressInfo records the launcher reported address pair.
func (gs *GameServer) SetAddressInfo(externalIP, internalIP string) {
	gs.ExternalIP = externalIP
	gs.InternalIP = internalIP
}

// SetInfo records the launcher reported presentation settings.
func (gs *GameServer) SetInfo(description, motd, mode string, passwordHash []byte) {
	gs.Description = description
	gs.MOTD = motd
	gs.Mode = mode
	gs.PasswordHash = passwordHash
}

// SetMatchTime records the match clock.
func (gs *GameServer) SetMatchTime(secondsRemaining int, counting bool) {
	gs.SecondsRemaining = secondsRemaining
	gs.Counting = counting
}

// SetReady records the join port. Port 0 means not ready; the server stops
// being advertised.
func (gs *GameServer) SetReady(port int) {
	gs.Port = port
	gs.Joinable = port != 0
}

// AddPlayer attaches a connected player to this server.
func (gs *GameServer) AddPlayer(p *Player) {
	gs.players[p] = struct{}{}
	p.GameServer = gs
}

// RemovePlayer detaches a player from this server.
func (gs *GameServer) RemovePlayer(p *Player) {
	delete(gs.players, p)
}

// PlayerCount reports the number of players attached to this server.
func (gs *GameServer) PlayerCount() int {
	return len(gs.players)
}

// leave is the game server's disconnect hook: detach every player still
// referencing it.
func (gs *GameServer) leave() {
	for p := range gs.players {
		if p.GameServer == gs {
			p.GameServer = nil
			p.Team = TeamNone
		}
	}
	gs.players = make(map[*Player]struct{})
}
