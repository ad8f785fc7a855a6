// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

import (
	"strings"

	"github.com/samber/oops"
)

// PlayerRegistry is the live collection of connected players, keyed by
// unique ID. All mutation happens on the dispatch loop; the registry itself
// carries no locking.
type PlayerRegistry struct {
	players map[int]*Player
}

// NewPlayerRegistry creates an empty player registry.
func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{players: make(map[int]*Player)}
}

// Add inserts a player under its unique ID. The key must be free; a
// violation is a programming error.
func (r *PlayerRegistry) Add(p *Player) {
	if _, taken := r.players[p.UniqueID]; taken {
		panic("player registry key already in use")
	}
	r.players[p.UniqueID] = p
}

// Remove deletes the player registered under id.
func (r *PlayerRegistry) Remove(id int) {
	delete(r.players, id)
}

// Get returns the player under id, or nil.
func (r *PlayerRegistry) Get(id int) *Player {
	return r.players[id]
}

// Len reports the number of connected players.
func (r *PlayerRegistry) Len() int {
	return len(r.players)
}

// IDs returns the set of unique IDs currently in use.
func (r *PlayerRegistry) IDs() map[int]struct{} {
	ids := make(map[int]struct{}, len(r.players))
	for id := range r.players {
		ids[id] = struct{}{}
	}
	return ids
}

// ByDisplayName returns the connected player with the given display name,
// compared case-insensitively, or nil.
func (r *PlayerRegistry) ByDisplayName(name string) *Player {
	for _, p := range r.players {
		if strings.EqualFold(p.DisplayName, name) {
			return p
		}
	}
	return nil
}

// DisplayNamesInUse returns the lowercased display names of all connected
// players except exclude.
func (r *PlayerRegistry) DisplayNamesInUse(exclude *Player) map[string]struct{} {
	names := make(map[string]struct{}, len(r.players))
	for _, p := range r.players {
		if p == exclude || p.DisplayName == "" {
			continue
		}
		names[strings.ToLower(p.DisplayName)] = struct{}{}
	}
	return names
}

// ChangeUniqueID re-keys the player at oldID to newID, atomically with the
// player's own UniqueID field. If newID is already held by a connected
// player the call fails with ErrAlreadyLoggedIn and neither key changes;
// that can only happen when the same account connects twice.
func (r *PlayerRegistry) ChangeUniqueID(oldID, newID int) error {
	if _, taken := r.players[newID]; taken {
		return oops.Code("ALREADY_LOGGED_IN").
			With("unique_id", newID).
			Wrap(ErrAlreadyLoggedIn)
	}

	p, ok := r.players[oldID]
	if !ok {
		panic("ChangeUniqueID: no player under old id")
	}

	delete(r.players, oldID)
	p.UniqueID = newID
	r.players[newID] = p
	return nil
}

// ServerStat is one joinable game server as published to the stats sink.
type ServerStat struct {
	Locked      bool   `json:"locked"`
	Mode        string `json:"mode"`
	Description string `json:"description"`
	PlayerCount int    `json:"nplayers"`
}

// GameServerRegistry is the live collection of connected game servers,
// keyed by server ID. Insertion order is preserved because listings are
// externally observable.
type GameServerRegistry struct {
	servers map[int]*GameServer
	order   []int
}

// NewGameServerRegistry creates an empty game server registry.
func NewGameServerRegistry() *GameServerRegistry {
	return &GameServerRegistry{servers: make(map[int]*GameServer)}
}

// Add inserts a game server under its server ID. The key must be free; a
// violation is a programming error.
func (r *GameServerRegistry) Add(gs *GameServer) {
	if _, taken := r.servers[gs.ServerID]; taken {
		panic("game server registry key already in use")
	}
	r.servers[gs.ServerID] = gs
	r.order = append(r.order, gs.ServerID)
}

// Remove deletes the game server registered under id.
func (r *GameServerRegistry) Remove(id int) {
	if _, ok := r.servers[id]; !ok {
		return
	}
	delete(r.servers, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the game server under id, or nil.
func (r *GameServerRegistry) Get(id int) *GameServer {
	return r.servers[id]
}

// ByMatchID returns the game server whose match ID matches, or nil.
func (r *GameServerRegistry) ByMatchID(matchID int) *GameServer {
	for _, gs := range r.servers {
		if gs.MatchID == matchID {
			return gs
		}
	}
	return nil
}

// Len reports the number of connected game servers.
func (r *GameServerRegistry) Len() int {
	return len(r.servers)
}

// IDs returns the set of server IDs currently in use.
func (r *GameServerRegistry) IDs() map[int]struct{} {
	ids := make(map[int]struct{}, len(r.servers))
	for id := range r.servers {
		ids[id] = struct{}{}
	}
	return ids
}

// All returns the connected game servers in insertion order.
func (r *GameServerRegistry) All() []*GameServer {
	result := make([]*GameServer, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.servers[id])
	}
	return result
}

// Stats returns the joinable servers, in insertion order, in the shape the
// stats sink publishes.
func (r *GameServerRegistry) Stats() []ServerStat {
	stats := make([]ServerStat, 0, len(r.order))
	for _, gs := range r.All() {
		if !gs.Joinable {
			continue
		}
		stats = append(stats, ServerStat{
			Locked:      gs.Locked(),
			Mode:        gs.Mode,
			Description: gs.Description,
			PlayerCount: gs.PlayerCount(),
		})
	}
	return stats
}
