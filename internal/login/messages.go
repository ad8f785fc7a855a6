// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

// Outbound message payloads. Serialization to the game's wire structures is
// the transport codec's job; the core only decides what to say.

// HandshakeAck answers a ReqHandshake.
type HandshakeAck struct{}

// KeepaliveAck answers a ReqKeepalive.
type KeepaliveAck struct{}

// LoginProbeAck acknowledges a login name probe (a ReqLogin without a
// password hash). No state change is implied.
type LoginProbeAck struct{}

// LoginResult reports the outcome of an actual login attempt. On success it
// carries the player state snapshot and the fixed bootstrap payload the
// client needs to reach the menu.
type LoginResult struct {
	Success     bool
	Reason      string // generic failure code, empty on success
	UniqueID    int
	DisplayName string
	Registered  bool
	MenuData    MenuData
}

// MenuData is the class/menu bootstrap block sent with a successful login.
// The content is fixed per deployment; the core treats it as opaque.
type MenuData struct {
	Classes []string
}

// ServerListEntry is one joinable game server as shown to a player.
type ServerListEntry struct {
	ServerID    int
	MatchID     int
	Address     string
	Port        int
	Description string
	MOTD        string
	Mode        string
	MapID       int
	Locked      bool
	PlayerCount int
}

// ServerList answers a ReqServerList.
type ServerList struct {
	Servers []ServerListEntry
}

// VersionNotice tells a launcher which protocol version this server speaks.
// Sent just before disconnecting an incompatible game server.
type VersionNotice struct {
	Version string
}

// Login failure reasons returned to peers. Detailed causes go to the log
// only.
const (
	ReasonLoginInfoInvalid = "login info invalid"
	ReasonAlreadyLoggedIn  = "account is already logged in"
)
