// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

// EventKind discriminates the closed set of inbound event types. The
// dispatch table is keyed by it; exhaustiveness over the enumeration is
// checked in tests.
type EventKind uint8

// One kind per inbound event the core accepts.
const (
	KindAuthCodeRequest EventKind = iota
	KindExecuteCallback
	KindHTTPRequest
	KindPeerConnected
	KindPeerDisconnected
	KindProtocolData
	KindProtocolVersion
	KindAddressInfo
	KindServerInfo
	KindMapInfo
	KindTeamInfo
	KindScoreInfo
	KindMatchTime
	KindServerReady
	KindMatchEnd

	kindCount // sentinel, keep last
)

var kindNames = [kindCount]string{
	KindAuthCodeRequest:  "authcode_request",
	KindExecuteCallback:  "execute_callback",
	KindHTTPRequest:      "http_request",
	KindPeerConnected:    "peer_connected",
	KindPeerDisconnected: "peer_disconnected",
	KindProtocolData:     "protocol_data",
	KindProtocolVersion:  "protocol_version",
	KindAddressInfo:      "address_info",
	KindServerInfo:       "server_info",
	KindMapInfo:          "map_info",
	KindTeamInfo:         "team_info",
	KindScoreInfo:        "score_info",
	KindMatchTime:        "match_time",
	KindServerReady:      "server_ready",
	KindMatchEnd:         "match_end",
}

func (k EventKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Event is one unit of inbound work for the dispatch loop.
type Event interface {
	EventKind() EventKind
}

// peerEvent is implemented by events that carry an identifiable originating
// peer. A handler failure for such an event is isolated by disconnecting
// that peer; a failure on any other event stops the loop.
type peerEvent interface {
	Event
	EventPeer() Peer
}

// AuthCodeRequest asks for a fresh auth code for a login name.
type AuthCodeRequest struct {
	LoginName string
	Peer      *AuthCodeRequester
}

// ExecuteCallback resumes a deferred callback by id. Executing an id that
// is no longer pending is a no-op; the owner may have disconnected first.
type ExecuteCallback struct {
	CallbackID CallbackID
}

// HTTPRequest is an HTTP status probe routed through the queue.
type HTTPRequest struct {
	Path string
	Peer *StatusRequester
}

// PeerConnected announces a freshly accepted peer.
type PeerConnected struct {
	Peer Peer
}

// PeerDisconnected announces that a peer's connection is gone. It is the
// last event the transport emits for that peer.
type PeerDisconnected struct {
	Peer Peer
}

// ProtocolData carries a batch of decoded client requests from a player.
type ProtocolData struct {
	Peer      *Player
	ClientSeq uint32
	Requests  []Request
}

// ProtocolVersion is the launcher's protocol version announcement.
type ProtocolVersion struct {
	Peer    *GameServer
	Version string
}

// AddressInfo reports the game server's own view of its addresses. Either
// field may be empty.
type AddressInfo struct {
	Peer       *GameServer
	ExternalIP string
	InternalIP string
}

// ServerInfo carries the game server's presentation settings. A nil
// PasswordHash means the server is unlocked.
type ServerInfo struct {
	Peer         *GameServer
	Description  string
	MOTD         string
	Mode         string
	PasswordHash []byte
}

// MapInfo reports the currently loaded map.
type MapInfo struct {
	Peer  *GameServer
	MapID int
}

// TeamInfo maps player unique IDs to team IDs on the emitting server.
type TeamInfo struct {
	Peer         *GameServer
	PlayerToTeam map[int]int
}

// ScoreInfo reports the running match score.
type ScoreInfo struct {
	Peer    *GameServer
	BEScore int
	DSScore int
}

// MatchTime reports the match clock.
type MatchTime struct {
	Peer             *GameServer
	SecondsRemaining int
	Counting         bool
}

// ServerReady reports the port players should join on; port 0 means the
// server is not ready.
type ServerReady struct {
	Peer *GameServer
	Port int
}

// MatchEnd announces the end of the current match.
type MatchEnd struct {
	Peer *GameServer
}

func (AuthCodeRequest) EventKind() EventKind  { return KindAuthCodeRequest }
func (ExecuteCallback) EventKind() EventKind  { return KindExecuteCallback }
func (HTTPRequest) EventKind() EventKind      { return KindHTTPRequest }
func (PeerConnected) EventKind() EventKind    { return KindPeerConnected }
func (PeerDisconnected) EventKind() EventKind { return KindPeerDisconnected }
func (ProtocolData) EventKind() EventKind     { return KindProtocolData }
func (ProtocolVersion) EventKind() EventKind  { return KindProtocolVersion }
func (AddressInfo) EventKind() EventKind      { return KindAddressInfo }
func (ServerInfo) EventKind() EventKind       { return KindServerInfo }
func (MapInfo) EventKind() EventKind          { return KindMapInfo }
func (TeamInfo) EventKind() EventKind         { return KindTeamInfo }
func (ScoreInfo) EventKind() EventKind        { return KindScoreInfo }
func (MatchTime) EventKind() EventKind        { return KindMatchTime }
func (ServerReady) EventKind() EventKind      { return KindServerReady }
func (MatchEnd) EventKind() EventKind         { return KindMatchEnd }

func (e AuthCodeRequest) EventPeer() Peer  { return e.Peer }
func (e HTTPRequest) EventPeer() Peer      { return e.Peer }
func (e PeerConnected) EventPeer() Peer    { return e.Peer }
func (e PeerDisconnected) EventPeer() Peer { return e.Peer }
func (e ProtocolData) EventPeer() Peer     { return e.Peer }
func (e ProtocolVersion) EventPeer() Peer  { return e.Peer }
func (e AddressInfo) EventPeer() Peer      { return e.Peer }
func (e ServerInfo) EventPeer() Peer       { return e.Peer }
func (e MapInfo) EventPeer() Peer          { return e.Peer }
func (e TeamInfo) EventPeer() Peer         { return e.Peer }
func (e ScoreInfo) EventPeer() Peer        { return e.Peer }
func (e MatchTime) EventPeer() Peer        { return e.Peer }
func (e ServerReady) EventPeer() Peer      { return e.Peer }
func (e MatchEnd) EventPeer() Peer         { return e.Peer }
