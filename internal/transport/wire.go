// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package transport

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/driftgate/driftgate/internal/login"
)

// The wire format is one JSON envelope per line. This is a framing adapter
// over the coordinator's event vocabulary, not the game's binary codec.

// playerEnvelope is one inbound line on a player connection.
type playerEnvelope struct {
	Seq      uint32        `json:"seq"`
	Requests []wireRequest `json:"requests"`
}

type wireRequest struct {
	Code         uint16 `json:"code"`
	LoginName    string `json:"login_name,omitempty"`
	PasswordHash []byte `json:"password_hash,omitempty"`
	AuthCode     string `json:"auth_code,omitempty"`
}

// decodePlayerData turns one player line into a ProtocolData event.
func decodePlayerData(p *login.Player, line []byte) (login.ProtocolData, error) {
	var env playerEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return login.ProtocolData{}, oops.Code("WIRE_DECODE_FAILED").Wrap(err)
	}

	requests := make([]login.Request, 0, len(env.Requests))
	for _, r := range env.Requests {
		requests = append(requests, login.Request{
			Code:         login.RequestCode(r.Code),
			LoginName:    r.LoginName,
			PasswordHash: r.PasswordHash,
			AuthCode:     r.AuthCode,
		})
	}

	return login.ProtocolData{
		Peer:      p,
		ClientSeq: env.Seq,
		Requests:  requests,
	}, nil
}

// launcherEnvelope is one inbound line on a game server launcher
// connection.
type launcherEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// decodeLauncherEvent turns one launcher line into its event. Unknown event
// names are a protocol violation.
func decodeLauncherEvent(gs *login.GameServer, line []byte) (login.Event, error) {
	var env launcherEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, oops.Code("WIRE_DECODE_FAILED").Wrap(err)
	}

	unmarshal := func(v any) error {
		if len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, v); err != nil {
			return oops.Code("WIRE_DECODE_FAILED").With("event", env.Event).Wrap(err)
		}
		return nil
	}

	switch env.Event {
	case "protocol_version":
		var data struct {
			Version string `json:"version"`
		}
		if err := unmarshal(&data); err != nil {
			return nil, err
		}
		return login.ProtocolVersion{Peer: gs, Version: data.Version}, nil

	case "address_info":
		var data struct {
			ExternalIP string `json:"external_ip"`
			InternalIP string `json:"internal_ip"`
		}
		if err := unmarshal(&data); err != nil {
			return nil, err
		}
		return login.AddressInfo{Peer: gs, ExternalIP: data.ExternalIP, InternalIP: data.InternalIP}, nil

	case "server_info":
		var data struct {
			Description  string `json:"description"`
			MOTD         string `json:"motd"`
			Mode         string `json:"mode"`
			PasswordHash []byte `json:"password_hash,omitempty"`
		}
		if err := unmarshal(&data); err != nil {
			return nil, err
		}
		return login.ServerInfo{
			Peer:         gs,
			Description:  data.Description,
			MOTD:         data.MOTD,
			Mode:         data.Mode,
			PasswordHash: data.PasswordHash,
		}, nil

	case "map_info":
		var data struct {
			MapID int `json:"map_id"`
		}
		if err := unmarshal(&data); err != nil {
			return nil, err
		}
		return login.MapInfo{Peer: gs, MapID: data.MapID}, nil

	case "team_info":
		var data struct {
			PlayerToTeam map[int]int `json:"player_to_team"`
		}
		if err := unmarshal(&data); err != nil {
			return nil, err
		}
		return login.TeamInfo{Peer: gs, PlayerToTeam: data.PlayerToTeam}, nil

	case "score_info":
		var data struct {
			BEScore int `json:"be_score"`
			DSScore int `json:"ds_score"`
		}
		if err := unmarshal(&data); err != nil {
			return nil, err
		}
		return login.ScoreInfo{Peer: gs, BEScore: data.BEScore, DSScore: data.DSScore}, nil

	case "match_time":
		var data struct {
			SecondsRemaining int  `json:"seconds_remaining"`
			Counting         bool `json:"counting"`
		}
		if err := unmarshal(&data); err != nil {
			return nil, err
		}
		return login.MatchTime{Peer: gs, SecondsRemaining: data.SecondsRemaining, Counting: data.Counting}, nil

	case "server_ready":
		var data struct {
			Port int `json:"port"`
		}
		if err := unmarshal(&data); err != nil {
			return nil, err
		}
		return login.ServerReady{Peer: gs, Port: data.Port}, nil

	case "match_end":
		return login.MatchEnd{Peer: gs}, nil

	default:
		return nil, oops.Code("WIRE_UNKNOWN_EVENT").
			With("event", env.Event).
			Errorf("unknown launcher event %q", env.Event)
	}
}

// outEnvelope is one outbound line. Type identifies the message so clients
// can dispatch without reflection.
type outEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// encodeMessage wraps an outbound message in its envelope. Plain strings
// (auth codes, status bodies, error replies) pass through as raw lines.
func encodeMessage(msg any) ([]byte, error) {
	if s, ok := msg.(string); ok {
		return []byte(s), nil
	}

	name, ok := messageName(msg)
	if !ok {
		return nil, oops.Code("WIRE_ENCODE_FAILED").Errorf("unencodable message type %T", msg)
	}

	data, err := json.Marshal(outEnvelope{Type: name, Data: msg})
	if err != nil {
		return nil, oops.Code("WIRE_ENCODE_FAILED").With("type", name).Wrap(err)
	}
	return data, nil
}

func messageName(msg any) (string, bool) {
	switch msg.(type) {
	case login.HandshakeAck:
		return "handshake_ack", true
	case login.KeepaliveAck:
		return "keepalive_ack", true
	case login.LoginProbeAck:
		return "login_probe_ack", true
	case login.LoginResult:
		return "login_result", true
	case login.ServerList:
		return "server_list", true
	case login.VersionNotice:
		return "version_notice", true
	default:
		return "", false
	}
}
