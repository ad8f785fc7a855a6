// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/driftgate/driftgate/internal/account"
)

// requestHandler processes one request for a player in some state. It runs
// on the dispatch loop.
type requestHandler func(ctx context.Context, s *Server, p *Player, req Request) error

// State is one step of the player lifecycle. Each state declares the set of
// request codes it accepts; a code outside that set is a protocol
// violation.
type State struct {
	Name     string
	handlers map[RequestCode]requestHandler
}

func (st *State) handle(ctx context.Context, s *Server, p *Player, req Request) error {
	handler, ok := st.handlers[req.Code]
	if !ok {
		return oops.Code("PROTOCOL_VIOLATION").
			With("state", st.Name).
			With("request_code", int(req.Code)).
			Wrap(ErrProtocolViolation)
	}
	return handler(ctx, s, p, req)
}

// Accepts reports whether the state accepts the given request code.
func (st *State) Accepts(code RequestCode) bool {
	_, ok := st.handlers[code]
	return ok
}

// The player lifecycle states. Offline is terminal and accepts nothing.
var (
	Unauthenticated = &State{
		Name: "unauthenticated",
		handlers: map[RequestCode]requestHandler{
			ReqHandshake: handleHandshake,
			ReqKeepalive: handleKeepalive,
			ReqLogin:     handleLogin,
		},
	}

	Authenticated = &State{
		Name: "authenticated",
		handlers: map[RequestCode]requestHandler{
			ReqKeepalive:  handleKeepalive,
			ReqServerList: handleServerList,
		},
	}

	Offline = &State{Name: "offline"}
)

func handleHandshake(_ context.Context, _ *Server, p *Player, _ Request) error {
	return p.Send(HandshakeAck{})
}

func handleKeepalive(_ context.Context, _ *Server, p *Player, _ Request) error {
	return p.Send(KeepaliveAck{})
}

// handleLogin implements the login algorithm. A request without a password
// hash is a login name probe and only gets an acknowledgement. An actual
// attempt validates the name, matches it against the account store,
// re-keys the player onto the account's unique ID on success, resolves the
// display name and transitions to Authenticated.
func handleLogin(ctx context.Context, s *Server, p *Player, req Request) error {
	if req.PasswordHash == nil {
		return p.Send(LoginProbeAck{})
	}

	p.LoginName = req.LoginName
	p.PasswordHash = req.PasswordHash

	if reason := ValidateLoginName(p.LoginName); reason != "" {
		slog.Info("rejected login attempt",
			"login_name", p.LoginName,
			"reason", reason,
		)
		s.countLogin("invalid_name")
		return p.Send(LoginResult{Success: false, Reason: ReasonLoginInfoInvalid})
	}

	acct, err := s.accounts.GetByLoginName(ctx, p.LoginName)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		return oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("login_name", p.LoginName).
			Wrap(err)
	}

	if acct != nil {
		matched, matchErr := matchAccount(ctx, s, p, acct, req.AuthCode)
		if matchErr != nil {
			return matchErr
		}
		if matched {
			if err := s.players.ChangeUniqueID(p.UniqueID, acct.UniqueID); err != nil {
				if errors.Is(err, ErrAlreadyLoggedIn) {
					slog.Warn("rejected login, account already connected",
						"login_name", p.LoginName,
						"unique_id", acct.UniqueID,
					)
					s.countLogin("already_logged_in")
					return p.Send(LoginResult{Success: false, Reason: ReasonAlreadyLoggedIn})
				}
				return err
			}
			p.Registered = true
		}
	}

	p.DisplayName = ChooseDisplayName(p.LoginName, p.Registered, s.players.DisplayNamesInUse(p))

	if s.stateLoader != nil {
		if err := s.stateLoader.LoadPlayer(ctx, p); err != nil {
			return oops.Code("PLAYER_STATE_LOAD_FAILED").
				With("login_name", p.LoginName).
				Wrap(err)
		}
	}

	p.setState(Authenticated)
	p.Friends.Announce(p.DisplayName)
	s.countLogin("success")
	slog.Info("player logged in",
		"login_name", p.LoginName,
		"display_name", p.DisplayName,
		"unique_id", p.UniqueID,
		"registered", p.Registered,
	)

	return p.Send(LoginResult{
		Success:     true,
		UniqueID:    p.UniqueID,
		DisplayName: p.DisplayName,
		Registered:  p.Registered,
		MenuData:    s.menuData,
	})
}

// matchAccount decides whether the login attempt owns acct. A registered
// account matches on password hash equality. Failing that, a supplied auth
// code that verifies against the stored hash binds the new password hash to
// the account: this is both first registration and password reset.
func matchAccount(ctx context.Context, s *Server, p *Player, acct *account.Account, authCode string) (bool, error) {
	if acct.PasswordHash != nil && bytes.Equal(acct.PasswordHash, p.PasswordHash) {
		return true, nil
	}

	if authCode == "" || acct.AuthCodeHash == "" {
		return false, nil
	}

	ok, err := account.VerifyAuthCode(authCode, acct.AuthCodeHash)
	if err != nil {
		return false, oops.Code("AUTHCODE_VERIFY_FAILED").
			With("login_name", acct.LoginName).
			Wrap(err)
	}
	if !ok {
		slog.Info("auth code mismatch on registration attempt",
			"login_name", acct.LoginName,
		)
		return false, nil
	}

	if err := s.accounts.CompleteRegistration(ctx, acct.LoginName, p.PasswordHash); err != nil {
		return false, oops.Code("REGISTRATION_FAILED").
			With("login_name", acct.LoginName).
			Wrap(err)
	}
	slog.Info("registration completed", "login_name", acct.LoginName)
	return true, nil
}

func handleServerList(_ context.Context, s *Server, p *Player, _ Request) error {
	servers := s.gameServers.All()
	entries := make([]ServerListEntry, 0, len(servers))
	for _, gs := range servers {
		if !gs.Joinable {
			continue
		}
		entries = append(entries, ServerListEntry{
			ServerID:    gs.ServerID,
			MatchID:     gs.MatchID,
			Address:     s.advertiseAddress(gs),
			Port:        gs.Port,
			Description: gs.Description,
			MOTD:        gs.MOTD,
			Mode:        gs.Mode,
			MapID:       gs.MapID,
			Locked:      gs.Locked(),
			PlayerCount: gs.PlayerCount(),
		})
	}
	return p.Send(ServerList{Servers: entries})
}
