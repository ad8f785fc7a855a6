// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

import "errors"

// ErrAlreadyLoggedIn is returned when a login would take over a unique ID
// that is already held by a connected player. The login is rejected; the
// connection stays up.
var ErrAlreadyLoggedIn = errors.New("account already logged in")

// ErrProtocolViolation marks inbound data inconsistent with the protocol or
// the peer's current state. The dispatch loop isolates it by disconnecting
// the offending peer.
var ErrProtocolViolation = errors.New("protocol violation")
