// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

// RequestCode identifies a client request within a ProtocolData batch. The
// values mirror the game's wire protocol idents; decoding the binary
// structures themselves is the codec's job, not ours.
type RequestCode uint16

// Request codes the state machine knows about.
const (
	ReqKeepalive  RequestCode = 0x0033
	ReqHandshake  RequestCode = 0x01bc
	ReqLogin      RequestCode = 0x003a
	ReqServerList RequestCode = 0x00d5
)

// Request is a single client request, already decoded by the transport
// layer. Field presence depends on the code:
//
//   - ReqLogin: LoginName always set; PasswordHash nil marks a login name
//     probe; AuthCode set when completing a pending registration.
//   - other codes carry no fields.
type Request struct {
	Code         RequestCode
	LoginName    string
	PasswordHash []byte
	AuthCode     string
}
