// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

import (
	"crypto/rand"
	"math/big"

	"github.com/samber/oops"
)

// authCodeAlphabet is letters and digits minus the visually ambiguous
// O, 0, I and l.
const authCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ" +
	"abcdefghijkmnopqrstuvwxyz" +
	"123456789"

// AuthCodeLength is the number of characters in an issued auth code.
const AuthCodeLength = 8

// GenerateAuthCode returns a new random auth code.
func GenerateAuthCode() (string, error) {
	max := big.NewInt(int64(len(authCodeAlphabet)))
	code := make([]byte, AuthCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", oops.Code("AUTHCODE_RANDOM_FAILED").Wrap(err)
		}
		code[i] = authCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
