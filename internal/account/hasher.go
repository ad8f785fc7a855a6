// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package account

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters for auth codes at rest. Codes are short-lived and
// high-entropy, so the cheap end of the OWASP range is enough.
const (
	authCodeTime    = 1
	authCodeMemory  = 32 * 1024 // KiB
	authCodeThreads = 2
	authCodeSaltLen = 16
	authCodeKeyLen  = 32
)

// HashAuthCode hashes an issued auth code for storage, PHC-encoded.
func HashAuthCode(code string) (string, error) {
	if code == "" {
		return "", oops.Code("AUTHCODE_EMPTY").Errorf("auth code cannot be empty")
	}

	salt := make([]byte, authCodeSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTHCODE_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(code), salt, authCodeTime, authCodeMemory, authCodeThreads, authCodeKeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		authCodeMemory,
		authCodeTime,
		authCodeThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyAuthCode checks code against a stored PHC-encoded hash. It returns
// (false, nil) on a plain mismatch; an error means the stored hash itself is
// unusable.
func VerifyAuthCode(code, encodedHash string) (bool, error) {
	var (
		version         int
		memory, t       uint32
		threads         uint32
		saltB64, keyB64 string
	)
	n, err := fmt.Sscanf(encodedHash, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		&version, &memory, &t, &threads, &saltB64)
	if err != nil || n != 5 {
		return false, oops.Code("AUTHCODE_INVALID_HASH").Errorf("malformed auth code hash")
	}

	// Sscanf's %s is greedy; split the trailing salt$key pair ourselves.
	for i := 0; i < len(saltB64); i++ {
		if saltB64[i] == '$' {
			keyB64 = saltB64[i+1:]
			saltB64 = saltB64[:i]
			break
		}
	}
	if keyB64 == "" {
		return false, oops.Code("AUTHCODE_INVALID_HASH").Errorf("malformed auth code hash")
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, oops.Code("AUTHCODE_INVALID_HASH").Wrap(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(keyB64)
	if err != nil {
		return false, oops.Code("AUTHCODE_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 || len(expected) == 0 {
		return false, oops.Code("AUTHCODE_INVALID_HASH").Errorf("hash parameters out of range")
	}

	computed := argon2.IDKey([]byte(code), salt, t, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
