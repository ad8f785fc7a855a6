// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

import (
	"fmt"
	"strings"
)

// Login name length bounds.
const (
	MinNameLength = 3
	MaxNameLength = 15
)

// nameAlphabet is the explicit allow-list of bytes a login name may contain.
// Deliberately narrower than printable ASCII: no control or format
// characters, no quoting or path characters.
const nameAlphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"-_.[]() "

var allowedNameBytes [256]bool

func init() {
	for i := 0; i < len(nameAlphabet); i++ {
		allowedNameBytes[nameAlphabet[i]] = true
	}
}

// ValidateLoginName checks a login name against the length bounds and the
// allowed character set. It returns a human readable failure reason, or ""
// when the name is acceptable. Validation failures are user-correctable
// input problems, not errors.
func ValidateLoginName(name string) string {
	if len(name) < MinNameLength {
		return fmt.Sprintf("user name is too short, min length is %d characters", MinNameLength)
	}
	if len(name) > MaxNameLength {
		return fmt.Sprintf("user name is too long, max length is %d characters", MaxNameLength)
	}
	for i := 0; i < len(name); i++ {
		if !allowedNameBytes[name[i]] {
			return "user name contains invalid characters"
		}
	}
	return ""
}

// unverifiedPrefix marks display names of players without a registered
// account. Registered accounts get priority on their own name.
const unverifiedPrefix = "unvrf-"

// maxUnverifiedIndex bounds the collision retry space. Running past it means
// the uniqueness invariant on display names is broken somewhere else.
const maxUnverifiedIndex = 99

// ChooseDisplayName picks the display name for a player logging in with
// loginName. Registered players use their login name truncated to
// MaxNameLength, with no de-duplication against guests. Unregistered players
// get the "unvrf-" prefix; on collision the prefix cycles through "unv02-",
// "unv03-", ... until a free name is found.
//
// namesInUse holds the display names of the other connected players, keyed
// lowercase; candidates are compared case-insensitively to preserve the
// registry's uniqueness invariant.
func ChooseDisplayName(loginName string, registered bool, namesInUse map[string]struct{}) string {
	if registered {
		return truncate(loginName, MaxNameLength)
	}

	base := truncate(loginName, MaxNameLength-len(unverifiedPrefix))
	name := unverifiedPrefix + base
	for index := 2; ; index++ {
		if _, taken := namesInUse[strings.ToLower(name)]; !taken {
			return name
		}
		if index > maxUnverifiedIndex {
			panic(fmt.Sprintf("no free display name for %q after %d attempts", loginName, maxUnverifiedIndex))
		}
		name = fmt.Sprintf("unv%02d-%s", index, base)
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
