// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLoginName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantOK bool
	}{
		{"minimum length", "abc", true},
		{"maximum length", strings.Repeat("a", 15), true},
		{"digits and specials", "kate_9[x] (ok)", true},
		{"too short", "ab", false},
		{"too long", strings.Repeat("a", 16), false},
		{"control character", "ka\tte", false},
		{"quote character", `ka"te`, false},
		{"non-ascii", "käte", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := ValidateLoginName(tt.input)
			if tt.wantOK {
				assert.Empty(t, reason)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestChooseDisplayName_Registered(t *testing.T) {
	inUse := map[string]struct{}{}

	t.Run("keeps login name", func(t *testing.T) {
		assert.Equal(t, "kate", ChooseDisplayName("kate", true, inUse))
	})

	t.Run("truncates to max length", func(t *testing.T) {
		long := strings.Repeat("x", 20)
		got := ChooseDisplayName(long, true, inUse)
		assert.Equal(t, strings.Repeat("x", MaxNameLength), got)
	})

	t.Run("no de-duplication against guests", func(t *testing.T) {
		taken := map[string]struct{}{"kate": {}}
		assert.Equal(t, "kate", ChooseDisplayName("kate", true, taken))
	})
}

func TestChooseDisplayName_Unregistered(t *testing.T) {
	t.Run("gets unverified prefix", func(t *testing.T) {
		got := ChooseDisplayName("kate", false, map[string]struct{}{})
		assert.Equal(t, "unvrf-kate", got)
	})

	t.Run("prefixed name is truncated to max length", func(t *testing.T) {
		long := strings.Repeat("x", 20)
		got := ChooseDisplayName(long, false, map[string]struct{}{})
		assert.Len(t, got, MaxNameLength)
		assert.True(t, strings.HasPrefix(got, "unvrf-"))
	})

	t.Run("collision cycles through numbered prefixes", func(t *testing.T) {
		inUse := map[string]struct{}{
			"unvrf-kate": {},
			"unv02-kate": {},
		}
		got := ChooseDisplayName("kate", false, inUse)
		assert.Equal(t, "unv03-kate", got)
	})

	t.Run("comparison is case-insensitive", func(t *testing.T) {
		inUse := map[string]struct{}{"unvrf-kate": {}}
		got := ChooseDisplayName("KATE", false, inUse)
		assert.Equal(t, "unv02-KATE", got)
	})

	t.Run("panics when the retry space is exhausted", func(t *testing.T) {
		inUse := map[string]struct{}{"unvrf-kate": {}}
		for i := 2; i <= 99; i++ {
			inUse[fmt.Sprintf("unv%02d-kate", i)] = struct{}{}
		}
		assert.Panics(t, func() {
			ChooseDisplayName("kate", false, inUse)
		})
	})
}
