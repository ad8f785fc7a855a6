// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package account

import (
	"context"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// MemoryStore keeps accounts in process memory. It backs tests and
// development runs, and serves as the working set of FileStore.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by lowercased login name
	nextID   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		nextID:   uniqueIDFloor,
	}
}

// GetByLoginName returns a copy of the account under loginName.
func (s *MemoryStore) GetByLoginName(_ context.Context, loginName string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[strings.ToLower(loginName)]
	if !ok {
		return nil, oops.With("login_name", loginName).Wrap(ErrNotFound)
	}
	return copyAccount(acct), nil
}

// AddAccount issues authCode for loginName, creating the account on first
// use.
func (s *MemoryStore) AddAccount(_ context.Context, loginName, authCode string) error {
	codeHash, err := HashAuthCode(authCode)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(loginName)
	if acct, ok := s.accounts[key]; ok {
		acct.AuthCodeHash = codeHash
		return nil
	}

	s.accounts[key] = &Account{
		LoginName:    loginName,
		UniqueID:     s.nextID,
		AuthCodeHash: codeHash,
	}
	s.nextID++
	return nil
}

// CompleteRegistration binds passwordHash and consumes the auth code.
func (s *MemoryStore) CompleteRegistration(_ context.Context, loginName string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(loginName)]
	if !ok {
		return oops.With("login_name", loginName).Wrap(ErrNotFound)
	}
	acct.PasswordHash = append([]byte(nil), passwordHash...)
	acct.AuthCodeHash = ""
	return nil
}

// Save is a no-op: memory is the storage.
func (s *MemoryStore) Save(_ context.Context) error {
	return nil
}

// Len reports the number of accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// snapshot returns a stable copy of all accounts, ordered by unique ID.
func (s *MemoryStore) snapshot() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, *copyAccount(acct))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].UniqueID > out[j].UniqueID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// load replaces the working set. Duplicate login names (case-insensitive)
// are rejected.
func (s *MemoryStore) load(accounts []Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := uniqueIDFloor
	loaded := make(map[string]*Account, len(accounts))
	for i := range accounts {
		acct := accounts[i]
		key := strings.ToLower(acct.LoginName)
		if _, dup := loaded[key]; dup {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("login_name", acct.LoginName).
				Errorf("duplicate login name in account data")
		}
		loaded[key] = copyAccount(&acct)
		if acct.UniqueID >= next {
			next = acct.UniqueID + 1
		}
	}

	s.accounts = loaded
	s.nextID = next
	return nil
}

func copyAccount(a *Account) *Account {
	dup := *a
	if a.PasswordHash != nil {
		dup.PasswordHash = append([]byte(nil), a.PasswordHash...)
	}
	return &dup
}

var _ Store = (*MemoryStore)(nil)
