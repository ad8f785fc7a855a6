// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package account

import (
	"context"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// fileRecord is the on-disk shape of one account. Password hashes are hex
// encoded so the file stays greppable.
type fileRecord struct {
	LoginName    string `yaml:"login_name"`
	PasswordHash string `yaml:"password_hash,omitempty"`
	UniqueID     int    `yaml:"unique_id"`
	AuthCodeHash string `yaml:"auth_code_hash,omitempty"`
}

// FileStore persists accounts to a single YAML file. Reads and mutations
// hit the in-memory working set; Save rewrites the file atomically via a
// temp file and rename.
type FileStore struct {
	*MemoryStore
	path string
}

// OpenFileStore loads the account file at path, creating an empty store
// when the file does not exist yet.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		MemoryStore: NewMemoryStore(),
		path:        path,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FILE_READ_FAILED").With("path", path).Wrap(err)
	}

	var records []fileRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, oops.Code("ACCOUNT_FILE_PARSE_FAILED").With("path", path).Wrap(err)
	}

	accounts := make([]Account, 0, len(records))
	for _, rec := range records {
		acct := Account{
			LoginName:    rec.LoginName,
			UniqueID:     rec.UniqueID,
			AuthCodeHash: rec.AuthCodeHash,
		}
		if rec.PasswordHash != "" {
			hash, err := hex.DecodeString(rec.PasswordHash)
			if err != nil {
				return nil, oops.Code("ACCOUNT_FILE_PARSE_FAILED").
					With("path", path).
					With("login_name", rec.LoginName).
					Wrap(err)
			}
			acct.PasswordHash = hash
		}
		accounts = append(accounts, acct)
	}

	if err := s.load(accounts); err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return s, nil
}

// Save rewrites the account file from the working set.
func (s *FileStore) Save(_ context.Context) error {
	snapshot := s.snapshot()
	records := make([]fileRecord, 0, len(snapshot))
	for _, acct := range snapshot {
		records = append(records, fileRecord{
			LoginName:    acct.LoginName,
			PasswordHash: hex.EncodeToString(acct.PasswordHash),
			UniqueID:     acct.UniqueID,
			AuthCodeHash: acct.AuthCodeHash,
		})
	}

	data, err := yaml.Marshal(records)
	if err != nil {
		return oops.Code("ACCOUNT_FILE_ENCODE_FAILED").Wrap(err)
	}

	// Write-and-rename so a crash mid-save never truncates the live file.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".accounts-*.yaml")
	if err != nil {
		return oops.Code("ACCOUNT_FILE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return oops.Code("ACCOUNT_FILE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return oops.Code("ACCOUNT_FILE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return oops.Code("ACCOUNT_FILE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
