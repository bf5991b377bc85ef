package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"account-ledger/internal/domain"
)

const (
	fileStorageName = "json_snapshot"
	snapshotVersion = 1
)

type snapshotMeta struct {
	Storage   string    `json:"storage"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type snapshotFile struct {
	Meta     snapshotMeta     `json:"_meta"`
	Accounts []domain.Account `json:"accounts"`
}

// FileStore keeps the ledger snapshot in a single JSON document.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) ([]domain.Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrCorruptSnapshot, s.path, err)
	}
	if snap.Meta.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %s has version %d, want %d", domain.ErrCorruptSnapshot, s.path, snap.Meta.Version, snapshotVersion)
	}
	if err := validateAccounts(snap.Accounts); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptSnapshot, s.path, err)
	}

	s.logger.Debug("Snapshot loaded", "path", s.path, "accounts", len(snap.Accounts))
	return snap.Accounts, nil
}

// Save writes the snapshot to a temporary file in the same directory and
// renames it over the previous one.
func (s *FileStore) Save(_ context.Context, accounts []domain.Account) error {
	if accounts == nil {
		accounts = []domain.Account{}
	}
	snap := snapshotFile{
		Meta: snapshotMeta{
			Storage:   fileStorageName,
			Version:   snapshotVersion,
			Timestamp: time.Now().UTC(),
		},
		Accounts: accounts,
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}

	s.logger.Debug("Snapshot saved", "path", s.path, "accounts", len(accounts))
	return nil
}

// Ping checks that the snapshot directory is reachable.
func (s *FileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("snapshot directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("snapshot directory %s is not a directory", dir)
	}
	return nil
}

func validateAccounts(accounts []domain.Account) error {
	seen := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			return err
		}
		if _, dup := seen[a.AccountNumber]; dup {
			return fmt.Errorf("duplicate account number %s", a.AccountNumber)
		}
		seen[a.AccountNumber] = struct{}{}
	}
	return nil
}
