// Package file implements file-based storage using JSON files.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/mkb69/aaxconnect/internal/domain"
	aaxerrors "github.com/mkb69/aaxconnect/internal/errors"
	"github.com/mkb69/aaxconnect/internal/store"
)

// asinPattern keeps license file names to the catalog id alphabet.
var asinPattern = regexp.MustCompile(`^[0-9A-Za-z]+$`)

// Store implements store.Store using JSON files for persistence.
type Store struct {
	dataDir string
	mu      sync.RWMutex

	auth     *authRepository
	licenses *licenseRepository
}

// NewStore creates a new file-based store rooted at dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{dataDir: dataDir}
	s.auth = &authRepository{store: s}
	s.licenses = &licenseRepository{store: s}
	return s, nil
}

func (s *Store) Auth() store.AuthRepository        { return s.auth }
func (s *Store) Licenses() store.LicenseRepository { return s.licenses }
func (s *Store) Close() error                      { return nil }

// Helper methods for file operations

func (s *Store) filePath(name string) string {
	return filepath.Join(s.dataDir, name+".json")
}

func (s *Store) readFile(name string, v any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.filePath(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

func (s *Store) writeFile(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return aaxerrors.Wrap(err, aaxerrors.CodeEncoding, "serialize "+name)
	}
	return os.WriteFile(s.filePath(name), data, 0600)
}

// Auth Repository

type authRepository struct {
	store *Store
}

func (r *authRepository) Save(ctx context.Context, record *store.AuthRecord) error {
	return r.store.writeFile("auth", record)
}

func (r *authRepository) Load(ctx context.Context) (*store.AuthRecord, error) {
	var record store.AuthRecord
	found, err := r.store.readFile("auth", &record)
	if err != nil {
		return nil, aaxerrors.InvalidAuthData("persisted credentials are malformed", err)
	}
	if !found {
		return nil, aaxerrors.NotFound("persisted credentials")
	}
	if record.Credentials == nil || record.Credentials.AdpToken == "" || record.Credentials.RefreshToken == "" {
		return nil, aaxerrors.InvalidAuthData("persisted credentials are incomplete", nil)
	}
	return &record, nil
}

func (r *authRepository) Delete(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	err := os.Remove(r.store.filePath("auth"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// License Repository

type licenseRepository struct {
	store *Store
}

func (r *licenseRepository) fileName(asin string) (string, error) {
	if !asinPattern.MatchString(asin) {
		return "", aaxerrors.New(aaxerrors.CodeEncoding, "invalid asin: "+asin)
	}
	return "license_" + asin, nil
}

func (r *licenseRepository) Save(ctx context.Context, asin string, info *domain.LicenseInfo) error {
	name, err := r.fileName(asin)
	if err != nil {
		return err
	}
	return r.store.writeFile(name, info)
}

func (r *licenseRepository) Load(ctx context.Context, asin string) (*domain.LicenseInfo, error) {
	name, err := r.fileName(asin)
	if err != nil {
		return nil, err
	}

	var info domain.LicenseInfo
	found, err := r.store.readFile(name, &info)
	if err != nil {
		return nil, aaxerrors.Decoding("persisted license is malformed", err)
	}
	if !found {
		return nil, aaxerrors.NotFound("license for " + asin)
	}
	return &info, nil
}
