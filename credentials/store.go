package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lexia/models"

	"github.com/jinzhu/gorm"
)

// TokenStore persists the current TokenSet.
// Load returns (nil, nil) when nothing has been stored yet.
type TokenStore interface {
	Load(ctx context.Context) (*models.TokenSet, error)
	Save(ctx context.Context, ts models.TokenSet) error
}

// FileTokenStore keeps the TokenSet as a JSON file.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Path() string { return s.path }

func (s *FileTokenStore) Load(ctx context.Context) (*models.TokenSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var ts models.TokenSet
	if err := json.Unmarshal(b, &ts); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", s.path, err)
	}
	return &ts, nil
}

// Save writes through a temp file and a rename so a crash never leaves a
// half-written token file behind.
func (s *FileTokenStore) Save(ctx context.Context, ts models.TokenSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// DBTokenStore keeps the TokenSet in the kommo_tokens table (one row).
type DBTokenStore struct {
	db *gorm.DB
}

func NewDBTokenStore(db *gorm.DB) *DBTokenStore {
	return &DBTokenStore{db: db}
}

func (s *DBTokenStore) Load(ctx context.Context) (*models.TokenSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var row models.KommoToken
	err := s.db.Order("id desc").First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	ts := row.ToTokenSet()
	return &ts, nil
}

func (s *DBTokenStore) Save(ctx context.Context, ts models.TokenSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	updated := ts.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	row := models.KommoToken{
		AccessToken:  ts.AccessToken,
		RefreshToken: ts.RefreshToken,
		ExpiresIn:    ts.ExpiresIn,
		UpdatedAt:    &updated,
	}

	tx := s.db.Begin()
	if err := tx.Delete(&models.KommoToken{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("clear tokens: %w", err)
	}
	if err := tx.Create(&row).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("save tokens: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("commit tokens: %w", err)
	}
	return nil
}

// MemoryTokenStore is a process-local store.
type MemoryTokenStore struct {
	mu sync.Mutex
	ts *models.TokenSet
}

func NewMemoryTokenStore(initial *models.TokenSet) *MemoryTokenStore {
	s := &MemoryTokenStore{}
	if initial != nil {
		cp := *initial
		s.ts = &cp
	}
	return s
}

func (s *MemoryTokenStore) Load(ctx context.Context) (*models.TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ts == nil {
		return nil, nil
	}
	cp := *s.ts
	return &cp, nil
}

func (s *MemoryTokenStore) Save(ctx context.Context, ts models.TokenSet) error {
	s.mu.Lock()
	s.ts = &ts
	s.mu.Unlock()
	return nil
}
