package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	dbpkg "lexia/db"
	"lexia/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func TestFileTokenStore_MissingFile(t *testing.T) {
	s := NewFileTokenStore(filepath.Join(t.TempDir(), ".tokens.json"))
	ts, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != nil {
		t.Errorf("expected nil, got %+v", ts)
	}
}

func TestFileTokenStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", ".tokens.json")
	s := NewFileTokenStore(path)

	want := models.TokenSet{AccessToken: "a", RefreshToken: "r", ExpiresIn: 86400, UpdatedAt: fixedNow}
	if err := s.Save(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.AccessToken != "a" || got.RefreshToken != "r" || got.ExpiresIn != 86400 || !got.UpdatedAt.Equal(fixedNow) {
		t.Errorf("unexpected token set %+v", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	// overwrite replaces the whole set
	if err := s.Save(context.Background(), models.TokenSet{AccessToken: "b", RefreshToken: "r2"}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Load(context.Background())
	if got.AccessToken != "b" || got.RefreshToken != "r2" || got.ExpiresIn != 0 {
		t.Errorf("expected replaced set, got %+v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestFileTokenStore_CorruptFileBlocksRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileTokenStore(path)
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}

	m := newTestManager("http://unused", s, NewTokenCell("cached"), nil)
	if _, err := m.RefreshAccessToken(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("expected ErrNoRefreshToken, got %v", err)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// :memory: is per connection
	db.DB().SetMaxOpenConns(1)
	if err := dbpkg.Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBTokenStore_SaveReplacesRow(t *testing.T) {
	db := openTestDB(t)
	s := NewDBTokenStore(db)

	if ts, err := s.Load(context.Background()); err != nil || ts != nil {
		t.Fatalf("expected empty store, got %+v %v", ts, err)
	}

	first := models.TokenSet{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 60, UpdatedAt: fixedNow}
	second := models.TokenSet{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 120, UpdatedAt: fixedNow.Add(time.Hour)}
	if err := s.Save(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "a2" || got.RefreshToken != "r2" || got.ExpiresIn != 120 {
		t.Errorf("unexpected set %+v", got)
	}

	var count int
	db.Model(&models.KommoToken{}).Count(&count)
	if count != 1 {
		t.Errorf("expected a single row, got %d", count)
	}
}
