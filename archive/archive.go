package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lexia/models"
	"lexia/tools"

	"github.com/jinzhu/gorm"
)

// Entry is one webhook delivery as received.
type Entry struct {
	ContentType string
	Raw         []byte
	Payload     map[string]any
	ReceivedAt  time.Time
}

// Archive stores webhook deliveries for diagnostics.
type Archive interface {
	Archive(ctx context.Context, e Entry) error
}

// FileArchive writes each payload, pretty-printed, to
// {dir}/webhook_<timestamp>.json.
type FileArchive struct {
	dir string
}

func NewFileArchive(dir string) *FileArchive {
	return &FileArchive{dir: dir}
}

// FileName returns the name used for a delivery received at t, e.g.
// webhook_2026-03-01T12-00-00-000Z.json.
func FileName(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return "webhook_" + ts + ".json"
}

func (a *FileArchive) Archive(ctx context.Context, e Entry) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	var body []byte
	if e.Payload != nil {
		b, err := json.MarshalIndent(e.Payload, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = b
	} else {
		body = e.Raw
	}

	path := filepath.Join(a.dir, FileName(e.ReceivedAt))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// DBArchive appends an Event row per delivery.
type DBArchive struct {
	db *gorm.DB
}

func NewDBArchive(db *gorm.DB) *DBArchive {
	return &DBArchive{db: db}
}

func (a *DBArchive) Archive(ctx context.Context, e Entry) error {
	received := e.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	ev := models.Event{
		PayloadHash: tools.EncryptTextSHA512(string(e.Raw)),
		ContentType: e.ContentType,
		Payload:     string(e.Raw),
		CreatedAt:   &received,
	}
	if err := a.db.Create(&ev).Error; err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Multi fans an entry out to every sink; one failing sink does not stop the
// others.
type Multi struct {
	sinks  map[string]Archive
	order  []string
	logger *slog.Logger
}

func NewMulti(logger *slog.Logger) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sinks: map[string]Archive{}, logger: logger.With("component", "archive")}
}

// Add registers a named sink. Re-adding a name replaces the sink.
func (m *Multi) Add(name string, a Archive) {
	if _, ok := m.sinks[name]; !ok {
		m.order = append(m.order, name)
	}
	m.sinks[name] = a
}

func (m *Multi) Len() int { return len(m.order) }

func (m *Multi) Archive(ctx context.Context, e Entry) error {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}

	var errs []error
	for _, name := range m.order {
		if err := m.sinks[name].Archive(ctx, e); err != nil {
			m.logger.Warn("archive sink failed", "sink", name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		m.logger.Debug("payload archived", "sink", name)
	}
	return errors.Join(errs...)
}
