// Package prefs stores per-account display preferences in a local SQLite file.
package prefs

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/vietddude/commune/internal/metrics"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	KeyLanguage = "language"
	emojiPrefix = "emoji:"
	maxValueLen = 64
)

var (
	ErrNotFound     = errors.New("preference not set")
	ErrInvalidKey   = errors.New("unknown preference key")
	ErrInvalidValue = errors.New("invalid preference value")
)

// EmojiKey is the preference key holding the emoji of a list item.
func EmojiKey(item string) string {
	return emojiPrefix + item
}

type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens or creates the preferences database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create preferences dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open preferences: %w", err)
	}
	// SQLite allows one writer
	db.SetMaxOpenConns(1)

	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.DB, sub)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preferences migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("preferences migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value of key for account.
func (s *Store) Get(ctx context.Context, account, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM preferences WHERE account = ? AND key = ?`, normalize(account), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get preference: %w", err)
	}
	return value, nil
}

// Set stores value under key. An empty value deletes the preference.
func (s *Store) Set(ctx context.Context, account, key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	if value == "" {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM preferences WHERE account = ? AND key = ?`, normalize(account), key)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (account, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (account, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		normalize(account), key, value, s.now().UTC())
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	metrics.PreferenceWrites.WithLabelValues(metricKey(key)).Inc()
	return nil
}

// All returns every preference of account.
func (s *Store) All(ctx context.Context, account string) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT key, value FROM preferences WHERE account = ? ORDER BY key`, normalize(account)); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func validate(key, value string) error {
	switch {
	case key == KeyLanguage:
	case strings.HasPrefix(key, emojiPrefix) && len(key) > len(emojiPrefix):
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if len(value) > maxValueLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidValue, maxValueLen)
	}
	return nil
}

func metricKey(key string) string {
	if strings.HasPrefix(key, emojiPrefix) {
		return "emoji"
	}
	return key
}

// addresses are case-insensitive
func normalize(account string) string {
	return strings.ToLower(account)
}
