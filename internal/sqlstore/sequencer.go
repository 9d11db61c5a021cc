package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blackmichael/novelle/internal/domain"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const sqlitePrefix = "sqlite:"

// Sequencer implements domain.Sequencer on a SQL counters table, using
// PostgreSQL or an embedded SQLite file.
type Sequencer struct {
	db     *sql.DB
	driver string
}

var _ domain.Sequencer = (*Sequencer)(nil)

var placeholder = regexp.MustCompile(`\$\d+`)

// Open connects to the database named by dsn, verifies the connection and
// creates the counters table if needed. A dsn starting with postgres:// or
// postgresql:// selects PostgreSQL; "sqlite:<path>" selects an SQLite file.
// The caller should call Close when the sequencer is no longer needed.
func Open(ctx context.Context, dsn string) (*Sequencer, error) {
	driver, source, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// SQLite allows one writer; a single connection serializes the upserts.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Sequencer{db: db, driver: driver}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS counters (
			name  TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create counters table: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Sequencer) Close() error {
	return s.db.Close()
}

// NextValue atomically advances the named counter in one upsert statement.
func (s *Sequencer) NextValue(ctx context.Context, name string, startAt int64) (int64, error) {
	startAt = normalizeStart(startAt)

	var value int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO counters (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value`),
		name, startAt,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return s.current(ctx, name)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: advance %q: %w", domain.ErrSequenceUnavailable, name, err)
	}
	return value, nil
}

// Ensure creates the counter at startAt-1 unless it already exists.
func (s *Sequencer) Ensure(ctx context.Context, name string, startAt int64) error {
	startAt = normalizeStart(startAt)

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO counters (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`),
		name, startAt-1,
	)
	if err != nil {
		return fmt.Errorf("%w: ensure %q: %w", domain.ErrSequenceUnavailable, name, err)
	}
	return nil
}

// current reads the stored value without advancing it.
func (s *Sequencer) current(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM counters WHERE name = $1`), name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: counter %q not found after update", domain.ErrSequenceUnavailable, name)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read %q: %w", domain.ErrSequenceUnavailable, name, err)
	}
	return value, nil
}

// rebind rewrites $N placeholders for drivers that only understand "?".
// Every query here uses each placeholder once, in order.
func (s *Sequencer) rebind(query string) string {
	if s.driver != "sqlite" {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

func parseDSN(dsn string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, sqlitePrefix):
		path := strings.TrimPrefix(dsn, sqlitePrefix)
		if path == "" {
			return "", "", fmt.Errorf("sqlite dsn %q has no path", dsn)
		}
		if !strings.Contains(path, "?") {
			path += "?_pragma=busy_timeout(5000)"
		}
		return "sqlite", path, nil
	default:
		return "", "", fmt.Errorf("unsupported sequence dsn %q: want postgres:// or sqlite:<path>", dsn)
	}
}

func normalizeStart(startAt int64) int64 {
	if startAt <= 0 {
		return 1
	}
	return startAt
}
