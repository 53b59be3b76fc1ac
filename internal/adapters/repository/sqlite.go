package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/okian/touchline/internal/adapters/repository/migrations"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/metrics"
)

// SQLiteStore persists events in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the
// embedded migrations. ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Persist inserts ev.
func (s *SQLiteStore) Persist(ctx context.Context, ev model.MatchEvent) error {
	if err := checkEvent(ev); err != nil {
		return err
	}
	var details, extensions sql.NullString
	if ev.Details != nil {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("encode details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}
	if len(ev.Extensions) > 0 {
		b, err := json.Marshal(ev.Extensions)
		if err != nil {
			return fmt.Errorf("encode extensions: %w", err)
		}
		extensions = sql.NullString{String: string(b), Valid: true}
	}
	var clientAt sql.NullInt64
	if ev.ClientTimestamp != nil {
		clientAt = sql.NullInt64{Int64: toMillis(*ev.ClientTimestamp), Valid: true}
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO match_events (
		   match_id, sequence, id, event_type, minute, period, team_id, player_id,
		   secondary_player_id, description, details_json, extensions_json,
		   operator_id, operator_role, recorded_at, client_recorded_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.MatchID, ev.Sequence, ev.ID, string(ev.Type), ev.Minute, string(ev.Period), ev.TeamID, ev.PlayerID,
		ev.SecondaryPlayerID, ev.Description, details, extensions,
		ev.OperatorID, ev.OperatorRole, toMillis(ev.Timestamp), clientAt,
	)
	metrics.RecordPersistenceLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s/%d", ErrDuplicateSequence, ev.MatchID, ev.Sequence)
		}
		if s.isClosed(err) {
			return ErrStoreClosed
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListByMatch returns events with sequence > after.
func (s *SQLiteStore) ListByMatch(ctx context.Context, matchID string, after int64, limit int) ([]model.MatchEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT match_id, sequence, id, event_type, minute, period, team_id, player_id,
		        secondary_player_id, description, details_json, extensions_json,
		        operator_id, operator_role, recorded_at, client_recorded_at
		   FROM match_events
		  WHERE match_id = ? AND sequence > ?
		  ORDER BY sequence
		  LIMIT ?`,
		matchID, after, normalizeLimit(limit),
	)
	if err != nil {
		if s.isClosed(err) {
			return nil, ErrStoreClosed
		}
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []model.MatchEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (model.MatchEvent, error) {
	var (
		ev                  model.MatchEvent
		eventType, period   string
		details, extensions sql.NullString
		recordedAt          int64
		clientAt            sql.NullInt64
	)
	if err := rows.Scan(
		&ev.MatchID, &ev.Sequence, &ev.ID, &eventType, &ev.Minute, &period, &ev.TeamID, &ev.PlayerID,
		&ev.SecondaryPlayerID, &ev.Description, &details, &extensions,
		&ev.OperatorID, &ev.OperatorRole, &recordedAt, &clientAt,
	); err != nil {
		return ev, fmt.Errorf("scan event: %w", err)
	}
	ev.Type = model.EventType(eventType)
	ev.Period = model.Period(period)
	ev.Timestamp = fromMillis(recordedAt)
	if clientAt.Valid {
		t := fromMillis(clientAt.Int64)
		ev.ClientTimestamp = &t
	}
	if details.Valid {
		d, err := model.DecodeDetails(ev.Type, []byte(details.String))
		if err != nil {
			return ev, fmt.Errorf("decode details of %s: %w", ev.ID, err)
		}
		ev.Details = d
	}
	if extensions.Valid {
		if err := json.Unmarshal([]byte(extensions.String), &ev.Extensions); err != nil {
			return ev, fmt.Errorf("decode extensions of %s: %w", ev.ID, err)
		}
	}
	return ev, nil
}

// LastSequence returns the highest stored sequence of a match.
func (s *SQLiteStore) LastSequence(ctx context.Context, matchID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM match_events WHERE match_id = ?`, matchID).Scan(&seq)
	if err != nil {
		if s.isClosed(err) {
			return 0, ErrStoreClosed
		}
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	return seq.Int64, nil
}

// Count returns the total number of stored events.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_events`).Scan(&n); err != nil {
		if s.isClosed(err) {
			return 0, ErrStoreClosed
		}
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) isClosed(err error) bool {
	return err != nil && strings.Contains(err.Error(), "sql: database is closed")
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
