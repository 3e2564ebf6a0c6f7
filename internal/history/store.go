package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists entered commands and played tracks using SQLite
type Store struct {
	db *sql.DB
}

// Command is one line entered at the prompt
type Command struct {
	ID        int64
	Line      string
	Timestamp time.Time
}

// Play is one track that was played
type Play struct {
	ID        int64
	MixID     int64
	MixName   string
	TrackID   int64
	TrackName string
	Artist    string
	Reported  bool
	Timestamp time.Time
}

// NewStore opens or creates the history database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps in-memory databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			line TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS plays (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mix_id INTEGER NOT NULL,
			mix_name TEXT NOT NULL,
			track_id INTEGER NOT NULL,
			track_name TEXT NOT NULL,
			artist TEXT,
			reported BOOLEAN DEFAULT 0,
			timestamp INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_commands_timestamp ON commands(timestamp);
		CREATE INDEX IF NOT EXISTS idx_plays_track ON plays(mix_id, track_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AddCommand records an entered line. Blank lines are not recorded.
func (s *Store) AddCommand(ctx context.Context, line string, at time.Time) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	query := `INSERT INTO commands (line, timestamp) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, line, at.UnixNano()); err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}
	return nil
}

// RecentCommands returns up to limit of the latest commands, oldest first
func (s *Store) RecentCommands(ctx context.Context, limit int) ([]Command, error) {
	query := `
		SELECT id, line, timestamp FROM (
			SELECT id, line, timestamp
			FROM commands
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var c Command
		var ts int64
		if err := rows.Scan(&c.ID, &c.Line, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		c.Timestamp = time.Unix(0, ts)
		commands = append(commands, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commands: %w", err)
	}

	return commands, nil
}

// AddPlay records that a track started playing
func (s *Store) AddPlay(ctx context.Context, play Play) (int64, error) {
	query := `
		INSERT INTO plays (mix_id, mix_name, track_id, track_name, artist, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		play.MixID,
		play.MixName,
		play.TrackID,
		play.TrackName,
		play.Artist,
		play.Timestamp.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert play: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	return id, nil
}

// MarkReported marks the latest play of a track as reported to the catalog
func (s *Store) MarkReported(ctx context.Context, mixID, trackID int64) error {
	query := `
		UPDATE plays
		SET reported = 1
		WHERE id = (
			SELECT id FROM plays
			WHERE mix_id = ? AND track_id = ?
			ORDER BY id DESC
			LIMIT 1
		)
	`

	result, err := s.db.ExecContext(ctx, query, mixID, trackID)
	if err != nil {
		return fmt.Errorf("failed to mark play as reported: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("no play of track %d in mix %d", trackID, mixID)
	}

	return nil
}

// RecentPlays returns up to limit of the latest plays, newest first
func (s *Store) RecentPlays(ctx context.Context, limit int) ([]Play, error) {
	query := `
		SELECT id, mix_id, mix_name, track_id, track_name, COALESCE(artist, ''), reported, timestamp
		FROM plays
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var p Play
		var ts int64
		err := rows.Scan(
			&p.ID,
			&p.MixID,
			&p.MixName,
			&p.TrackID,
			&p.TrackName,
			&p.Artist,
			&p.Reported,
			&ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		p.Timestamp = time.Unix(ts, 0)
		plays = append(plays, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plays: %w", err)
	}

	return plays, nil
}

// Cleanup keeps the newest maxCommands commands and drops plays older than maxAge
func (s *Store) Cleanup(ctx context.Context, maxCommands int, maxAge time.Duration) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deleted int64

	result, err := tx.ExecContext(ctx, `
		DELETE FROM commands
		WHERE id NOT IN (SELECT id FROM commands ORDER BY id DESC LIMIT ?)
	`, maxCommands)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup commands: %w", err)
	}
	n, _ := result.RowsAffected()
	deleted += n

	cutoff := time.Now().Add(-maxAge).Unix()
	result, err = tx.ExecContext(ctx, `DELETE FROM plays WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup plays: %w", err)
	}
	n, _ = result.RowsAffected()
	deleted += n

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return deleted, nil
}
