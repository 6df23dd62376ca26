// Package archive persists the fanned-out event stream to sqlite for
// post-game review.
package archive

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/dkeye/mafia/internal/domain"
	"github.com/dkeye/mafia/internal/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	type       TEXT    NOT NULL,
	recipients INTEGER NOT NULL,
	payload    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS events_type ON events(type);
`

// Archive is an event sink backed by sqlite. Record failures are logged,
// never surfaced; archival must not fail game operations.
type Archive struct {
	db *sql.DB

	now func() time.Time
}

// Open opens (or creates) the archive database at path. Use ":memory:" for
// an ephemeral archive.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	// The facade calls Record from one goroutine at a time, but keep the
	// pool at one connection so sqlite never sees concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}

	log.Info().Str("module", "adapters.archive").Str("path", path).Msg("archive opened")
	return &Archive{db: db, now: time.Now}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Record stores one event with its recipient set.
func (a *Archive) Record(ev domain.Event, to domain.ClientSet) {
	payload, err := wire.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.archive").Msg("encode event")
		return
	}

	_, err = a.db.Exec(
		"INSERT INTO events (created_at, type, recipients, payload) VALUES (?, ?, ?, ?)",
		a.now().Unix(), wire.TypeOf(ev), int64(to), string(payload),
	)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.archive").Msg("insert event")
	}
}

// Stored is one archived event row.
type Stored struct {
	CreatedAt  time.Time
	Recipients domain.ClientSet
	Event      domain.Event
}

// Events replays every archived event in insertion order.
func (a *Archive) Events() ([]Stored, error) {
	rows, err := a.db.Query("SELECT created_at, recipients, payload FROM events ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var out []Stored
	for rows.Next() {
		var createdAt, recipients int64
		var payload string
		if err := rows.Scan(&createdAt, &recipients, &payload); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}

		ev, err := wire.Decode([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode archived event: %w", err)
		}

		out = append(out, Stored{
			CreatedAt:  time.Unix(createdAt, 0),
			Recipients: domain.ClientSet(recipients),
			Event:      ev,
		})
	}
	return out, rows.Err()
}
