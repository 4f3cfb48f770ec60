// Package sqlite is a Mood Store on an embedded SQLite database.
// Subscribers poll for rows newer than the last rowid they saw.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
)

const DefaultPollInterval = 500 * time.Millisecond

// SQLiteStore implements store.Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	poll time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

var _ store.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, poll time.Duration) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	if poll <= 0 {
		poll = DefaultPollInterval
	}
	s := &SQLiteStore{db: db, poll: poll, done: make(chan struct{})}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS moods (
		id            TEXT NOT NULL UNIQUE,
		mood_type     TEXT NOT NULL,
		location_name TEXT NOT NULL,
		lat           REAL NOT NULL,
		lng           REAL NOT NULL,
		ts            INTEGER NOT NULL,
		origin        TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_moods_ts ON moods(ts);

	CREATE TABLE IF NOT EXISTS messages (
		id            TEXT NOT NULL UNIQUE,
		text          TEXT NOT NULL,
		location_name TEXT NOT NULL,
		lat           REAL NOT NULL,
		lng           REAL NOT NULL,
		ts            INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SQLiteStore) Append(ctx context.Context, ev mood.Event) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	ev.Timestamp = mood.TruncateTimestamp(ev.Timestamp)
	if ev.ID == "" {
		ev.ID = store.NewID(ev.Timestamp)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO moods (id, mood_type, location_name, lat, lng, ts, origin) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.Location.Name, ev.Location.Lat, ev.Location.Lng, ev.Timestamp.UnixMilli(), ev.Origin,
	)
	if err != nil {
		return fmt.Errorf("insert mood: %w", err)
	}
	return nil
}

func scanEvent(rows *sql.Rows) (int64, mood.Event, error) {
	var (
		rowid  int64
		rec    store.EventRecord
		origin sql.NullString
	)
	if err := rows.Scan(&rowid, &rec.ID, &rec.MoodType, &rec.LocationName, &rec.Lat, &rec.Lng, &rec.Timestamp, &origin); err != nil {
		return 0, mood.Event{}, err
	}
	rec.Origin = origin.String
	ev, err := rec.Event()
	return rowid, ev, err
}

const moodColumns = `rowid, id, mood_type, location_name, lat, lng, ts, origin`

func (s *SQLiteStore) Range(ctx context.Context, from, to time.Time) ([]mood.Event, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+moodColumns+` FROM moods WHERE ts >= ? AND ts < ? ORDER BY ts, rowid`,
		from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("range moods: %w", err)
	}
	defer rows.Close()

	var out []mood.Event
	for rows.Next() {
		_, ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mood: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Subscribe(ctx context.Context, since time.Time) (<-chan mood.Event, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	return follow(ctx, s, "moods", moodColumns, since, scanEvent)
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg mood.Message) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	msg.Timestamp = mood.TruncateTimestamp(msg.Timestamp)
	if msg.ID == "" {
		msg.ID = store.NewID(msg.Timestamp)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, text, location_name, lat, lng, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Text, msg.Location.Name, msg.Location.Lat, msg.Location.Lng, msg.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func scanMessage(rows *sql.Rows) (int64, mood.Message, error) {
	var (
		rowid int64
		rec   store.MessageRecord
	)
	if err := rows.Scan(&rowid, &rec.ID, &rec.Text, &rec.Location.Name, &rec.Location.Lat, &rec.Location.Lng, &rec.Timestamp); err != nil {
		return 0, mood.Message{}, err
	}
	msg, err := rec.Message()
	return rowid, msg, err
}

const messageColumns = `rowid, id, text, location_name, lat, lng, ts`

func (s *SQLiteStore) SubscribeMessages(ctx context.Context, since time.Time) (<-chan mood.Message, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	return follow(ctx, s, "messages", messageColumns, since, scanMessage)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	return s.db.Close()
}

// follow sends rows of table with ts >= since that exist now, then polls for rows appended later
// until ctx ends or the store closes. Rows that fail to decode are skipped.
func follow[T any](ctx context.Context, s *SQLiteStore, table, columns string, since time.Time, scan func(*sql.Rows) (int64, T, error)) (<-chan T, error) {
	var last int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(rowid), 0) FROM `+table).Scan(&last); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	backlogQuery := `SELECT ` + columns + ` FROM ` + table + ` WHERE ts >= ? AND rowid <= ? ORDER BY rowid`
	pollQuery := `SELECT ` + columns + ` FROM ` + table + ` WHERE rowid > ? ORDER BY rowid`

	out := make(chan T)
	go func() {
		defer close(out)

		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		upto := last
		first := true
		for {
			var (
				rows *sql.Rows
				err  error
			)
			if first {
				rows, err = s.db.QueryContext(ctx, backlogQuery, since.UnixMilli(), upto)
			} else {
				rows, err = s.db.QueryContext(ctx, pollQuery, last)
			}

			if err == nil {
				var batch []T
				for rows.Next() {
					rowid, v, err := scan(rows)
					if rowid > last {
						last = rowid
					}
					if err != nil {
						continue
					}
					batch = append(batch, v)
				}
				rows.Close()
				first = false

				for _, v := range batch {
					select {
					case out <- v:
					case <-ctx.Done():
						return
					case <-s.done:
						return
					}
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
	return out, nil
}
