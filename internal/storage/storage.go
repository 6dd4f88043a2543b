package storage

import (
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Keys under which the application persists its state.
const (
	KeyTasks         = "tasks"
	KeyReminders     = "taskReminders"
	KeyFocusStats    = "focusStats"
	KeyFocusTimezone = "focusUserTimezone"
	KeyFocusReminder = "focusReminder"
)

// DefaultQuota mirrors the few megabytes a browser grants local storage.
const DefaultQuota int64 = 5 << 20

// Backend is a synchronous string key-value store.
type Backend interface {
	Load(key string) (string, bool, error)
	Save(key, raw string) error
	Remove(key string) error
}

// Store is a Backend kept in a single SQLite table. Several processes may
// open the same file; the last write wins.
type Store struct {
	db    *sql.DB
	quota int64

	mu   sync.Mutex
	revs map[string]int64
}

func Open(dbPath string, quota int64) (*Store, error) {
	if dbPath == "" {
		return nil, newError("open", "", ErrUnavailable, errors.New("db path is empty"))
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, newError("open", "", ErrUnavailable, err)
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, newError("open", "", ErrUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, quota: quota, revs: map[string]int64{}}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, newError("open", "", ErrUnavailable, err)
	}
	revs, err := s.revisions()
	if err != nil {
		db.Close()
		return nil, newError("open", "", ErrUnavailable, err)
	}
	s.revs = revs
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	rev INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS kv_seq (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	rev INTEGER NOT NULL
);
INSERT OR IGNORE INTO kv_seq (id, rev) VALUES (1, (SELECT COALESCE(MAX(rev), 0) FROM kv));`
	_, err := s.db.Exec(ddl)
	return err
}

func (s *Store) Load(key string) (string, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?;`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("load", key, err)
	}
	return raw, true, nil
}

func (s *Store) Save(key, raw string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return classify("save", key, err)
	}
	defer tx.Rollback()

	if s.quota > 0 {
		var used int64
		err := tx.QueryRow(`SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0) FROM kv WHERE key <> ?;`, key).Scan(&used)
		if err != nil {
			return classify("save", key, err)
		}
		if used+int64(len(key)+len(raw)) > s.quota {
			return newError("save", key, ErrQuotaExceeded, nil)
		}
	}

	// Revisions come from one database-wide sequence, so a key removed and
	// written again never repeats a revision a watcher already saw.
	var rev int64
	if err := tx.QueryRow(`UPDATE kv_seq SET rev = rev + 1 WHERE id = 1 RETURNING rev;`).Scan(&rev); err != nil {
		return classify("save", key, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`
INSERT INTO kv (key, value, rev, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = excluded.rev, updated_at = excluded.updated_at;`, key, raw, rev, now)
	if err != nil {
		return classify("save", key, err)
	}
	if err := tx.Commit(); err != nil {
		return classify("save", key, err)
	}
	s.mu.Lock()
	s.revs[key] = rev
	s.mu.Unlock()
	return nil
}

func (s *Store) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?;`, key); err != nil {
		return classify("remove", key, err)
	}
	s.mu.Lock()
	delete(s.revs, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) revisions() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT key, rev FROM kv;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	revs := map[string]int64{}
	for rows.Next() {
		var key string
		var rev int64
		if err := rows.Scan(&key, &rev); err != nil {
			return nil, err
		}
		revs[key] = rev
	}
	return revs, rows.Err()
}

func classify(op, key string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_FULL {
		return newError(op, key, ErrQuotaExceeded, err)
	}
	return newError(op, key, ErrUnavailable, err)
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
