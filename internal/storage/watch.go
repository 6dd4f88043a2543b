package storage

import (
	"context"
	"sort"
	"time"
)

// Change describes a key written or removed by another connection.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// Watch polls for commits made by other connections to the same database
// file and emits one Change per affected key. Writes made through s itself
// are not reported. The channel closes when ctx ends. Only one watcher per
// Store is supported. Commits that land before Watch is called are part of
// its baseline and are not reported.
func (s *Store) Watch(ctx context.Context, interval time.Duration) <-chan Change {
	out := make(chan Change, 16)
	version, _ := s.dataVersion(ctx)
	if revs, err := s.revisions(); err == nil {
		s.mu.Lock()
		s.revs = revs
		s.mu.Unlock()
	}
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			v, err := s.dataVersion(ctx)
			if err != nil || v == version {
				continue
			}
			version = v
			changes, err := s.diff(ctx)
			if err != nil {
				continue
			}
			for _, c := range changes {
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `PRAGMA data_version;`).Scan(&v)
	return v, err
}

// diff compares stored revisions with the last ones this Store saw and
// records the new ones.
func (s *Store) diff(ctx context.Context) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, rev FROM kv;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	current := map[string]int64{}
	values := map[string]string{}
	for rows.Next() {
		var key, value string
		var rev int64
		if err := rows.Scan(&key, &value, &rev); err != nil {
			return nil, err
		}
		current[key] = rev
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var changes []Change
	for key, rev := range current {
		if seen, ok := s.revs[key]; ok && seen == rev {
			continue
		}
		changes = append(changes, Change{Key: key, Value: values[key]})
	}
	for key := range s.revs {
		if _, ok := current[key]; !ok {
			changes = append(changes, Change{Key: key, Deleted: true})
		}
	}
	s.revs = current
	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	return changes, nil
}
