package storage

import "sync"

// Memory is a Backend that lives only as long as the process. It stands in
// when the database cannot be opened.
type Memory struct {
	mu    sync.Mutex
	data  map[string]string
	quota int64
}

func NewMemory(quota int64) *Memory {
	return &Memory{data: map[string]string{}, quota: quota}
}

func (m *Memory) Load(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	return raw, ok, nil
}

func (m *Memory) Save(key, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota > 0 {
		used := int64(len(key) + len(raw))
		for k, v := range m.data {
			if k != key {
				used += int64(len(k) + len(v))
			}
		}
		if used > m.quota {
			return newError("save", key, ErrQuotaExceeded, nil)
		}
	}
	m.data[key] = raw
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
