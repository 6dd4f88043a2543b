package storage

import "encoding/json"

// LoadJSON decodes the value stored under key into v. It reports false with
// a nil error when the key is absent; undecodable data yields ErrMalformed.
func LoadJSON(b Backend, key string, v any) (bool, error) {
	raw, ok, err := b.Load(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, newError("decode", key, ErrMalformed, err)
	}
	return true, nil
}

// SaveJSON encodes v and writes it under key.
func SaveJSON(b Backend, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return newError("encode", key, ErrSerialization, err)
	}
	return b.Save(key, string(data))
}
