package store

import (
	"database/sql"
	"strconv"
)

const keyCurrentRun = "current_run"

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setMetadata(db execer, key, value string) error {
	_, err := db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	return setMetadata(s.db, key, value)
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// CurrentRunID returns the ID of the current run, 0 when none is set.
func (s *Store) CurrentRunID() (int64, error) {
	v, err := s.GetMetadata(keyCurrentRun)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// SetCurrentRun points the current run at id.
func (s *Store) SetCurrentRun(id int64) error {
	if _, err := s.GetRun(id); err != nil {
		return err
	}
	return s.SetMetadata(keyCurrentRun, strconv.FormatInt(id, 10))
}
