package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/sequencer/internal/model"
)

const tokenColumns = "id, name, lookup_key, token_hash, created_at, last_used_at"

// CreateToken stores a named API token by its lookup key and hash.
func (s *Store) CreateToken(name, lookupKey, hash string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO api_tokens (name, lookup_key, token_hash, created_at) VALUES (?, ?, ?, ?)`,
		name, lookupKey, hash, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("failed to create API token", "name", name, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created API token", "id", id, "name", name)
	return id, nil
}

// ListTokens returns all API tokens, hashes included.
func (s *Store) ListTokens() ([]model.APIToken, error) {
	rows, err := s.db.Query(`SELECT ` + tokenColumns + ` FROM api_tokens ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []model.APIToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// TokenByLookup returns the token with the given lookup key, or
// sql.ErrNoRows when there is none.
func (s *Store) TokenByLookup(lookupKey string) (model.APIToken, error) {
	row := s.db.QueryRow(`SELECT `+tokenColumns+` FROM api_tokens WHERE lookup_key = ?`, lookupKey)
	return scanToken(row)
}

func scanToken(sc scanner) (model.APIToken, error) {
	var t model.APIToken
	var lastUsed sql.NullTime
	if err := sc.Scan(&t.ID, &t.Name, &t.LookupKey, &t.Hash, &t.CreatedAt, &lastUsed); err != nil {
		return model.APIToken{}, err
	}
	if lastUsed.Valid {
		t.LastUsedAt = &lastUsed.Time
	}
	return t, nil
}

// TokenCount returns the number of API tokens.
func (s *Store) TokenCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM api_tokens`).Scan(&n)
	return n, err
}

// TouchToken records that a token was just used.
func (s *Store) TouchToken(id int64) error {
	_, err := s.db.Exec(`UPDATE api_tokens SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// DeleteToken removes a token by name. It reports sql.ErrNoRows for an unknown name.
func (s *Store) DeleteToken(name string) error {
	res, err := s.db.Exec(`DELETE FROM api_tokens WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
