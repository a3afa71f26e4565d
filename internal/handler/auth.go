package handler

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/sequencer/internal/store"
)

// TokenHeader is an alternative to "Authorization: Bearer".
const TokenHeader = "X-API-Token"

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// lookupKey is the indexed form of a token. It only locates the stored row;
// the bcrypt hash still verifies the token.
func lookupKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueToken creates a named API token and returns its plain value. Only
// its hashes are stored, so the value cannot be shown again.
func IssueToken(s *store.Store, name string) (string, error) {
	if name == "" {
		return "", errors.New("token name required")
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := AddToken(s, name, token); err != nil {
		return "", err
	}
	return token, nil
}

// AddToken stores a caller-chosen token under name.
func AddToken(s *store.Store, name, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.CreateToken(name, lookupKey(token), string(hash))
	return err
}

func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.Header.Get(TokenHeader)
}

// requireToken rejects requests without a valid API token. The API stays
// open while no token has been issued. A request costs one indexed lookup
// and at most one bcrypt comparison.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := h.store.TokenCount()
		if err != nil {
			slog.Error("failed to count API tokens", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if count == 0 {
			next.ServeHTTP(w, r)
			return
		}

		presented := requestToken(r)
		if presented == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		t, err := h.store.TokenByLookup(lookupKey(presented))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			slog.Warn("invalid API token", "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		case err != nil:
			slog.Error("failed to look up API token", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(t.Hash), []byte(presented)) != nil {
			slog.Warn("API token hash mismatch", "token", t.Name, "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err := h.store.TouchToken(t.ID); err != nil {
			slog.Warn("failed to record token use", "token", t.Name, "error", err)
		}
		next.ServeHTTP(w, r)
	})
}
