package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/pavelanni/sequencer/internal/model"

	_ "modernc.org/sqlite"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// defaultListLimit caps run listings when the filter sets no limit.
const defaultListLimit = 50

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,
		shape TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL DEFAULT '',
		screen_count INTEGER NOT NULL DEFAULT 0,
		screens TEXT NOT NULL,
		analysis TEXT NOT NULL DEFAULT '',
		warnings TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_shape ON runs(shape);

	CREATE TABLE IF NOT EXISTS scripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		screen_number TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (run_id, screen_number),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS api_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		lookup_key TEXT NOT NULL UNIQUE,
		token_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_used_at DATETIME
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a run and makes it the current one. It sets run.ID and,
// when zero, run.CreatedAt.
func (s *Store) SaveRun(run *model.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	screens := run.Screens
	if screens == nil {
		screens = []model.Screen{}
	}
	screensJSON, err := json.Marshal(screens)
	if err != nil {
		return fmt.Errorf("marshal screens: %w", err)
	}
	var analysisJSON []byte
	if run.Analysis != nil {
		if analysisJSON, err = json.Marshal(run.Analysis); err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
	}
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (created_at, shape, model, domain, screen_count, screens, analysis, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CreatedAt, run.Shape, run.Model, run.Domain, len(screens),
		string(screensJSON), string(analysisJSON), string(warningsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := setMetadata(tx, keyCurrentRun, fmt.Sprint(id)); err != nil {
		return fmt.Errorf("set current run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	run.ID = id
	return nil
}

const runColumns = "id, created_at, shape, model, domain, screens, analysis, warnings"

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.Run, error) {
	var (
		run                         model.Run
		screens, analysis, warnings string
	)
	if err := row.Scan(&run.ID, &run.CreatedAt, &run.Shape, &run.Model, &run.Domain, &screens, &analysis, &warnings); err != nil {
		return model.Run{}, err
	}
	if err := json.Unmarshal([]byte(screens), &run.Screens); err != nil {
		return model.Run{}, fmt.Errorf("decode screens of run %d: %w", run.ID, err)
	}
	if analysis != "" {
		run.Analysis = &model.AnalysisResult{}
		if err := json.Unmarshal([]byte(analysis), run.Analysis); err != nil {
			return model.Run{}, fmt.Errorf("decode analysis of run %d: %w", run.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(warnings), &run.Warnings); err != nil {
		return model.Run{}, fmt.Errorf("decode warnings of run %d: %w", run.ID, err)
	}
	return run, nil
}

// GetRun returns a run by ID, or sql.ErrNoRows.
func (s *Store) GetRun(id int64) (model.Run, error) {
	return scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
}

// LatestRun returns the current run, or sql.ErrNoRows when none was saved.
func (s *Store) LatestRun() (model.Run, error) {
	id, err := s.CurrentRunID()
	if err != nil {
		return model.Run{}, err
	}
	if id == 0 {
		return model.Run{}, sql.ErrNoRows
	}
	return s.GetRun(id)
}

// ListRuns returns runs matching filter, newest first.
func (s *Store) ListRuns(filter model.RunFilter) ([]model.Run, error) {
	query := sqlBuilder.Select(runColumns).From("runs")
	if filter.Shape != "" {
		query = query.Where(squirrel.Eq{"shape": filter.Shape})
	}
	if filter.Domain != "" {
		query = query.Where(squirrel.Like{"domain": "%" + filter.Domain + "%"})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query = query.OrderBy("id DESC").Limit(uint64(limit))

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunCount returns the number of stored runs.
func (s *Store) RunCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

// SaveScript stores the script of one screen of a run, replacing any earlier one.
func (s *Store) SaveScript(runID int64, screenNumber, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO scripts (run_id, screen_number, content, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id, screen_number) DO UPDATE SET content = excluded.content, created_at = excluded.created_at`,
		runID, screenNumber, content, time.Now().UTC(),
	)
	return err
}

// GetScript returns the stored script of a screen, or sql.ErrNoRows.
func (s *Store) GetScript(runID int64, screenNumber string) (string, error) {
	var content string
	err := s.db.QueryRow(
		`SELECT content FROM scripts WHERE run_id = ? AND screen_number = ?`, runID, screenNumber,
	).Scan(&content)
	return content, err
}
