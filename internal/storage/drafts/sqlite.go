package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"staylist/internal/domain"
)

// tsLayout is fixed width so last_saved sorts correctly as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is the on-disk draft store. One row per user; content holds the
// draft without its timestamp so unchanged saves can be detected in SQL.
type SQLite struct {
	db *sql.DB
}

var (
	_ domain.DraftStore  = (*SQLite)(nil)
	_ domain.DraftLister = (*SQLite)(nil)
)

func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	store := &SQLite{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate drafts: %w", err)
	}
	return store, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS drafts (
		user_id TEXT PRIMARY KEY,
		title TEXT,
		category TEXT,
		step INTEGER DEFAULT 0,
		content TEXT NOT NULL,
		last_saved TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_drafts_last_saved ON drafts(last_saved);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Save(ctx context.Context, userID string, rec domain.DraftRecord) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	ts := rec.LastSaved
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (user_id, title, category, step, content, last_saved)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			step = excluded.step,
			content = excluded.content,
			last_saved = excluded.last_saved
		WHERE drafts.content <> excluded.content`,
		userID, rec.Document.Basic.Title, string(rec.Document.Basic.Category), rec.Step,
		string(b), ts.UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("save draft for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, userID string) (domain.DraftRecord, bool, error) {
	var content, saved string
	err := s.db.QueryRowContext(ctx,
		`SELECT content, last_saved FROM drafts WHERE user_id = ?`, userID).Scan(&content, &saved)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DraftRecord{}, false, nil
	}
	if err != nil {
		return domain.DraftRecord{}, false, fmt.Errorf("load draft for %s: %w", userID, err)
	}
	ts, _ := time.Parse(tsLayout, saved)
	rec, err := decode([]byte(content), ts)
	if err != nil {
		return domain.DraftRecord{}, false, err
	}
	return rec, true, nil
}

func (s *SQLite) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear draft for %s: %w", userID, err)
	}
	return nil
}

// List returns a summary of every stored draft, newest first, without
// decoding the documents.
func (s *SQLite) List(ctx context.Context) ([]domain.DraftSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COALESCE(title, ''), COALESCE(category, ''), step, last_saved
		FROM drafts ORDER BY last_saved DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DraftSummary
	for rows.Next() {
		var d domain.DraftSummary
		var category, saved string
		if err := rows.Scan(&d.UserID, &d.Title, &category, &d.Step, &saved); err != nil {
			return nil, err
		}
		d.Category = domain.Category(category)
		d.LastSaved, _ = time.Parse(tsLayout, saved)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ClearOlderThan removes drafts last saved before cutoff and reports how many went.
func (s *SQLite) ClearOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE last_saved < ?`, cutoff.UTC().Format(tsLayout))
	if err != nil {
		return 0, fmt.Errorf("prune drafts: %w", err)
	}
	return res.RowsAffected()
}
