package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"staylist/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Repo is the self-hosted entity gateway. The full payload lives in a JSON
// column; the few fields we filter or list by are copied into real columns.
type Repo struct {
	db    *sql.DB
	newID func() string
}

var _ domain.EntityGateway = (*Repo)(nil)

func New(db *sql.DB) *Repo { return &Repo{db: db, newID: uuid.NewString} }

// Open connects with the pool settings the API process uses.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string, includeDrafts bool) (domain.PropertyRecord, error) {
	row := r.db.QueryRowContext(ctx, getPropertySQL, id, includeDrafts)

	var (
		pid, owner, status   string
		payload              []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&pid, &owner, &status, &payload, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	rec := domain.PropertyRecord{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("property %s payload: %w", id, err)
		}
	}
	rec["id"] = pid
	rec["owner_id"] = owner
	rec["status"] = status
	rec["created_at"] = createdAt.UTC().Format(time.RFC3339Nano)
	rec["updated_at"] = updatedAt.UTC().Format(time.RFC3339Nano)
	return rec, nil
}

func (r *Repo) Create(ctx context.Context, p domain.PropertyPayload, ownerID string) (domain.PropertyRecord, error) {
	if ownerID == "" {
		return nil, errors.New("create property: owner id is required")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	id := r.newID()
	if _, err := r.db.ExecContext(ctx, insertPropertySQL,
		id,
		ownerID,
		p.Title,
		p.PropertyType,
		p.City,
		statusOf(p),
		string(body),
	); err != nil {
		return nil, fmt.Errorf("insert property: %w", err)
	}
	return r.GetByID(ctx, id, true)
}

func (r *Repo) Update(ctx context.Context, id string, p domain.PropertyPayload) (domain.PropertyRecord, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, updatePropertySQL,
		p.Title,
		p.PropertyType,
		p.City,
		statusOf(p),
		string(body),
		id,
	); err != nil {
		return nil, fmt.Errorf("update property %s: %w", id, err)
	}
	// rows-affected is 0 for an unchanged row too, so existence is checked by reading back
	return r.GetByID(ctx, id, true)
}

func (r *Repo) GetPhotos(ctx context.Context, propertyID string) ([]domain.PhotoRecord, error) {
	rows, err := r.db.QueryContext(ctx, getPhotosSQL, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PhotoRecord
	for rows.Next() {
		var ph domain.PhotoRecord
		var caption, alt sql.NullString
		if err := rows.Scan(
			&ph.ID,
			&ph.PropertyID,
			&ph.ImageURL,
			&caption,
			&alt,
			&ph.Category,
			&ph.DisplayOrder,
			&ph.IsPrimary,
		); err != nil {
			return nil, err
		}
		ph.Caption = caption.String
		ph.AltText = alt.String
		out = append(out, ph)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplacePhotos swaps the whole photo set for a property in one transaction.
func (r *Repo) ReplacePhotos(ctx context.Context, propertyID string, photos []domain.PhotoRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, deletePhotosSQL, propertyID); err != nil {
		return fmt.Errorf("delete photos: %w", err)
	}
	if len(photos) > 0 {
		values := make([]string, 0, len(photos))
		args := make([]any, 0, len(photos)*8) // 8 params per row
		for _, ph := range photos {
			id := ph.ID
			if id == "" {
				id = r.newID()
			}
			category := ph.Category
			if category == "" {
				category = "general"
			}
			values = append(values, "(?,?,?,?,?,?,?,?)")
			args = append(args,
				id,
				propertyID,
				ph.ImageURL,
				valStr(ph.Caption),
				valStr(ph.AltText),
				category,
				ph.DisplayOrder,
				ph.IsPrimary,
			)
		}
		if _, err = tx.ExecContext(ctx, insertPhotosPrefix+strings.Join(values, ","), args...); err != nil {
			return fmt.Errorf("insert photos: %w", err)
		}
	}
	return tx.Commit()
}

func statusOf(p domain.PropertyPayload) string {
	if p.Status == "" {
		return domain.StatusPending
	}
	return p.Status
}
