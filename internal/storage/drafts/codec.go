// Package drafts holds the local draft stores: one in memory for tests and
// single-process use, one on disk backed by SQLite.
package drafts

import (
	"encoding/json"
	"fmt"
	"time"

	"staylist/internal/domain"
)

// encode serialises a draft without its timestamp, so two saves of the same
// content produce the same bytes.
func encode(rec domain.DraftRecord) ([]byte, error) {
	rec.LastSaved = time.Time{}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	return b, nil
}

func decode(b []byte, lastSaved time.Time) (domain.DraftRecord, error) {
	var rec domain.DraftRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return domain.DraftRecord{}, fmt.Errorf("decode draft: %w", err)
	}
	rec.LastSaved = lastSaved.UTC()
	return rec, nil
}

func summary(userID string, rec domain.DraftRecord) domain.DraftSummary {
	return domain.DraftSummary{
		UserID:    userID,
		Title:     rec.Document.Basic.Title,
		Category:  rec.Document.Basic.Category,
		Step:      rec.Step,
		LastSaved: rec.LastSaved,
	}
}
