// Package upload stores normalised listing photos and hands back their public URLs.
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"staylist/internal/domain"
)

// Local writes files under a directory served as static content. Meant for
// development and single-node deployments.
type Local struct {
	dir     string
	baseURL string
}

var _ domain.Uploader = (*Local)(nil)

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) Dir() string { return l.dir }

func (l *Local) Upload(ctx context.Context, data []byte, key, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + key)[1:]
	if clean == "" {
		return "", fmt.Errorf("empty upload key")
	}
	dst := filepath.Join(l.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	// write-then-rename so a reader never sees a partial file
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", key, err)
	}
	return l.baseURL + "/" + clean, nil
}
