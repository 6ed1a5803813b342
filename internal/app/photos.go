package app

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"staylist/internal/adapters/observability"
	"staylist/internal/domain"
)

const (
	DefaultUploadWorkers = 4
	DefaultMaxImageWidth = 1920
	jpegQuality          = 85
)

// UploadFile is one image in a batch upload, with the metadata the photo
// should carry once it is added to the document.
type UploadFile struct {
	Name        string
	Data        []byte
	ContentType string
	Caption     string
	AltText     string
	Category    string
}

// UploadResult is reported per file; a batch can partially fail.
type UploadResult struct {
	Name  string       `json:"name"`
	Photo domain.Photo `json:"photo"`
	Err   error        `json:"-"`
}

func (r UploadResult) OK() bool { return r.Err == nil }

// PhotoIngest turns raw uploads into photo entries. Storage itself is the
// uploader's job; ingest only normalises the image and picks the object path.
type PhotoIngest struct {
	uploader domain.Uploader
	workers  int64
	maxWidth int
	newKey   func() string
}

func NewPhotoIngest(u domain.Uploader, workers, maxWidth int) *PhotoIngest {
	if workers <= 0 {
		workers = DefaultUploadWorkers
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxImageWidth
	}
	return &PhotoIngest{uploader: u, workers: int64(workers), maxWidth: maxWidth, newKey: uuid.NewString}
}

// UploadBatch uploads files concurrently, bounded by the worker count.
// Results are in input order.
func (p *PhotoIngest) UploadBatch(ctx context.Context, ownerID string, files []UploadFile) []UploadResult {
	out := make([]UploadResult, len(files))
	sem := semaphore.NewWeighted(p.workers)
	var wg sync.WaitGroup

	for i, f := range files {
		out[i].Name = f.Name
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			out[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int, f UploadFile) {
			defer wg.Done()
			defer sem.Release(1)

			ph, err := p.uploadOne(ctx, ownerID, f)
			if err != nil {
				observability.ObservePhoto("upload", "error")
				log.Warn().Err(err).Str("file", f.Name).Str("user", ownerID).Msg("photo upload failed")
				out[i].Err = err
				return
			}
			observability.ObservePhoto("upload", "ok")
			out[i].Photo = ph
		}(i, f)
	}
	wg.Wait()
	return out
}

func (p *PhotoIngest) uploadOne(ctx context.Context, ownerID string, f UploadFile) (domain.Photo, error) {
	if len(f.Data) == 0 {
		return domain.Photo{}, fmt.Errorf("%s: empty file: %w", f.Name, domain.ErrInvalidPhoto)
	}
	data, err := p.normalise(f.Data)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("%s: %w", f.Name, err)
	}
	path := fmt.Sprintf("properties/%s/%s.jpg", safeSegment(ownerID), p.newKey())
	u, err := p.uploader.Upload(ctx, data, path, "image/jpeg")
	if err != nil {
		return domain.Photo{}, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	return domain.Photo{
		ImageURL: u,
		Caption:  strings.TrimSpace(f.Caption),
		AltText:  strings.TrimSpace(f.AltText),
		Category: f.Category,
	}, nil
}

// normalise decodes the image, downscales anything wider than maxWidth and
// re-encodes it as JPEG.
func (p *PhotoIngest) normalise(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %v: %w", err, domain.ErrInvalidPhoto)
	}
	if img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// ValidateImageURL accepts absolute http(s) URLs only.
func ValidateImageURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		observability.ObservePhoto("url", "rejected")
		return "", fmt.Errorf("image url %q: %w", raw, domain.ErrInvalidPhoto)
	}
	observability.ObservePhoto("url", "ok")
	return u.String(), nil
}

func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "anonymous"
	}
	return s
}
