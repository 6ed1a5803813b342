// internal/adapters/backend/client.go
package backend

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"staylist/internal/adapters/observability"
	"staylist/internal/domain"
)

// Client talks to the hosted data backend's REST interface and implements
// domain.EntityGateway.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

var _ domain.EntityGateway = (*Client)(nil)

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("backend url %q: %w", base, err)
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API (reads try the current path first, then the legacy one) ----

func (c *Client) GetByID(ctx context.Context, id string, includeDrafts bool) (domain.PropertyRecord, error) {
	q := "?include_drafts=" + strconv.FormatBool(includeDrafts)
	candidates := []string{
		fmt.Sprintf("%s/properties/%s%s", c.base, url.PathEscape(id), q), // preferred
		fmt.Sprintf("%s/property/%s%s", c.base, url.PathEscape(id), q),   // legacy
	}
	var out domain.PropertyRecord
	if err := c.getFirst(ctx, "property", candidates, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

func (c *Client) GetPhotos(ctx context.Context, propertyID string) ([]domain.PhotoRecord, error) {
	u := fmt.Sprintf("%s/properties/%s/photos?order=display_order", c.base, url.PathEscape(propertyID))
	var out []domain.PhotoRecord
	if err := c.do(ctx, "photos", http.MethodGet, u, nil, &out); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil // no photo records yet
		}
		return nil, err
	}
	return out, nil
}

type createBody struct {
	domain.PropertyPayload
	OwnerID string `json:"owner_id"`
}

func (c *Client) Create(ctx context.Context, p domain.PropertyPayload, ownerID string) (domain.PropertyRecord, error) {
	var out domain.PropertyRecord
	err := c.do(ctx, "create", http.MethodPost, c.base+"/properties", createBody{p, ownerID}, &out)
	return out, err
}

// Update patches the existing row; fields not in the payload are left alone.
func (c *Client) Update(ctx context.Context, id string, p domain.PropertyPayload) (domain.PropertyRecord, error) {
	var out domain.PropertyRecord
	u := fmt.Sprintf("%s/properties/%s", c.base, url.PathEscape(id))
	err := c.do(ctx, "update", http.MethodPatch, u, p, &out)
	return out, err
}

func (c *Client) ReplacePhotos(ctx context.Context, propertyID string, photos []domain.PhotoRecord) error {
	if photos == nil {
		photos = []domain.PhotoRecord{}
	}
	u := fmt.Sprintf("%s/properties/%s/photos", c.base, url.PathEscape(propertyID))
	return c.do(ctx, "replace_photos", http.MethodPut, u, photos, nil)
}

// ---- Internals ----

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrForbidden    = errors.New("backend: forbidden")
)

func (c *Client) getFirst(ctx context.Context, endpoint string, urls []string, out any) error {
	var last error
	for _, u := range urls {
		if err := c.do(ctx, endpoint, http.MethodGet, u, nil, out); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				last = err
				continue // try next pattern
			}
			return err // non-404: stop early
		}
		return nil // success
	}
	if last != nil {
		return last
	}
	return errors.New("no candidate URL succeeded")
}

// do performs one request with client-side rate limiting and JSON in/out.
// GETs are retried on network errors, 429 and transient 5xx. Writes are only
// retried on 429, where the backend has not processed the request; anything
// else is reported so the user decides whether to try again.
func (c *Client) do(ctx context.Context, endpoint, method, url string, body, out any) error {
	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", endpoint, err)
		}
		payload = b
	}
	idempotent := method == http.MethodGet

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rdr)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-Key", c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "staylist/1.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("backend", endpoint, 0, time.Since(start))
			// network error or context canceled
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if idempotent && i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("backend", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			defer resp.Body.Close()
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("decode %s response: %w", endpoint, err)
			}
			return nil

		case http.StatusNoContent:
			// success, empty body
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return fmt.Errorf("backend %s: %w", endpoint, domain.ErrNotFound)

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			retry := idempotent || resp.StatusCode == http.StatusTooManyRequests
			if retry && i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	// seconds form
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	// HTTP-date form
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay (200ms, 400ms, 800ms...) with
// up to +50% jitter from crypto/rand.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base)) // up to +50%
	return base + j
}
