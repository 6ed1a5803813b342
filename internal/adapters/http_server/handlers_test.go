package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"staylist/internal/adapters/auth"
	httpserver "staylist/internal/adapters/http_server"
	"staylist/internal/adapters/upload"
	"staylist/internal/app"
	"staylist/internal/domain"
	"staylist/internal/storage/drafts"
)

// memGateway is an in-memory entity gateway.
type memGateway struct {
	mu     sync.Mutex
	seq    int
	props  map[string]domain.PropertyRecord
	photos map[string][]domain.PhotoRecord
}

func newMemGateway() *memGateway {
	return &memGateway{props: map[string]domain.PropertyRecord{}, photos: map[string][]domain.PhotoRecord{}}
}

func (g *memGateway) GetByID(_ context.Context, id string, _ bool) (domain.PropertyRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.props[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (g *memGateway) Create(_ context.Context, p domain.PropertyPayload, owner string) (domain.PropertyRecord, error) {
	rec, err := p.Record()
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("p-%d", g.seq)
	rec["id"], rec["owner_id"] = id, owner
	g.props[id] = rec
	return rec, nil
}

func (g *memGateway) Update(_ context.Context, id string, p domain.PropertyPayload) (domain.PropertyRecord, error) {
	rec, err := p.Record()
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	old, ok := g.props[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec["id"], rec["owner_id"] = id, old["owner_id"]
	g.props[id] = rec
	return rec, nil
}

func (g *memGateway) GetPhotos(_ context.Context, id string) ([]domain.PhotoRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.PhotoRecord(nil), g.photos[id]...), nil
}

func (g *memGateway) ReplacePhotos(_ context.Context, id string, ps []domain.PhotoRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.photos[id] = append([]domain.PhotoRecord(nil), ps...)
	return nil
}

type harness struct {
	srv    *httptest.Server
	ver    *auth.Verifier
	gw     *memGateway
	drafts *drafts.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ver, err := auth.NewVerifier("test-secret", "")
	if err != nil {
		t.Fatal(err)
	}
	local, err := upload.NewLocal(t.TempDir(), "http://media.test")
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{ver: ver, gw: newMemGateway(), drafts: drafts.NewMemory()}
	gate := app.DefaultGateConfig()
	gate.InitialDelay, gate.GraceWindow, gate.PollInterval = 20*time.Millisecond, 40*time.Millisecond, 5*time.Millisecond
	reg := app.NewRegistry(app.Deps{
		Gateway:          h.gw,
		Drafts:           h.drafts,
		Photos:           app.NewPhotoIngest(local, 2, 64),
		Gate:             gate,
		AutosaveInterval: time.Hour,
	})
	t.Cleanup(reg.CloseAll)

	s := httpserver.New()
	s.MountHandlers(&httpserver.Handlers{
		Wizards:  reg,
		Sessions: func(r *http.Request) domain.SessionProvider { return ver.FromRequest(r) },
	})
	h.srv = httptest.NewServer(s.Mux())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := h.ver.Issue(user, role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (h *harness) do(t *testing.T, method, path, tok string, body any) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decodeBody(t *testing.T, res *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func wantStatus(t *testing.T, res *http.Response, want int) {
	t.Helper()
	if res.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d", res.Request.Method, res.Request.URL.Path, res.StatusCode, want)
	}
}

func listingDoc() domain.WizardDocument {
	doc := domain.NewWizardDocument()
	doc.Basic = domain.BasicInfo{
		Title:       "Casa Azul",
		Category:    domain.CategoryVilla,
		Description: "Three bedroom villa by the beach",
		Address:     "12 Beach Road",
		City:        "Goa",
		State:       "Goa",
		Country:     "India",
		Languages:   []string{"English"},
	}
	doc.Capacity = domain.Capacity{RoomsCount: 3, CapacityPerRoom: 2, Bedrooms: 3, Bathrooms: 2}
	doc.Rooms.RoomTypes = []domain.RoomType{
		{Type: "Deluxe", Count: 2, PricePerNight: 4000},
		{Type: "Suite", Count: 1, PricePerNight: 7000},
	}
	doc.Pricing.BaseRate = 4000
	doc.Photos.Add(domain.Photo{ImageURL: "https://cdn.example.com/front.jpg"})
	return doc
}

func openWizard(t *testing.T, h *harness, tok string) string {
	t.Helper()
	res := h.do(t, http.MethodPost, "/v1/wizards", tok, map[string]string{})
	wantStatus(t, res, http.StatusCreated)
	var out struct {
		ID string `json:"id"`
	}
	decodeBody(t, res, &out)
	if out.ID == "" {
		t.Fatal("empty wizard id")
	}
	return out.ID
}

func TestHTTP_OpenRequiresSession(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, http.MethodPost, "/v1/wizards", "", nil)
	wantStatus(t, res, http.StatusUnauthorized)
	if ct := res.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type %q", ct)
	}

	guest := h.token(t, "u-1", "guest")
	res = h.do(t, http.MethodPost, "/v1/wizards", guest, nil)
	wantStatus(t, res, http.StatusForbidden)
}

func TestHTTP_CreateListingFlow(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "owner-1", "property_owner")
	id := openWizard(t, h, tok)
	base := "/v1/wizards/" + id

	// next is blocked on an empty document
	res := h.do(t, http.MethodPost, base+"/next", tok, nil)
	wantStatus(t, res, http.StatusUnprocessableEntity)

	wantStatus(t, h.do(t, http.MethodPut, base+"/document", tok, listingDoc()), http.StatusOK)

	for i := 0; i < len(app.DefaultSteps)-1; i++ {
		res := h.do(t, http.MethodPost, base+"/next", tok, nil)
		wantStatus(t, res, http.StatusOK)
	}
	// the final step submits instead of moving on
	wantStatus(t, h.do(t, http.MethodPost, base+"/next", tok, nil), http.StatusConflict)

	res = h.do(t, http.MethodPost, base+"/submit", tok, nil)
	wantStatus(t, res, http.StatusCreated)
	var sub app.SubmitResult
	decodeBody(t, res, &sub)
	if sub.PropertyID == "" || !sub.Created {
		t.Fatalf("submit result %+v", sub)
	}
	rec, err := h.gw.GetByID(context.Background(), sub.PropertyID, true)
	if err != nil || rec.OwnerID() != "owner-1" {
		t.Fatalf("stored %+v err=%v", rec, err)
	}
	if _, ok, _ := h.drafts.Load(context.Background(), "owner-1"); ok {
		t.Fatal("draft should be cleared after submit")
	}

	// edits after a finished submit are refused
	wantStatus(t, h.do(t, http.MethodPut, base+"/document", tok, listingDoc()), http.StatusGone)
}

func TestHTTP_OtherUsersCannotSeeWizard(t *testing.T) {
	h := newHarness(t)
	id := openWizard(t, h, h.token(t, "owner-1", "owner"))
	other := h.token(t, "owner-2", "owner")
	wantStatus(t, h.do(t, http.MethodGet, "/v1/wizards/"+id, other, nil), http.StatusNotFound)
	wantStatus(t, h.do(t, http.MethodGet, "/v1/wizards/"+id, "", nil), http.StatusUnauthorized)
}

func TestHTTP_NavigationAndDraft(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "owner-1", "owner")
	base := "/v1/wizards/" + openWizard(t, h, tok)

	wantStatus(t, h.do(t, http.MethodPost, base+"/goto", tok, map[string]int{"index": 99}), http.StatusBadRequest)
	wantStatus(t, h.do(t, http.MethodPost, base+"/goto", tok, map[string]any{}), http.StatusBadRequest)

	res := h.do(t, http.MethodPost, base+"/goto", tok, map[string]int{"index": 4})
	wantStatus(t, res, http.StatusOK)
	var tr struct {
		State app.State `json:"state"`
	}
	decodeBody(t, res, &tr)
	if tr.State.Index != 4 {
		t.Fatalf("index = %d", tr.State.Index)
	}
	wantStatus(t, h.do(t, http.MethodPost, base+"/previous", tok, nil), http.StatusOK)

	// no title or category yet, so there is nothing worth saving
	res = h.do(t, http.MethodPost, base+"/draft", tok, nil)
	wantStatus(t, res, http.StatusOK)
	var saved map[string]bool
	decodeBody(t, res, &saved)
	if saved["saved"] {
		t.Fatal("a document without identity must not be saved")
	}

	wantStatus(t, h.do(t, http.MethodPut, base+"/document", tok, listingDoc()), http.StatusOK)
	res = h.do(t, http.MethodPost, base+"/draft", tok, nil)
	decodeBody(t, res, &saved)
	if !saved["saved"] {
		t.Fatal("expected draft to be saved")
	}
	rec, ok, _ := h.drafts.Load(context.Background(), "owner-1")
	if !ok || rec.Step != 3 {
		t.Fatalf("draft %+v ok=%v", rec, ok)
	}

	res = h.do(t, http.MethodGet, base+"/validate", tok, nil)
	wantStatus(t, res, http.StatusOK)
}

func TestHTTP_PhotoEndpoints(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "owner-1", "owner")
	base := "/v1/wizards/" + openWizard(t, h, tok)

	wantStatus(t, h.do(t, http.MethodPost, base+"/photos/url", tok, map[string]string{"url": "ftp://x/a.jpg"}), http.StatusBadRequest)
	wantStatus(t, h.do(t, http.MethodPost, base+"/photos/url", tok, map[string]string{"url": "https://x/a.jpg"}), http.StatusCreated)

	// multipart upload with one good and one broken file
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("files", "room.png")
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	_ = png.Encode(fw, img)
	fw, _ = mw.CreateFormFile("files", "broken.jpg")
	_, _ = fw.Write([]byte("not an image"))
	_ = mw.WriteField("category", "bedroom")
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, h.srv.URL+base+"/photos/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	wantStatus(t, res, http.StatusMultiStatus)
	var items []struct {
		Name  string        `json:"name"`
		Photo *domain.Photo `json:"photo"`
		Error string        `json:"error"`
	}
	decodeBody(t, res, &items)
	if len(items) != 2 || items[0].Photo == nil || items[1].Error == "" {
		t.Fatalf("per-file results %+v", items)
	}
	if items[0].Photo.Category != "bedroom" || items[0].Photo.IsPrimary {
		t.Fatalf("uploaded photo %+v", items[0].Photo)
	}

	res = h.do(t, http.MethodPost, base+"/photos/1/primary", tok, nil)
	wantStatus(t, res, http.StatusOK)
	var photos []domain.Photo
	decodeBody(t, res, &photos)
	if len(photos) != 2 || photos[0].IsPrimary || !photos[1].IsPrimary {
		t.Fatalf("photos %+v", photos)
	}

	wantStatus(t, h.do(t, http.MethodPost, base+"/photos/1/move", tok, map[string]string{"direction": "up"}), http.StatusOK)
	wantStatus(t, h.do(t, http.MethodPost, base+"/photos/0/move", tok, map[string]string{"direction": "sideways"}), http.StatusBadRequest)
	wantStatus(t, h.do(t, http.MethodPatch, base+"/photos/0", tok, map[string]string{"caption": "Bedroom"}), http.StatusOK)
	wantStatus(t, h.do(t, http.MethodDelete, base+"/photos/7", tok, nil), http.StatusBadRequest)

	res = h.do(t, http.MethodDelete, base+"/photos/0", tok, nil)
	wantStatus(t, res, http.StatusOK)
	decodeBody(t, res, &photos)
	if len(photos) != 1 || !photos[0].IsPrimary || photos[0].DisplayOrder != 0 {
		t.Fatalf("after remove %+v", photos)
	}
}

func TestHTTP_CloseWizard(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "owner-1", "owner")
	base := "/v1/wizards/" + openWizard(t, h, tok)
	wantStatus(t, h.do(t, http.MethodDelete, base, tok, nil), http.StatusNoContent)
	wantStatus(t, h.do(t, http.MethodGet, base, tok, nil), http.StatusNotFound)
}
