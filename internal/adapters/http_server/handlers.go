// internal/adapters/http_server/handlers.go
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"staylist/internal/app"
	"staylist/internal/domain"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 64 << 20
	maxUploadFile = 20 << 20
)

type Handlers struct {
	Wizards  *app.Registry
	Sessions SessionSource
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/wizards", func(r chi.Router) {
		r.Use(WithSession(h.Sessions))
		r.Post("/", h.open)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.state)
			r.Delete("/", h.close)
			r.Put("/document", h.putDocument)
			r.Post("/next", h.next)
			r.Post("/previous", h.previous)
			r.Post("/goto", h.goTo)
			r.Get("/validate", h.validate)
			r.Post("/draft", h.saveDraft)
			r.Post("/submit", h.submit)

			r.Post("/photos/url", h.addPhotoURL)
			r.Post("/photos/upload", h.uploadPhotos)
			r.Delete("/photos/{index}", h.removePhoto)
			r.Patch("/photos/{index}", h.updatePhotoMeta)
			r.Post("/photos/{index}/primary", h.setPrimaryPhoto)
			r.Post("/photos/{index}/move", h.movePhoto)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps wizard errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrSessionExpired):
		writeProblem(w, http.StatusUnauthorized, "Session Expired", "sign in again to continue")
	case errors.Is(err, domain.ErrAccessDenied):
		writeProblem(w, http.StatusForbidden, "Access Denied", err.Error())
	case errors.Is(err, domain.ErrSubmitInProgress), errors.Is(err, domain.ErrFinalStep):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrInvalidStep), errors.Is(err, domain.ErrInvalidPhoto):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrWizardClosed):
		writeProblem(w, http.StatusGone, "Wizard Closed", err.Error())
	default:
		log.Error().Err(err).Msg("wizard request failed")
		writeProblem(w, http.StatusBadGateway, "Upstream Error", "the listing service did not accept the request; try again")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

// wizard resolves {id} for the calling user.
func (h *Handlers) wizard(w http.ResponseWriter, r *http.Request) (*app.Wizard, bool) {
	user, ok := userFrom(r)
	if !ok {
		writeError(w, domain.ErrSessionExpired)
		return nil, false
	}
	wz, err := h.Wizards.Get(chi.URLParam(r, "id"), user)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return wz, true
}

func photoIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid Index", "index must be a non-negative integer")
		return 0, false
	}
	return i, true
}

/********** lifecycle **********/

type openRequest struct {
	PropertyID string `json:"property_id"`
}

type openResponse struct {
	ID    string    `json:"id"`
	State app.State `json:"state"`
}

func (h *Handlers) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PropertyID == "" {
		req.PropertyID = r.URL.Query().Get("property_id")
	}
	id, wz, err := h.Wizards.Open(r.Context(), sessionFrom(r), strings.TrimSpace(req.PropertyID))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/wizards/"+id)
	writeJSON(w, http.StatusCreated, openResponse{ID: id, State: wz.State()})
}

func (h *Handlers) state(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wz.State())
}

func (h *Handlers) close(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r)
	if !ok {
		writeError(w, domain.ErrSessionExpired)
		return
	}
	if err := h.Wizards.Close(chi.URLParam(r, "id"), user); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/********** document and navigation **********/

func (h *Handlers) putDocument(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var doc domain.WizardDocument
	if !decode(w, r, &doc) {
		return
	}
	if err := wz.Replace(doc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.State())
}

type transitionResponse struct {
	Transition app.Transition `json:"transition"`
	State      app.State      `json:"state"`
}

func (h *Handlers) navigate(w http.ResponseWriter, r *http.Request, move func(*app.Wizard) (app.Transition, error)) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	t, err := move(wz)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !t.Moved && !t.Validation.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, transitionResponse{Transition: t, State: wz.State()})
}

func (h *Handlers) next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*app.Wizard).Next)
}

func (h *Handlers) previous(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*app.Wizard).Previous)
}

func (h *Handlers) goTo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Index == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "index is required")
		return
	}
	h.navigate(w, r, func(wz *app.Wizard) (app.Transition, error) { return wz.GoTo(*req.Index) })
}

func (h *Handlers) validate(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wz.Validate())
}

func (h *Handlers) saveDraft(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	saved, err := wz.SaveDraft(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	res, err := wz.Submit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Validation.OK {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

/********** photos **********/

type photoMeta struct {
	Caption  string `json:"caption"`
	AltText  string `json:"alt_text"`
	Category string `json:"category"`
}

func (h *Handlers) addPhotoURL(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req struct {
		URL string `json:"url"`
		photoMeta
	}
	if !decode(w, r, &req) {
		return
	}
	ph, err := wz.AddPhotoURL(req.URL, req.Caption, req.AltText, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ph)
}

type uploadItem struct {
	Name  string        `json:"name"`
	Photo *domain.Photo `json:"photo,omitempty"`
	Error string        `json:"error,omitempty"`
}

// uploadPhotos takes a multipart form with one or more "files" parts and
// reports the outcome per file.
func (h *Handlers) uploadPhotos(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadFile); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", `no "files" parts in form`)
		return
	}
	category := r.FormValue("category")
	files := make([]app.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Upload", fmt.Sprintf("%s: %v", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadFile+1))
		_ = f.Close()
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Upload", fmt.Sprintf("%s: %v", fh.Filename, err))
			return
		}
		if len(data) > maxUploadFile {
			writeProblem(w, http.StatusRequestEntityTooLarge, "File Too Large", fh.Filename)
			return
		}
		files = append(files, app.UploadFile{
			Name:        fh.Filename,
			Data:        data,
			ContentType: fh.Header.Get("Content-Type"),
			Category:    category,
		})
	}

	results, err := wz.UploadPhotos(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]uploadItem, len(results))
	failed := 0
	for i, res := range results {
		out[i].Name = res.Name
		if res.OK() {
			ph := res.Photo
			out[i].Photo = &ph
		} else {
			out[i].Error = res.Err.Error()
			failed++
		}
	}
	status := http.StatusOK
	if failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, out)
}

func (h *Handlers) removePhoto(w http.ResponseWriter, r *http.Request) {
	h.photoOp(w, r, func(wz *app.Wizard, i int) error { return wz.RemovePhoto(i) })
}

func (h *Handlers) setPrimaryPhoto(w http.ResponseWriter, r *http.Request) {
	h.photoOp(w, r, func(wz *app.Wizard, i int) error { return wz.SetPrimaryPhoto(i) })
}

func (h *Handlers) movePhoto(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if !decode(w, r, &req) {
		return
	}
	var d domain.Direction
	switch strings.ToLower(req.Direction) {
	case "up":
		d = domain.Up
	case "down":
		d = domain.Down
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid Direction", `direction must be "up" or "down"`)
		return
	}
	h.photoOp(w, r, func(wz *app.Wizard, i int) error { return wz.MovePhoto(i, d) })
}

func (h *Handlers) updatePhotoMeta(w http.ResponseWriter, r *http.Request) {
	var req photoMeta
	if !decode(w, r, &req) {
		return
	}
	h.photoOp(w, r, func(wz *app.Wizard, i int) error {
		return wz.UpdatePhotoMeta(i, req.Caption, req.AltText, req.Category)
	})
}

// photoOp runs an index-addressed photo edit and answers with the photo list.
func (h *Handlers) photoOp(w http.ResponseWriter, r *http.Request, op func(*app.Wizard, int) error) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	i, ok := photoIndex(w, r)
	if !ok {
		return
	}
	if err := op(wz, i); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.Document().Photos)
}
