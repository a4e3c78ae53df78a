package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"nmrdeposit/internal/gateway/service/deposition"
	"nmrdeposit/internal/star/document"
)

// EntryHandler serves the deposition REST surface under /v1/entries.
type EntryHandler struct {
	svc *deposition.Service
}

func NewEntryHandler(svc *deposition.Service) *EntryHandler {
	return &EntryHandler{svc: svc}
}

func (h *EntryHandler) Routes(r chi.Router) {
	r.Route("/v1/entries", func(r chi.Router) {
		r.Post("/", h.Load)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Get("/status", h.Status)
			r.Post("/mutations", h.Mutate)
			r.Post("/save", h.Save)
			r.Get("/nmrstar", h.Export)
			r.Put("/files/{name}", h.Upload)
			r.Get("/watch", h.Watch)
		})
	})
}

// Load replaces the live document with the posted payload.
// POST /v1/entries
func (h *EntryHandler) Load(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Load(r.Context(), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// Get returns the document with its dictionary embedded.
// GET /v1/entries/{id}
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw, err := h.svc.JSON(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// GET /v1/entries/{id}/status
func (h *EntryHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /v1/entries/{id}/mutations
func (h *EntryHandler) Mutate(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	m, err := document.DecodeMutation(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_MUTATION", err.Error())
		return
	}
	st, err := h.svc.Apply(r.Context(), chi.URLParam(r, "id"), m)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /v1/entries/{id}/save
func (h *EntryHandler) Save(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Save(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/entries/{id}/nmrstar
func (h *EntryHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, err := h.svc.Export(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+strings.TrimSpace(id)+`.str"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// PUT /v1/entries/{id}/files/{name}
func (h *EntryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	res, err := h.svc.UploadFile(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name"), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
