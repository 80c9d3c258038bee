package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-filegate/internal/application/catalog"
	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/pkg/validate"
	"github.com/go-filegate/internal/transport/http/middleware"
)

// CatalogHandler handles catalog search and admin item management.
type CatalogHandler struct {
	svc catalog.Service
}

func NewCatalogHandler(svc catalog.Service) *CatalogHandler { return &CatalogHandler{svc: svc} }

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter")
		return
	}
	results, err := h.svc.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
		return
	}
	if results == nil {
		results = []catalog.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchEnvelope{Query: query, Count: len(results), Results: results})
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// Create ingests a new artifact as multipart form data: a `file` part
// plus title/year/quality/language fields.
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer f.Close()

	year := 0
	if s := r.FormValue("year"); s != "" {
		if year, err = strconv.Atoi(s); err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
	}
	req := &domain.CreateItemRequest{
		Title:    r.FormValue("title"),
		Year:     year,
		Quality:  r.FormValue("quality"),
		Language: r.FormValue("language"),
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	it, err := h.svc.AddItem(r.Context(), req, claims.UserID,
		header.Filename, header.Header.Get("Content-Type"), header.Size, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "item removed"})
}
