package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-filegate/internal/application/verification"
	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/transport/http/middleware"
)

// AccessHandler exposes the caller's verification window and history,
// plus the admin stats rollup.
type AccessHandler struct {
	svc verification.Service
}

func NewAccessHandler(svc verification.Service) *AccessHandler { return &AccessHandler{svc: svc} }

func (h *AccessHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	status, err := h.svc.CheckAccess(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *AccessHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := int64(20)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	recs, err := h.svc.History(r.Context(), claims.UserID, int32(limit))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
		return
	}
	if recs == nil {
		recs = []domain.VerificationRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryEnvelope{Records: recs})
}

func (h *AccessHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}
