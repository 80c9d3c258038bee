package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-filegate/internal/application/verification"
	"github.com/go-filegate/internal/domain"
)

// VerifyHandler handles the public verification callback.
type VerifyHandler struct {
	svc verification.Service
}

func NewVerifyHandler(svc verification.Service) *VerifyHandler { return &VerifyHandler{svc: svc} }

// Complete is the landing endpoint for verification links. It must be
// reachable without auth: the user arrives from the shortened URL.
func (h *VerifyHandler) Complete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	res, err := h.svc.CompleteChallenge(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenAlreadyCompleted):
			writeError(w, http.StatusConflict, "this verification link was already used")
		case errors.Is(err, domain.ErrTokenExpired):
			writeError(w, http.StatusGone, "this verification link has expired, request a new one")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown verification link")
		case errors.Is(err, domain.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, VerifyEnvelope{
		Message: "verification complete, access granted for the next period",
		Result:  res,
	})
}
