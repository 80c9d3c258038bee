package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-filegate/internal/application/delivery"
	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/pkg/validate"
	"github.com/go-filegate/internal/transport/http/middleware"
)

// DeliveryHandler handles gated delivery requests.
type DeliveryHandler struct {
	svc delivery.Service
}

func NewDeliveryHandler(svc delivery.Service) *DeliveryHandler { return &DeliveryHandler{svc: svc} }

type deliveryRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

// Request resolves an item delivery for the caller. Verified users get
// 200 with the artifact reference; unverified users get 202 with a
// verification link.
func (h *DeliveryHandler) Request(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body deliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.RequestDelivery(r.Context(), claims.UserID, body.ItemID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "item not found")
		case errors.Is(err, domain.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	status := http.StatusOK
	if res.Outcome == delivery.OutcomePendingVerification {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}
