package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-filegate/internal/application/catalog"
	"github.com/go-filegate/internal/application/verification"
	"github.com/go-filegate/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// VerifyEnvelope wraps challenge-completion responses.
type VerifyEnvelope struct {
	Message string                         `json:"message,omitempty"`
	Result  *verification.CompletionResult `json:"result,omitempty"`
	Error   string                         `json:"error,omitempty"`
}

// SearchEnvelope wraps catalog search responses.
type SearchEnvelope struct {
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
	Results []catalog.SearchResult `json:"results"`
	Error   string                 `json:"error,omitempty"`
}

// HistoryEnvelope wraps verification history responses.
type HistoryEnvelope struct {
	Records []domain.VerificationRecord `json:"records"`
	Error   string                      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
