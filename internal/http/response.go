package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/observability"
)

type envelope struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
	IDs     []string    `json:"ids,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Message: message, Data: data})
}

func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidIDSet:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers expected failures with their details. Anything else is
// logged and reported as a generic failure.
func writeError(w http.ResponseWriter, r *http.Request, fallback observability.Logger, err error) {
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind == domain.KindUnexpected {
		observability.LoggerFromContext(r.Context(), fallback).
			WithField("path", r.URL.Path).
			WithError(err).
			Error("request failed")
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "internal server error"})
		return
	}
	if de.Kind == domain.KindUnavailable {
		observability.LoggerFromContext(r.Context(), fallback).WithError(err).Warn("dependency unavailable")
	}
	message := de.Message
	if message == "" {
		message = de.Kind.String()
	}
	writeJSON(w, statusOf(de.Kind), envelope{Message: message, Errors: de.Details, IDs: de.IDs})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewValidation("invalid request body", err.Error())
	}
	return nil
}
