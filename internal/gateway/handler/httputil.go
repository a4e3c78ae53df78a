package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"nmrdeposit/internal/gateway/repository/entrystore"
	"nmrdeposit/internal/gateway/service/catalog"
	"nmrdeposit/internal/gateway/service/deposition"
	"nmrdeposit/internal/star/document"
	"nmrdeposit/internal/star/envelope"
)

const maxBodyBytes = 64 << 20

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: encode response: %v", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", err.Error())
		return nil, false
	}
	return body, true
}

// errorStatus maps service errors onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	var syntax *json.SyntaxError
	switch {
	case errors.Is(err, envelope.ErrInvalid),
		errors.Is(err, document.ErrNoSchema),
		errors.Is(err, deposition.ErrEntryRequired),
		errors.As(err, &syntax):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, catalog.ErrUnknownVersion):
		return http.StatusUnprocessableEntity, "UNKNOWN_SCHEMA"
	case errors.Is(err, entrystore.ErrNotFound),
		errors.Is(err, document.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, document.ErrDisabled):
		return http.StatusConflict, "DISABLED"
	case errors.Is(err, document.ErrExists):
		return http.StatusConflict, "EXISTS"
	case errors.Is(err, deposition.ErrSuperseded):
		return http.StatusConflict, "SUPERSEDED"
	case errors.Is(err, document.ErrStructure):
		return http.StatusUnprocessableEntity, "STRUCTURE"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("handler: internal error: %v", err)
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}
