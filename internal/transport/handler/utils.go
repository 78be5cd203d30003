package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type APIError struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

func writeMultipartError(w http.ResponseWriter, err error) {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "too large"):
		writeJSONError(w, "uploaded file exceeds maximum allowed size", http.StatusRequestEntityTooLarge)

	case strings.Contains(msg, "content-type isn't multipart/form-data"):
		writeJSONError(w, "invalid content type, expected multipart/form-data", http.StatusBadRequest)

	default:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(APIError{
		Error: message,
	})
}

// CSV catalogs are sniffed as text/plain more often than text/csv, so both
// are accepted.
var allowedCatalogMIMEs = map[string]struct{}{
	"text/csv":   {},
	"text/plain": {},
}

func validateCatalogMimeType(mimeType string) error {
	// mimetype may append a charset parameter
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if _, ok := allowedCatalogMIMEs[mimeType]; !ok {
		return fmt.Errorf("requested catalog upload with invalid type: %s", mimeType)
	}
	return nil
}
