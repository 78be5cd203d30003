package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/StoneRaptor5870/image-processor/internal/config"
	"github.com/StoneRaptor5870/image-processor/internal/entities"
	"github.com/StoneRaptor5870/image-processor/internal/repository/storage"
	use_case "github.com/StoneRaptor5870/image-processor/internal/use-case"
)

type UseCase interface {
	IngestCatalog(ctx context.Context, file io.Reader) (string, error)
	GetStatus(ctx context.Context, requestID string) (entities.RequestStatus, error)
	ExportResults(ctx context.Context, requestID string, w io.Writer) error
	CompleteRequest(ctx context.Context, requestID string) error
}

type Handler struct {
	useCase UseCase
	cfg     *config.Config
}

func New(useCase UseCase, cfg *config.Config) *Handler {
	return &Handler{
		useCase: useCase,
		cfg:     cfg,
	}
}

// UploadCatalog accepts a product catalog as a CSV file under the multipart
// field "file", stores its rows and responds with the request id that tracks
// the background processing.
func (h *Handler) UploadCatalog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	maxMultipartMem := h.cfg.Upload.MaxMultipartMemoryMB
	if err := r.ParseMultipartForm(maxMultipartMem << 20); err != nil {
		writeMultipartError(w, err)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		if strings.Contains(err.Error(), "no such file") {
			writeJSONError(w, `missing catalog file: form field key should be "file"`, http.StatusBadRequest)
		} else {
			writeJSONError(w, "an error occurred while uploading the file: "+err.Error(), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := validateCatalogMimeType(mime.String()); err != nil {
		writeJSONError(w, fmt.Sprintf("unsupported file type: %s", mime.String()), http.StatusBadRequest)
		return
	}

	if _, err := file.Seek(0, 0); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	requestID, err := h.useCase.IngestCatalog(r.Context(), file)
	if err != nil {
		if errors.Is(err, use_case.ErrEmptyCatalog) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"request_id": requestID})
}

// RequestStatus reports processing state. A pending request answers with its
// status as JSON; a completed one streams the processed catalog back as a
// CSV download.
func (h *Handler) RequestStatus(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	status, err := h.useCase.GetStatus(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, storage.ErrRequestNotFound) {
			writeJSONError(w, "request ID not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if status != entities.StatusCompleted {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="products_%s.csv"`, requestID))
	if err := h.useCase.ExportResults(r.Context(), requestID, w); err != nil {
		// Headers are already on the wire, so the status cannot change.
		log.Printf("[handler] failed to export results for %s: %v", requestID, err)
	}
}

type webhookPayload struct {
	RequestID string `json:"request_id"`
}

// Webhook receives the completion notification and flips the request status.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.RequestID == "" {
		writeJSONError(w, "request ID is required", http.StatusBadRequest)
		return
	}

	if err := h.useCase.CompleteRequest(r.Context(), payload.RequestID); err != nil {
		if errors.Is(err, storage.ErrRequestNotFound) {
			writeJSONError(w, "request not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
