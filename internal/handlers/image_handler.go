package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mithix/backend/internal/ledger"
	"github.com/mithix/backend/internal/models"
)

// RecordGetter loads a single generation record.
type RecordGetter interface {
	GetRecord(ctx context.Context, id string) (*models.GenerationRecord, error)
}

// ImageHandler serves /api/image/{id} endpoints.
type ImageHandler struct {
	Records RecordGetter
	Logger  *slog.Logger
}

func (h *ImageHandler) load(w http.ResponseWriter, r *http.Request) *models.GenerationRecord {
	rec, err := h.Records.GetRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		h.Logger.Error("get record", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return nil
	}
	return rec
}

// GetImage handles GET /api/image/{id}.
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	if rec := h.load(w, r); rec != nil {
		writeJSON(w, http.StatusOK, rec)
	}
}

// Download handles GET /api/image/{id}/download.
func (h *ImageHandler) Download(w http.ResponseWriter, r *http.Request) {
	rec := h.load(w, r)
	if rec == nil {
		return
	}
	ct := rec.ContentType
	if ct == "" {
		ct = mimetype.Detect(rec.ImageData).String()
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.ImageData)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mithix-ai-%s.%s"`, rec.ID, rec.FileExtension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.ImageData)
}

// ListModels handles GET /api/models (public).
func ListModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ledger.Prices())
}
