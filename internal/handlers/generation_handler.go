package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mithix/backend/internal/middleware"
	"github.com/mithix/backend/internal/models"
	"github.com/mithix/backend/internal/services"
)

const maxGenerateBody = 64 << 10

// ImageGenerator runs one generate request.
type ImageGenerator interface {
	Generate(ctx context.Context, raw []byte, callerID string) (*models.GenerationRecord, error)
}

// GenerationHandler serves POST /api/generate-image.
type GenerationHandler struct {
	Generator ImageGenerator
	Logger    *slog.Logger
}

func (h *GenerationHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxGenerateBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request data")
		return
	}

	callerID := ""
	if acc := middleware.AccountFromCtx(r.Context()); acc != nil {
		callerID = acc.ID
	}

	rec, err := h.Generator.Generate(r.Context(), raw, callerID)
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *GenerationHandler) writeGenerationError(w http.ResponseWriter, err error) {
	var gerr *services.GenerationError
	if !errors.As(err, &gerr) {
		h.Logger.Error("generate image", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request data", Errors: gerr.Fields})
	case errors.Is(err, services.ErrInsufficientCredits):
		writeError(w, http.StatusBadRequest, "Insufficient credits")
	case errors.Is(err, services.ErrTemporarilyUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Message: "Model is currently loading. Please try again in a few seconds.",
			Error:   "Service temporarily unavailable",
		})
	case errors.Is(err, services.ErrUpstreamUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Message: "Invalid API key. Please check your Hugging Face API key.",
			Error:   "Unauthorized",
		})
	case errors.Is(err, services.ErrUpstreamBadResponse):
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Message: "Unexpected response format from Hugging Face API",
			Error:   gerr.Detail,
		})
	case errors.Is(err, services.ErrUpstreamFailed):
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Message: "Image generation failed",
			Error:   gerr.Detail,
		})
	default:
		msg := "Internal server error"
		if gerr.Detail != "" {
			msg = gerr.Detail
		}
		writeError(w, http.StatusInternalServerError, msg)
	}
}
