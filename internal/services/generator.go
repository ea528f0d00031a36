package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mithix/backend/internal/inference"
	"github.com/mithix/backend/internal/ledger"
	"github.com/mithix/backend/internal/metrics"
	"github.com/mithix/backend/internal/models"
)

// RecordCreator persists generation records.
type RecordCreator interface {
	CreateRecord(ctx context.Context, d *models.GenerationDraft) (*models.GenerationRecord, error)
}

// Watermarker post-processes an image payload.
type Watermarker interface {
	Apply(data []byte, contentType string) ([]byte, string, error)
}

// Generator runs one generate request end to end: validate, price, hold
// credits, call inference, watermark, persist, commit. Any failure after the
// hold releases it.
type Generator struct {
	Validator   *Validator
	Ledger      ledger.Service
	Records     RecordCreator
	Inference   inference.Client
	Watermarker Watermarker // nil disables watermarking
	Logger      *slog.Logger
}

func NewGenerator(
	validator *Validator,
	ledgerSvc ledger.Service,
	records RecordCreator,
	client inference.Client,
	watermarker Watermarker,
	logger *slog.Logger,
) *Generator {
	return &Generator{
		Validator:   validator,
		Ledger:      ledgerSvc,
		Records:     records,
		Inference:   client,
		Watermarker: watermarker,
		Logger:      logger,
	}
}

// Generate handles one raw request body. callerID is the authenticated
// account, or "" for anonymous calls. Errors are *GenerationError.
func (g *Generator) Generate(ctx context.Context, raw []byte, callerID string) (*models.GenerationRecord, error) {
	req, err := g.Validator.ParseGenerateRequest(raw)
	if err != nil {
		metrics.RecordGeneration("", "invalid_request")
		var ve *RequestValidationError
		if errors.As(err, &ve) {
			return nil, &GenerationError{Err: ErrInvalidRequest, Fields: ve.Fields, cause: err}
		}
		return nil, genError(ErrInvalidRequest, err.Error(), err)
	}
	model := string(req.ModelID)
	accountID := resolveAccount(callerID, req.UserID)

	cost, err := g.Ledger.Quote(req.ModelID, req.NumImages)
	if err != nil {
		metrics.RecordGeneration(model, "internal")
		g.Logger.Error("pricing failed", "model", model, "error", err)
		return nil, genError(ErrInternal, "model has no configured price", err)
	}

	res, err := g.Ledger.AuthorizeAndReserve(ctx, accountID, cost)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			metrics.RecordGeneration(model, "insufficient_credits")
			return nil, genError(ErrInsufficientCredits, "", err)
		}
		metrics.RecordGeneration(model, "internal")
		g.Logger.Error("reserve credits failed", "account_id", accountID, "error", err)
		return nil, genError(ErrInternal, "", err)
	}

	g.Logger.Info("generating image", "model", model, "account_id", accountID, "cost", cost, "reservation_id", res.ID)

	img, err := g.Inference.GenerateImage(ctx, inference.Request{
		Model:          req.ModelID,
		Prompt:         req.Prompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		CfgScale:       req.CfgScale,
		NegativePrompt: req.NegativePrompt,
		Seed:           req.Seed,
	})
	if err != nil {
		gerr, outcome := mapInferenceError(err)
		g.release(ctx, res)
		metrics.RecordGeneration(model, outcome)
		g.Logger.Warn("inference failed", "model", model, "account_id", accountID, "outcome", outcome, "error", err)
		return nil, gerr
	}

	data, contentType := g.watermark(img)

	rec, err := g.Records.CreateRecord(ctx, &models.GenerationDraft{
		AccountID:      &accountID,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          req.ModelID,
		StylePreset:    req.StylePreset,
		ImageData:      data,
		ContentType:    contentType,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		CfgScale:       req.CfgScale,
		Seed:           req.Seed,
		Settings: &models.GenerationSettings{
			Width:          req.Width,
			Height:         req.Height,
			Steps:          req.Steps,
			CfgScale:       req.CfgScale,
			NegativePrompt: req.NegativePrompt,
			Seed:           req.Seed,
		},
	})
	if err != nil {
		g.release(ctx, res)
		metrics.RecordGeneration(model, "internal")
		g.Logger.Error("persist record failed", "account_id", accountID, "error", err)
		return nil, genError(ErrInternal, "", err)
	}

	if err := g.Ledger.Commit(context.WithoutCancel(ctx), res, rec.ID); err != nil {
		// The debit already happened; only the audit row is missing.
		g.Logger.Error("commit reservation failed", "reservation_id", res.ID, "record_id", rec.ID, "error", err)
	}
	metrics.RecordCreditsSpent(model, cost)
	metrics.RecordGeneration(model, "success")
	return rec, nil
}

func resolveAccount(callerID string, bodyUserID *string) string {
	if callerID != "" {
		return callerID
	}
	if bodyUserID != nil && *bodyUserID != "" {
		return *bodyUserID
	}
	return models.DefaultAccountID
}

func (g *Generator) release(ctx context.Context, res *ledger.Reservation) {
	if err := g.Ledger.Release(context.WithoutCancel(ctx), res); err != nil {
		g.Logger.Error("release reservation failed", "reservation_id", res.ID, "account_id", res.AccountID, "amount", res.Amount, "error", err)
	}
}

// watermark never fails the request; on error the original payload is kept.
func (g *Generator) watermark(img *inference.Image) ([]byte, string) {
	if g.Watermarker == nil {
		return img.Data, img.ContentType
	}
	data, ct, err := g.Watermarker.Apply(img.Data, img.ContentType)
	if err != nil {
		metrics.RecordWatermarkFailure()
		g.Logger.Warn("watermark failed, serving original image", "content_type", img.ContentType, "error", err)
		return img.Data, img.ContentType
	}
	return data, ct
}

func mapInferenceError(err error) (*GenerationError, string) {
	detail := ""
	var upErr *inference.UpstreamError
	if errors.As(err, &upErr) {
		detail = upErr.Body
	}
	switch {
	case errors.Is(err, inference.ErrNotConfigured):
		return genError(ErrInternal, "Hugging Face API key not configured. Please add your API key to environment variables.", err), "not_configured"
	case errors.Is(err, inference.ErrModelLoading):
		return genError(ErrTemporarilyUnavailable, "", err), "temporarily_unavailable"
	case errors.Is(err, inference.ErrUnauthorized):
		return genError(ErrUpstreamUnauthorized, "", err), "upstream_unauthorized"
	case errors.Is(err, inference.ErrBadResponse):
		if detail == "" {
			detail = err.Error()
		}
		return genError(ErrUpstreamBadResponse, detail, err), "upstream_bad_response"
	case errors.Is(err, inference.ErrUpstream):
		if detail == "" {
			detail = err.Error()
		}
		return genError(ErrUpstreamFailed, detail, err), "upstream_failed"
	default:
		return genError(ErrInternal, "", err), "internal"
	}
}
