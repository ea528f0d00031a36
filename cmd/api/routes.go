package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/mithix/backend/internal/auth"
	"github.com/mithix/backend/internal/config"
	"github.com/mithix/backend/internal/handlers"
	"github.com/mithix/backend/internal/imaging"
	"github.com/mithix/backend/internal/inference"
	"github.com/mithix/backend/internal/ledger"
	"github.com/mithix/backend/internal/repository"
	"github.com/mithix/backend/internal/router"
	"github.com/mithix/backend/internal/services"
)

// newAPIHandler wires services over store and returns the CORS-wrapped API.
// The default account is seeded here.
func newAPIHandler(ctx context.Context, cfg *config.Config, store repository.Store, logger *slog.Logger) (http.Handler, error) {
	authSvc := auth.NewService(store, cfg.JWTSecret)
	if err := authSvc.EnsureDefaultAccount(ctx); err != nil {
		return nil, err
	}

	validator, err := services.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("request validator: %w", err)
	}

	ledgerSvc := ledger.NewService(store)
	client := inference.NewHFClient(inference.Options{
		BaseURL:  cfg.InferenceURL,
		APIKey:   cfg.APIKey(),
		Timeout:  cfg.InferenceTimeout,
		MaxBytes: cfg.MaxImageBytes,
	})

	var watermarker services.Watermarker
	if cfg.WatermarkEnabled {
		watermarker = imaging.NewWatermarker(cfg.WatermarkText)
	}

	generator := services.NewGenerator(validator, ledgerSvc, store, client, watermarker, logger)

	api := router.New(router.Deps{
		Auth:          auth.NewHandler(authSvc, logger),
		Generation:    &handlers.GenerationHandler{Generator: generator, Logger: logger},
		Accounts:      &handlers.AccountHandler{Accounts: store, Ledger: ledgerSvc, Logger: logger},
		Images:        &handlers.ImageHandler{Records: store, Logger: logger},
		Tokens:        authSvc,
		AccountLookup: store,
		AdminToken:    cfg.AdminToken,
		Logger:        logger,
	})

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(api), nil
}
