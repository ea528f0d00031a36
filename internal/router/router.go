package router

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mithix/backend/internal/auth"
	"github.com/mithix/backend/internal/handlers"
	"github.com/mithix/backend/internal/middleware"
)

// Deps is everything the API routes need.
type Deps struct {
	Auth          *auth.Handler
	Generation    *handlers.GenerationHandler
	Accounts      *handlers.AccountHandler
	Images        *handlers.ImageHandler
	Tokens        middleware.TokenValidator
	AccountLookup middleware.AccountLookup
	AdminToken    string
	Logger        *slog.Logger
}

// New returns an http.Handler that serves the API under /api plus /healthz
// and /metrics.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	bearer := middleware.BearerAuth(d.Tokens, d.AccountLookup)
	admin := middleware.AdminToken(d.AdminToken)

	mux.HandleFunc("POST /api/auth/register", d.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", d.Auth.Login)
	mux.Handle("GET /api/auth/me", bearer(middleware.RequireAccount(http.HandlerFunc(d.Auth.Me))))

	mux.Handle("POST /api/generate-image", bearer(http.HandlerFunc(d.Generation.GenerateImage)))

	mux.HandleFunc("GET /api/user/{id}/credits", d.Accounts.GetCredits)
	mux.Handle("PUT /api/user/{id}/credits", admin(http.HandlerFunc(d.Accounts.SetCredits)))
	mux.HandleFunc("GET /api/user/{id}/images", d.Accounts.ListImages)
	mux.HandleFunc("GET /api/user/{id}/ledger", d.Accounts.ListLedger)

	mux.HandleFunc("GET /api/image/{id}", d.Images.GetImage)
	mux.HandleFunc("GET /api/image/{id}/download", d.Images.Download)

	mux.HandleFunc("GET /api/models", handlers.ListModels)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.Instrument(d.Logger)(mux)
}
