package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relife-project/technical-service/internal/events"
	"github.com/relife-project/technical-service/internal/storage"
	"github.com/relife-project/technical-service/internal/store"
)

// Deps are the collaborators the API needs. Storage, Tables and Events may
// be nil when the corresponding backend is not configured.
type Deps struct {
	Auth               Authenticator
	Storage            storage.Client
	Tables             store.TableReader
	Events             events.Publisher
	AdminRole          string
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	Logger             *slog.Logger

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	if d.TrustProxyHeaders {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(RequestLogger(d.Logger))
	r.Use(RateLimitMiddleware(d.RateLimitPerMinute))
	if d.RequestTimeout > 0 {
		r.Use(chiMiddleware.Timeout(d.RequestTimeout))
	}

	mcda := NewMCDAHandler(d.Events, d.Logger)
	technical := NewTechnicalHandler(d.Events, d.Logger)
	account := NewAccountHandler(d.AdminRole)
	files := NewStorageHandler(d.Storage, d.Events, d.Logger)
	tables := NewTableHandler(d.Tables, d.Logger)

	r.Get("/health", Health)

	r.Group(func(r chi.Router) {
		r.Use(OptionalAuth(d.Auth, d.Logger))
		r.Post("/mcda/topsis", mcda.Topsis)
		r.Get("/mcda/weights", mcda.Weights)
		r.Post("/technical/{pillar}", technical.Score)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(d.Auth, true, d.Logger))
		r.Get("/whoami", account.WhoAmI)
		r.Get("/user-profile", account.Profile)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(d.Auth, false, d.Logger))
		r.Post("/storage", files.Upload)
		r.Get("/storage", files.List)
		r.Get("/table/{table_name}", tables.Read)
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
