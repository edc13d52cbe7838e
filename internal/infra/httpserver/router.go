package httpserver

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appchat "github.com/bryanwahyu/estate-chat/internal/application/chat"
	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
	"github.com/bryanwahyu/estate-chat/internal/infra/backend"
	"github.com/bryanwahyu/estate-chat/internal/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// Forwarder relays /api calls to the analysis backend.
type Forwarder interface {
	Forward(ctx context.Context, fr backend.ForwardRequest) (*backend.Relay, error)
}

// Options wires the router.
type Options struct {
	Chat           *appchat.Service
	Backend        Forwarder
	MaxUploadBytes int64
	AllowedOrigins []string
	Limiter        *middleware.RateLimiter
	Health         map[string]middleware.HealthChecker
	Logger         *slog.Logger
}

type Router struct {
	chatSvc   *appchat.Service
	backend   Forwarder
	maxUpload int64
	pages     *template.Template
	logger    *slog.Logger
}

func NewRouter(opts Options) (http.Handler, error) {
	if opts.Chat == nil || opts.Backend == nil {
		return nil, errors.New("httpserver: chat service and backend are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Limiter == nil {
		opts.Limiter = middleware.NewRateLimiter(30, 1)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	pages, err := template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := &Router{
		chatSvc:   opts.Chat,
		backend:   opts.Backend,
		maxUpload: opts.MaxUploadBytes,
		pages:     pages,
		logger:    opts.Logger,
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(opts.Logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(chimw.Recoverer)

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	// chat page
	limited := middleware.RateLimit(opts.Limiter)
	mux.Get("/", r.wrap(r.handleIndex))
	mux.Get("/chat/{session}", r.wrap(r.handlePage))
	mux.With(limited).Post("/chat/{session}/messages", r.wrap(r.handleSend))
	mux.Post("/chat/{session}/file/detach", r.wrap(r.handleDetach))
	mux.Get("/chat/{session}/export.xlsx", r.wrap(r.handleExportXLSX))
	mux.Get("/chat/{session}/export.csv", r.wrap(r.handleExportCSV))

	// same-origin proxy to the analysis backend
	mux.Route("/api", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		rt.Use(limited)

		rt.Post("/upload", r.wrap(r.handleUploadProxy))
		rt.Post("/chatbot", r.wrap(r.handleChatProxy))
		rt.Get("/history", r.wrap(r.forwardGet(backend.PathHistory, "Failed to load history", "session_id", "location")))
		rt.Get("/uploads", r.wrap(r.forwardGet(backend.PathUploadsBySession, "Failed to load uploads", "session_id")))
		rt.Get("/uploads/{id}/preview", r.wrap(r.handlePreviewProxy))
		rt.Post("/analyze", r.wrap(r.forwardPost(backend.PathAnalyze, "Failed to analyze location")))
		rt.Get("/analysis/search", r.wrap(r.forwardGet(backend.PathSearch, "Failed to search locations", "location")))
		rt.Get("/analysis/trending", r.wrap(r.forwardGet(backend.PathTrending, "Failed to load trending locations")))
		rt.Post("/analysis/compare", r.wrap(r.forwardPost(backend.PathCompare, "Failed to compare locations")))
		rt.Post("/filter", r.wrap(r.forwardPost(backend.PathApplyFilter, "Failed to filter data")))
		rt.Post("/chart", r.wrap(r.forwardPost(backend.PathChartGenerate, "Failed to generate chart")))
		rt.Get("/filtered/{id}/download.csv", r.wrap(r.forwardDownload(backend.FilteredCSVPath)))
		rt.Get("/filtered/{id}/download.xlsx", r.wrap(r.forwardDownload(backend.FilteredExcelPath)))
	})

	return mux, nil
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var up *domain.UpstreamError
			switch {
			case errors.Is(err, domain.ErrSessionNotFound):
				http.Error(w, "session not found", http.StatusNotFound)
			case appchat.IsValidation(err):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.As(err, &up):
				http.Error(w, "analysis service error", http.StatusBadGateway)
			default:
				r.logger.Error("request failed", "path", req.URL.Path, "err", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}
	}
}

// writeJSON only fails before anything is sent.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(b, '\n'))
	return nil
}
