package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavelanni/mediarec/internal/model"
	"github.com/pavelanni/mediarec/internal/recommend"
	"github.com/pavelanni/mediarec/internal/store"
)

// Recommender runs the on-demand pipeline.
type Recommender interface {
	Run(ctx context.Context, req recommend.Request) (recommend.Result, error)
}

// Store is the persistence surface used by the HTTP layer.
type Store interface {
	ListRecommendations(ctx context.Context, userID string, kind model.RecommendationKind) ([]model.MediaRecommendation, error)
	ListSessionRecommendations(ctx context.Context, sessionID string) ([]model.MediaRecommendation, error)
	GetRecommendation(ctx context.Context, recommendationID string) (*model.MediaRecommendation, error)
	RecommendationCount(ctx context.Context) (int, error)
	LoadFixtures(ctx context.Context, name string, data []byte, force bool) (store.ImportStatus, model.Fixtures, error)
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	recommender Recommender
	pool        *recommend.Pool
	store       Store
	validate    *validator.Validate
	now         func() time.Time
}

// New creates a new Handler. On-demand runs go through pool so they share the
// worker budget with the session consumer.
func New(rec Recommender, pool *recommend.Pool, s Store) *Handler {
	return &Handler{
		recommender: rec,
		pool:        pool,
		store:       s,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/recommendations", func(r chi.Router) {
		r.Post("/user-requested", h.handleUserRequested)
		r.Get("/user-requested/{userID}", h.handleUserRequestedHistory)
		r.Get("/history/{userID}", h.handleHistory)
		r.Get("/genres", h.handleGenres)
		r.Get("/session/{sessionID}", h.handleSessionRecommendations)
		r.Get("/{recommendationID}", h.handleGetRecommendation)
	})
	r.Get("/api/media/health", h.handleHealth)
	r.Post("/api/admin/fixtures", h.handleUploadFixtures)
	r.Handle("/metrics", promhttp.Handler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// errorResponse mirrors the failure shape of the recommendation endpoint.
type errorResponse struct {
	Status               string    `json:"status"`
	Message              string    `json:"message"`
	TotalRecommendations int       `json:"totalRecommendations"`
	GeneratedAt          time.Time `json:"generatedAt"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Status:      "ERROR",
		Message:     msg,
		GeneratedAt: h.now(),
	})
	slog.Debug("request failed", "path", r.URL.Path, "status", status, "message", msg)
}
