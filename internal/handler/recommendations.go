package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	appI18n "github.com/pavelanni/mediarec/internal/i18n"
	"github.com/pavelanni/mediarec/internal/model"
	"github.com/pavelanni/mediarec/internal/recommend"
)

const maxRequestBody = 64 << 10

type userRequestedBody struct {
	UserID model.ID `json:"userId" validate:"required"`
	Genres []string `json:"selectedGenres" validate:"min=1,max=5,dive,required"`
}

type recommendationResponse struct {
	Status               string                      `json:"status"`
	Message              string                      `json:"message"`
	TotalRecommendations int                         `json:"totalRecommendations"`
	SelectedGenres       []string                    `json:"selectedGenres"`
	GeneratedAt          time.Time                   `json:"generatedAt"`
	Recommendations      []model.MediaRecommendation `json:"recommendations"`
}

type historyResponse struct {
	UserID          string                      `json:"userId"`
	TotalCount      int                         `json:"totalCount"`
	Recommendations []model.MediaRecommendation `json:"recommendations"`
}

type genresResponse struct {
	Genres     []model.GenreInfo `json:"genres"`
	TotalCount int               `json:"totalCount"`
}

type sessionRecommendationsResponse struct {
	SessionID       string                      `json:"sessionId"`
	TotalCount      int                         `json:"totalCount"`
	Recommendations []model.MediaRecommendation `json:"recommendations"`
}

type healthResponse struct {
	Status               string    `json:"status"`
	Service              string    `json:"service"`
	Message              string    `json:"message"`
	TotalRecommendations int       `json:"totalRecommendations"`
	Timestamp            time.Time `json:"timestamp"`
}

func (h *Handler) handleUserRequested(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body userRequestedBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, appI18n.T(ctx, "InvalidRequestBody"))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, validationMessage(r, err))
		return
	}

	req := recommend.Request{UserID: body.UserID.String()}
	for _, g := range body.Genres {
		genre, ok := model.ParseGenre(g)
		if !ok {
			h.writeError(w, r, http.StatusBadRequest, appI18n.Td(ctx, "UnknownGenre", map[string]any{"Genre": g}))
			return
		}
		req.Genres = append(req.Genres, genre)
	}

	var res recommend.Result
	err := h.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = h.recommender.Run(ctx, req)
		return err
	})
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidTrigger) {
			h.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("on-demand recommendation failed", "user_id", req.UserID, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, appI18n.T(ctx, "RecommendationFailed"))
		return
	}

	genres := make([]string, len(req.Genres))
	for i, g := range req.Genres {
		genres[i] = string(g)
	}
	resp := recommendationResponse{
		Status:               "SUCCESS",
		TotalRecommendations: len(res.Records),
		SelectedGenres:       genres,
		GeneratedAt:          h.now(),
		Recommendations:      res.Records,
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []model.MediaRecommendation{}
	}
	if len(res.Records) == 0 {
		resp.Message = appI18n.T(ctx, "NoRecommendationsGenerated")
	} else {
		resp.Message = appI18n.Tp(ctx, "RecommendationsGenerated", len(res.Records))
	}
	writeJSON(w, http.StatusOK, resp)
}

func validationMessage(r *http.Request, err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "UserID" {
		return appI18n.T(r.Context(), "UserIDRequired")
	}
	return appI18n.Td(r.Context(), "GenreCountInvalid", map[string]any{"Min": model.MinGenres, "Max": model.MaxGenres})
}

func (h *Handler) handleUserRequestedHistory(w http.ResponseWriter, r *http.Request) {
	h.writeHistory(w, r, model.KindUserRequested)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	h.writeHistory(w, r, "")
}

func (h *Handler) writeHistory(w http.ResponseWriter, r *http.Request, kind model.RecommendationKind) {
	userID := chi.URLParam(r, "userID")
	recs, err := h.store.ListRecommendations(r.Context(), userID, kind)
	if err != nil {
		slog.Error("failed to load history", "user_id", userID, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, appI18n.T(r.Context(), "HistoryLoadFailed"))
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{UserID: userID, TotalCount: len(recs), Recommendations: recs})
}

func (h *Handler) handleSessionRecommendations(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	recs, err := h.store.ListSessionRecommendations(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to load session recommendations", "session_id", sessionID, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, appI18n.T(r.Context(), "HistoryLoadFailed"))
		return
	}
	if recs == nil {
		recs = []model.MediaRecommendation{}
	}
	writeJSON(w, http.StatusOK, sessionRecommendationsResponse{SessionID: sessionID, TotalCount: len(recs), Recommendations: recs})
}

func (h *Handler) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recommendationID")
	rec, err := h.store.GetRecommendation(r.Context(), id)
	if err != nil {
		slog.Error("failed to load recommendation", "recommendation_id", id, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, appI18n.T(r.Context(), "HistoryLoadFailed"))
		return
	}
	if rec == nil {
		h.writeError(w, r, http.StatusNotFound, appI18n.Td(r.Context(), "RecommendationNotFound", map[string]any{"ID": id}))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleGenres(w http.ResponseWriter, _ *http.Request) {
	genres := model.Genres()
	writeJSON(w, http.StatusOK, genresResponse{Genres: genres, TotalCount: len(genres)})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "UP",
		Service:   "media-recommendation",
		Message:   appI18n.T(r.Context(), "ServiceHealthy"),
		Timestamp: h.now(),
	}
	status := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		resp.Status = "DOWN"
		resp.Message = appI18n.T(r.Context(), "ServiceUnhealthy")
		status = http.StatusServiceUnavailable
	} else if count, err := h.store.RecommendationCount(r.Context()); err != nil {
		slog.Warn("count recommendations", "error", err)
	} else {
		resp.TotalRecommendations = count
	}
	writeJSON(w, status, resp)
}
