package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kyc/internal/verification/models"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	"kyc/pkg/platform/httputil"
	request "kyc/pkg/platform/middleware/request"
	"kyc/pkg/requestcontext"
)

// Service defines the verification operations the HTTP layer needs.
type Service interface {
	Recalculate(ctx context.Context, userID id.UserID) (*models.Score, error)
	Score(ctx context.Context, userID id.UserID) (*models.Score, error)
	Breakdown(ctx context.Context, userID id.UserID) (*models.Breakdown, error)
	History(ctx context.Context, userID id.UserID) ([]models.HistoryEntry, error)
	Requirements(ctx context.Context, userID id.UserID) (models.Requirements, error)
}

// Handler serves /verification for the authenticated user.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/verification", func(r chi.Router) {
		r.Get("/score", h.handleScore)
		r.Post("/calculate", h.handleCalculate)
		r.Get("/history", h.handleHistory)
		r.Get("/breakdown", h.handleBreakdown)
		r.Get("/requirements", h.handleRequirements)
	})
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	score, err := h.service.Score(ctx, userID)
	if err != nil {
		h.logError(ctx, "failed to get verification score", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToScoreResponse(score))
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	userID := requestcontext.UserID(ctx)

	score, err := h.service.Recalculate(ctx, userID)
	if err != nil {
		h.logError(ctx, "failed to calculate verification score", userID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification score calculated on request",
		"request_id", request.GetRequestID(ctx),
		"user_id", userID.String(),
		"final_score", score.FinalScore.StringFixed(2),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, models.ToScoreResponse(score))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	entries, err := h.service.History(ctx, userID)
	if err != nil {
		h.logError(ctx, "failed to get score history", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToHistoryResponse(entries))
}

func (h *Handler) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	breakdown, err := h.service.Breakdown(ctx, userID)
	if err != nil {
		h.logError(ctx, "failed to get score breakdown", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToBreakdownResponse(breakdown))
}

func (h *Handler) handleRequirements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	req, err := h.service.Requirements(ctx, userID)
	if err != nil {
		h.logError(ctx, "failed to get verification requirements", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToRequirementsResponse(req))
}

func (h *Handler) logError(ctx context.Context, msg string, userID id.UserID, err error) {
	level := slog.LevelError
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, msg,
		"request_id", request.GetRequestID(ctx),
		"user_id", userID.String(),
		"error", err,
	)
}
