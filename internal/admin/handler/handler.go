package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	accountmodels "kyc/internal/account/models"
	"kyc/internal/admin/models"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	"kyc/pkg/platform/httputil"
	request "kyc/pkg/platform/middleware/request"
	"kyc/pkg/requestcontext"
)

// Service defines the admin operations the HTTP layer needs.
type Service interface {
	Statistics(ctx context.Context) (models.Statistics, error)
	ListUsers(ctx context.Context, filter accountmodels.ListFilter) ([]*accountmodels.Account, error)
	ManualVerify(ctx context.Context, userID id.UserID) (*accountmodels.Account, error)
	ExportScores(ctx context.Context) ([]byte, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves /admin. The admin token check is applied by the caller.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/statistics", h.handleStatistics)
		r.Get("/users", h.handleListUsers)
		r.Patch("/users/{userID}/verify", h.handleManualVerify)
		r.Get("/scores/export", h.handleExportScores)
	})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Statistics(ctx)
	if err != nil {
		h.logError(ctx, "failed to load platform statistics", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToStatisticsResponse(stats))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	users, err := h.service.ListUsers(ctx, filter)
	if err != nil {
		h.logError(ctx, "failed to list users", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToUsersListResponse(users))
}

func parseListFilter(r *http.Request) (accountmodels.ListFilter, error) {
	q := r.URL.Query()
	var filter accountmodels.ListFilter
	if raw := q.Get("kyc_status"); raw != "" {
		status, err := id.ParseKYCStatus(raw)
		if err != nil {
			return accountmodels.ListFilter{}, err
		}
		filter.Status = &status
	}
	var err error
	if filter.Offset, err = intParam(q.Get("skip")); err != nil {
		return accountmodels.ListFilter{}, dErrors.New(dErrors.CodeValidation, "skip must be an integer")
	}
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		return accountmodels.ListFilter{}, dErrors.New(dErrors.CodeValidation, "limit must be an integer")
	}
	return filter, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) handleManualVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	account, err := h.service.ManualVerify(ctx, userID)
	if err != nil {
		h.logError(ctx, "failed to verify user", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "user verified by admin",
		"request_id", request.GetRequestID(ctx),
		"user_id", userID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, models.ToUserResponse(account))
}

func (h *Handler) handleExportScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := h.service.ExportScores(ctx)
	if err != nil {
		h.logError(ctx, "failed to export scores", err)
		httputil.WriteError(w, err)
		return
	}

	name := fmt.Sprintf("kyc-scores-%s.xlsx", requestcontext.Now(ctx).UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.WarnContext(ctx, "failed to write score export",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	}
}

// logError logs client errors at warn and everything else at error.
func (h *Handler) logError(ctx context.Context, msg string, err error) {
	level := slog.LevelError
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err,
	)
}
