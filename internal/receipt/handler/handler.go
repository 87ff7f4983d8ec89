package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kyc/internal/receipt/models"
	"kyc/internal/scoring"
	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	"kyc/pkg/platform/httputil"
	request "kyc/pkg/platform/middleware/request"
	"kyc/pkg/requestcontext"
)

// Service defines the receipt operations the HTTP layer needs.
type Service interface {
	Submit(ctx context.Context, userID id.UserID, upload models.Upload) (*models.Receipt, error)
	Reprocess(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) (*models.Receipt, error)
	Get(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) (*models.Receipt, error)
	List(ctx context.Context, userID id.UserID, filter models.ListFilter) ([]*models.Receipt, error)
	Delete(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) error
	Stats(ctx context.Context, userID id.UserID) (models.Stats, error)
}

// multipartOverhead covers form boundaries and headers around the file part.
const multipartOverhead = 64 << 10

// Handler serves /receipts for the authenticated user.
type Handler struct {
	service        Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func New(service Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	return &Handler{service: service, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts the receipt routes. Authentication is applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/receipts", func(r chi.Router) {
		r.Post("/upload", h.handleUpload)
		r.Get("/", h.handleList)
		r.Get("/stats/summary", h.handleStats)
		r.Get("/{receiptID}", h.handleGet)
		r.Delete("/{receiptID}", h.handleDelete)
		r.Post("/{receiptID}/process", h.handleProcess)
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	requestID := request.GetRequestID(ctx)
	userID := requestcontext.UserID(ctx)

	upload, err := h.readUpload(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid receipt upload",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.service.Submit(ctx, userID, upload)
	if err != nil {
		h.logError(ctx, "failed to submit receipt", requestID, userID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "receipt uploaded",
		"request_id", requestID,
		"user_id", userID.String(),
		"receipt_id", receipt.ID.String(),
		"status", string(receipt.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, models.ToResponse(receipt))
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (models.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.Upload{}, dErrors.New(dErrors.CodeValidation, "file too large")
		}
		return models.Upload{}, dErrors.New(dErrors.CodeBadRequest, "expected multipart form with a file field")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return models.Upload{}, dErrors.New(dErrors.CodeValidation, "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.Upload{}, dErrors.New(dErrors.CodeBadRequest, "failed to read uploaded file")
	}
	return models.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	userID := requestcontext.UserID(ctx)

	filter, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipts, err := h.service.List(ctx, userID, filter)
	if err != nil {
		h.logError(ctx, "failed to list receipts", requestID, userID, err)
		httputil.WriteError(w, err)
		return
	}

	resp := models.ListResponse{
		Receipts: make([]models.ReceiptResponse, 0, len(receipts)),
		Count:    len(receipts),
		Offset:   filter.Offset,
		Limit:    filter.Limit,
	}
	for _, rec := range receipts {
		resp.Receipts = append(resp.Receipts, models.ToResponse(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func parseListFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	var filter models.ListFilter
	if raw := q.Get("status"); raw != "" {
		status := scoring.ReceiptStatus(raw)
		filter.Status = &status
	}
	var err error
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		return models.ListFilter{}, dErrors.New(dErrors.CodeValidation, "offset must be an integer")
	}
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		return models.ListFilter{}, dErrors.New(dErrors.CodeValidation, "limit must be an integer")
	}
	return filter, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	stats, err := h.service.Stats(ctx, userID)
	if err != nil {
		h.logError(ctx, "failed to load receipt stats", request.GetRequestID(ctx), userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToStatsResponse(stats))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	receiptID, ok := receiptIDParam(w, r)
	if !ok {
		return
	}

	receipt, err := h.service.Get(ctx, userID, receiptID)
	if err != nil {
		h.logError(ctx, "failed to get receipt", request.GetRequestID(ctx), userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(receipt))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	receiptID, ok := receiptIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, userID, receiptID); err != nil {
		h.logError(ctx, "failed to delete receipt", request.GetRequestID(ctx), userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Receipt deleted successfully",
		"success": true,
	})
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	receiptID, ok := receiptIDParam(w, r)
	if !ok {
		return
	}

	receipt, err := h.service.Reprocess(ctx, userID, receiptID)
	if err != nil {
		h.logError(ctx, "failed to process receipt", request.GetRequestID(ctx), userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(receipt))
}

func receiptIDParam(w http.ResponseWriter, r *http.Request) (id.ReceiptID, bool) {
	receiptID, err := id.ParseReceiptID(chi.URLParam(r, "receiptID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid receipt id"))
		return id.ReceiptID{}, false
	}
	return receiptID, true
}

// logError logs client errors at warn and everything else at error.
func (h *Handler) logError(ctx context.Context, msg, requestID string, userID id.UserID, err error) {
	level := slog.LevelError
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestID,
		"user_id", userID.String(),
		"error", err,
	)
}
