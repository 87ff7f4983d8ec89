// Package extractor holds the Extractor implementations: a resilient HTTP
// client for the perception service and a static demo extractor.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disintegration/imaging"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kyc/internal/receipt/models"
	"kyc/internal/receipt/ports"
	"kyc/pkg/platform/sentinel"
)

var tracer = otel.Tracer("kyc/receipt/extractor")

// ErrUnsupportedFormat is returned for files the perception pipeline cannot read.
var ErrUnsupportedFormat = fmt.Errorf("unsupported receipt format: %w", sentinel.ErrUnsupported)

// errRejected marks a 4xx from the perception service; it is not retried and
// does not count against the breaker.
var errRejected = errors.New("extraction rejected")

const maxResponseBytes = 1 << 20

type Config struct {
	URL              string
	Timeout          time.Duration
	MaxRetries       uint64
	InitialInterval  time.Duration
	MaxInterval      time.Duration
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
	MaxEdge          int
}

// HTTPExtractor posts receipt images to the perception endpoint.
type HTTPExtractor struct {
	cfg       Config
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
	validator *responseValidator
	logger    *slog.Logger
}

type Option func(*HTTPExtractor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *HTTPExtractor) { e.logger = logger }
}

func WithHTTPClient(client *http.Client) Option {
	return func(e *HTTPExtractor) { e.client = client }
}

func NewHTTPExtractor(cfg Config, opts ...Option) (*HTTPExtractor, error) {
	if cfg.URL == "" {
		return nil, errors.New("extractor URL is required")
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	validator, err := newResponseValidator()
	if err != nil {
		return nil, err
	}

	e := &HTTPExtractor{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		validator: validator,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "receipt-extractor",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return e, nil
}

func (e *HTTPExtractor) Extract(ctx context.Context, img ports.Image) (models.Extraction, error) {
	ctx, span := tracer.Start(ctx, "extractor.Extract", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int("image.bytes", len(img.Data)))

	payload, contentType, err := e.prepare(img)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return models.Extraction{}, err
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.postWithRetry(ctx, payload, contentType)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return models.Extraction{}, fmt.Errorf("extractor circuit open: %w", sentinel.ErrUnavailable)
		}
		return models.Extraction{}, err
	}

	body := result.([]byte)
	if err := e.validator.Validate(body); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return models.Extraction{}, err
	}
	return decodeExtraction(body)
}

// prepare rejects PDFs and downscales images whose longest edge exceeds MaxEdge.
func (e *HTTPExtractor) prepare(img ports.Image) ([]byte, string, error) {
	format, err := imaging.FormatFromFilename(img.FileName)
	if err != nil || strings.EqualFold(img.ContentType, "application/pdf") {
		return nil, "", ErrUnsupportedFormat
	}
	contentType := "image/jpeg"
	if format == imaging.PNG {
		contentType = "image/png"
	}
	if e.cfg.MaxEdge <= 0 {
		return img.Data, contentType, nil
	}

	src, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode receipt image: %w", err)
	}
	if !exceeds(src.Bounds(), e.cfg.MaxEdge) {
		return img.Data, contentType, nil
	}

	resized := imaging.Fit(src, e.cfg.MaxEdge, e.cfg.MaxEdge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return nil, "", fmt.Errorf("encode receipt image: %w", err)
	}
	return buf.Bytes(), contentType, nil
}

func exceeds(b image.Rectangle, maxEdge int) bool {
	return b.Dx() > maxEdge || b.Dy() > maxEdge
}

func (e *HTTPExtractor) postWithRetry(ctx context.Context, payload []byte, contentType string) ([]byte, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = e.cfg.InitialInterval
	expBackoff.MaxInterval = e.cfg.MaxInterval
	expBackoff.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, e.cfg.MaxRetries), ctx)

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("extractor returned HTTP %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%w: HTTP %d", errRejected, resp.StatusCode))
		}
		body = data
		return nil
	}

	notify := func(err error, wait time.Duration) {
		e.logger.WarnContext(ctx, "extractor request failed, retrying",
			"error", err, "retry_in_ms", wait.Milliseconds())
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return body, nil
}

type extractionResponse struct {
	MerchantName *string      `json:"merchant_name"`
	ReceiptDate  *string      `json:"receipt_date"`
	Address      *string      `json:"address"`
	TotalAmount  *json.Number `json:"total_amount"`
	Currency     *string      `json:"currency"`
	Confidence   struct {
		Overall  *json.Number `json:"overall"`
		Merchant *json.Number `json:"merchant"`
		Date     *json.Number `json:"date"`
		Address  *json.Number `json:"address"`
		Total    *json.Number `json:"total"`
	} `json:"confidence"`
}

func decodeExtraction(body []byte) (models.Extraction, error) {
	var resp extractionResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return models.Extraction{}, fmt.Errorf("decode extraction: %w", err)
	}

	ext := models.Extraction{
		MerchantName: trimmed(resp.MerchantName),
		Address:      trimmed(resp.Address),
		Currency:     models.DefaultCurrency,
	}
	if resp.Currency != nil && *resp.Currency != "" {
		ext.Currency = strings.ToUpper(*resp.Currency)
	}
	if resp.ReceiptDate != nil {
		d, err := time.Parse(time.DateOnly, *resp.ReceiptDate)
		if err != nil {
			return models.Extraction{}, fmt.Errorf("decode receipt date: %w", err)
		}
		ext.ReceiptDate = &d
	}

	var err error
	fields := []struct {
		src *json.Number
		dst *decimal.NullDecimal
	}{
		{resp.TotalAmount, &ext.TotalAmount},
		{resp.Confidence.Overall, &ext.OverallConfidence},
		{resp.Confidence.Merchant, &ext.ConfidenceMerchant},
		{resp.Confidence.Date, &ext.ConfidenceDate},
		{resp.Confidence.Address, &ext.ConfidenceAddress},
		{resp.Confidence.Total, &ext.ConfidenceTotal},
	}
	for _, f := range fields {
		if *f.dst, err = nullDecimal(f.src); err != nil {
			return models.Extraction{}, err
		}
	}
	return ext, nil
}

func nullDecimal(n *json.Number) (decimal.NullDecimal, error) {
	if n == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("decode decimal %q: %w", n.String(), err)
	}
	return decimal.NewNullDecimal(d), nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
