// Package media implements content.MediaStore as an HTTP client of the
// external media service. The service receives the uploaded file and
// answers with its permanent URL and, for videos, the duration.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/infrastructure/metrics"
	"github.com/clipdeck/clipdeck/pkg/circuitbreaker"
	"github.com/clipdeck/clipdeck/pkg/logger"
	"github.com/clipdeck/clipdeck/pkg/retry"
	"github.com/clipdeck/clipdeck/pkg/tracing"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the media client.
type ClientConfig struct {
	// BaseURL of the media service, e.g. https://media.internal
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// RequestsPerSecond caps outgoing uploads; 0 disables the limit.
	RequestsPerSecond float64

	// RemoveAfterUpload deletes the local temp file after a successful upload.
	RemoveAfterUpload bool

	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           60 * time.Second,
		RequestsPerSecond: 5,
		RemoveAfterUpload: true,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client uploads files to the media service.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logger.Logger
}

var _ content.MediaStore = (*Client)(nil)

// NewClient creates a media client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	log := config.Logger.With(logger.Component("media_client"))

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
		retrier:    retry.MediaRetrier(),
		breaker: circuitbreaker.MediaBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}, circuitbreaker.WithIsFailure(func(err error) bool {
			// a refused file says nothing about the service's health
			return !retry.IsPermanent(err) && !errors.Is(err, context.Canceled)
		})),
		logger: log,
	}
}

// uploadResponse is the media service reply.
type uploadResponse struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// apiError is returned for non-2xx replies.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("media service: status %d: %s", e.Status, e.Message)
}

// Upload implements content.MediaStore.
func (c *Client) Upload(ctx context.Context, localPath, kind string) (content.MediaAsset, error) {
	ctx, span := tracing.Start(ctx, "media.upload", attribute.String("clipdeck.media.kind", kind))
	defer span.End()

	if _, err := os.Stat(localPath); err != nil {
		metrics.MediaUploads.WithLabelValues(kind, "rejected").Inc()
		return content.MediaAsset{}, shared.WrapError("media", "Upload", shared.ErrInvalidInput, "media file is not readable", err)
	}

	start := time.Now()
	asset, err := retry.DoWithData(ctx, c.retrier, func(ctx context.Context) (content.MediaAsset, error) {
		return circuitbreaker.Do(ctx, c.breaker, func(ctx context.Context) (content.MediaAsset, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return content.MediaAsset{}, retry.Permanent(err)
			}
			return c.uploadOnce(ctx, localPath, kind)
		})
	})
	if err != nil {
		span.RecordError(err)
		metrics.MediaUploads.WithLabelValues(kind, "failed").Inc()
		c.logger.Error("media upload failed",
			logger.String("kind", kind),
			logger.Latency(time.Since(start)),
			logger.Err(err),
		)
		return content.MediaAsset{}, translate(err)
	}

	metrics.MediaUploads.WithLabelValues(kind, "ok").Inc()
	c.logger.Info("media uploaded",
		logger.String("kind", kind),
		logger.String("url", asset.URL),
		logger.Latency(time.Since(start)),
	)

	if c.config.RemoveAfterUpload {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to remove temp file", logger.String("path", localPath), logger.Err(err))
		}
	}
	return asset, nil
}

// uploadOnce streams the file as multipart/form-data. Errors are wrapped
// with retry.Retryable when another attempt can help.
func (c *Client) uploadOnce(ctx context.Context, localPath, kind string) (content.MediaAsset, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return content.MediaAsset{}, retry.Permanent(err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeForm(mw, f, filepath.Base(localPath), kind)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/uploads", pr)
	if err != nil {
		return content.MediaAsset{}, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	tracing.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return content.MediaAsset{}, err
		}
		return content.MediaAsset{}, retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return content.MediaAsset{}, retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return content.MediaAsset{}, retry.Retryable(apiErr)
		}
		return content.MediaAsset{}, retry.Permanent(apiErr)
	}

	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return content.MediaAsset{}, retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
	}
	if out.URL == "" {
		return content.MediaAsset{}, retry.Permanent(errors.New("media service returned no url"))
	}
	return content.MediaAsset{URL: out.URL, Duration: out.Duration}, nil
}

func writeForm(mw *multipart.Writer, f io.Reader, name, kind string) error {
	if err := mw.WriteField("kind", kind); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// translate maps transport failures onto the domain error kinds. A 4xx
// reply means the file itself was refused.
func translate(err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
		return shared.WrapError("media", "Upload", shared.ErrInvalidInput, "media rejected by storage", err)
	}
	return shared.WrapError("media", "Upload", shared.ErrUnavailable, "media storage unavailable", err)
}
