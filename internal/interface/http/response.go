package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// Envelope wraps every successful response.
type Envelope struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

// ErrorBody is the body of every failed response.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// Kind names exposed to clients.
const (
	kindInvalidInput     = "invalid_input"
	kindNotFound         = "not_found"
	kindForbidden        = "forbidden"
	kindInvalidOperation = "invalid_operation"
	kindUnavailable      = "unavailable"
	kindUnauthorized     = "unauthorized"
	kindRateLimited      = "rate_limited"
	kindInternal         = "internal_error"
)

const unavailableMessage = "Service temporarily unavailable, please retry"

// statusOf maps a domain error kind to its HTTP status and client kind.
func statusOf(kind error) (int, string) {
	switch kind {
	case shared.ErrInvalidInput:
		return http.StatusBadRequest, kindInvalidInput
	case shared.ErrNotFound:
		return http.StatusNotFound, kindNotFound
	case shared.ErrForbidden:
		return http.StatusForbidden, kindForbidden
	case shared.ErrInvalidOperation:
		return http.StatusUnprocessableEntity, kindInvalidOperation
	case shared.ErrUnauthorized:
		return http.StatusUnauthorized, kindUnauthorized
	default:
		return http.StatusServiceUnavailable, kindUnavailable
	}
}

// kindOfStatus names an echo status error.
func kindOfStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return kindInvalidInput
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return kindNotFound
	case http.StatusUnauthorized:
		return kindUnauthorized
	case http.StatusForbidden:
		return kindForbidden
	case http.StatusTooManyRequests:
		return kindRateLimited
	case http.StatusServiceUnavailable:
		return kindUnavailable
	default:
		return kindInternal
	}
}

// errorBody converts any handler error into the client-facing body.
// Internal details of unavailable and unknown errors are never exposed.
func errorBody(err error) ErrorBody {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok || he.Code >= http.StatusInternalServerError {
			msg = http.StatusText(he.Code)
		}
		return ErrorBody{StatusCode: he.Code, Kind: kindOfStatus(he.Code), Message: msg}
	}

	status, kind := statusOf(shared.KindOf(err))
	body := ErrorBody{StatusCode: status, Kind: kind, Message: unavailableMessage}
	if status == http.StatusServiceUnavailable {
		return body
	}

	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		body.Message = de.Message
	} else {
		body.Message = http.StatusText(status)
	}
	return body
}

// errorHandler replaces echo's default error handler.
func errorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := errorBody(err)
		if body.StatusCode >= http.StatusInternalServerError {
			log.Error("request failed",
				logger.Err(err),
				logger.Int("status", body.StatusCode),
				logger.String("path", c.Path()),
				logger.String(logger.RequestIDKey, c.Response().Header().Get(echo.HeaderXRequestID)),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(body.StatusCode)
			return
		}
		_ = c.JSON(body.StatusCode, body)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// requestValidator plugs validator/v10 into echo's c.Validate.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &requestValidator{v: v}
}

// Validate implements echo.Validator. Field errors become InvalidInput.
func (rv *requestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return shared.WrapError("http", "Validate", shared.ErrInvalidInput,
			"field "+fe.Field()+" failed on "+fe.Tag(), err)
	}
	return shared.WrapError("http", "Validate", shared.ErrInvalidInput, "invalid request", err)
}

// bindAndValidate decodes the body into req and validates it.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return shared.WrapError("http", "Bind", shared.ErrInvalidInput, "invalid request body", err)
	}
	return c.Validate(req)
}
