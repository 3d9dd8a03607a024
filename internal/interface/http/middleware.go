package http

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/infrastructure/metrics"
	"github.com/clipdeck/clipdeck/pkg/logger"
	"github.com/clipdeck/clipdeck/pkg/tracing"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

const callerKey = "caller_id"

var (
	errMissingToken = shared.NewDomainError("http", "Authenticate", shared.ErrUnauthorized, "missing bearer token")
	errInvalidToken = shared.NewDomainError("http", "Authenticate", shared.ErrUnauthorized, "invalid or expired token")
)

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	// Secret is the HS256 key shared with the identity service.
	Secret string

	// Issuer is checked when non-empty.
	Issuer string

	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration
}

// Authenticator verifies identity tokens and puts the caller id (the sub
// claim) into the echo context. The caller id is trusted from there on.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Authenticator{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}
}

// Verify returns the caller id carried by a raw token.
func (a *Authenticator) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", errInvalidToken
	}
	if shared.ValidateID("http", "sub", claims.Subject) != nil {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Optional accepts anonymous requests. A token that is present must be
// valid.
func (a *Authenticator) Optional() echo.MiddlewareFunc {
	return a.middleware(false)
}

// Required rejects requests without a valid token.
func (a *Authenticator) Required() echo.MiddlewareFunc {
	return a.middleware(true)
}

func (a *Authenticator) middleware(required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request())
			if raw == "" {
				if required {
					return errMissingToken
				}
				return next(c)
			}
			callerID, err := a.Verify(raw)
			if err != nil {
				return err
			}
			c.Set(callerKey, callerID)
			ctx := logger.WithContext(c.Request().Context(),
				logger.FromContext(c.Request().Context()).With(logger.ActorID(callerID)))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// callerID returns the authenticated caller or "".
func callerID(c echo.Context) string {
	id, _ := c.Get(callerKey).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST ID & LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// requestIDMiddleware assigns X-Request-ID and a request-scoped logger.
func requestIDMiddleware(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := logger.WithContext(c.Request().Context(), log.WithRequestID(id))
			c.SetRequest(c.Request().WithContext(ctx))
		},
	})
}

// loggingMiddleware logs every request except probes.
func loggingMiddleware(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/ready" || p == "/metrics"
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("path", v.URI),
				logger.Int("status", v.Status),
				logger.Int64("duration_ms", v.Latency.Milliseconds()),
				logger.String("ip", v.RemoteIP),
				logger.String("user_agent", v.UserAgent),
				logger.String(logger.RequestIDKey, v.RequestID),
			}
			if id := callerID(c); id != "" {
				fields = append(fields, logger.ActorID(id))
			}
			if v.Error != nil {
				log.Warn("http request failed", append(fields, logger.Err(v.Error))...)
				return nil
			}
			log.Info("http request", fields...)
			return nil
		},
	})
}

// recoveryMiddleware turns panics into 500 responses.
func recoveryMiddleware(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error("panic recovered",
				logger.Err(err),
				logger.String("stack", string(stack)),
				logger.String("path", c.Request().URL.Path),
			)
			return echo.NewHTTPError(http.StatusInternalServerError)
		},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS & TRACING
// ══════════════════════════════════════════════════════════════════════════════

// metricsMiddleware records request counts and latency by route template.
func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				status = errorBody(err).StatusCode
			}
			method := c.Request().Method
			metrics.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			metrics.HTTPDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// tracingMiddleware continues the caller's trace and opens a server span.
func tracingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := tracing.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := tracing.Start(ctx, "HTTP "+req.Method+" "+c.Path(),
				attribute.String("http.method", req.Method),
				attribute.String("http.route", c.Path()),
			)
			defer span.End()

			c.SetRequest(req.WithContext(ctx))
			err := next(c)
			if err != nil {
				body := errorBody(err)
				span.SetAttributes(attribute.Int("http.status_code", body.StatusCode))
				if body.StatusCode >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, body.Kind)
				}
				return err
			}
			span.SetAttributes(attribute.Int("http.status_code", c.Response().Status))
			return nil
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

var errRateLimited = echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later")

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration

	stop chan struct{}
	once sync.Once
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	rl := &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     3 * time.Minute,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *ipRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()
	return v.limiter.Allow()
}

func (rl *ipRateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if now.Sub(v.lastSeen) > rl.idle {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (rl *ipRateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *ipRateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				metrics.RateLimited.Inc()
				c.Response().Header().Set("Retry-After", "1")
				return errRateLimited
			}
			return next(c)
		}
	}
}
