package http

import (
	"bytes"
	"context"
	"crypto/rsa"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/idempotency"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/robertarktes/hotel-reservations/internal/rateLimit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const (
	actorRate = 60
	ipRate    = 300
	ratePer   = time.Minute
)

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			entry := logger.WithField("request_id", reqID)
			ctx := observability.ContextWithLogger(r.Context(), entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MetricsMiddleware counts requests by route pattern so path ids do not
// explode the label set.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(status), r.Method).Inc()
	})
}

type actorKey struct{}

// ActorFrom returns the authenticated caller. It is the zero Actor outside
// JWTMiddleware.
func ActorFrom(ctx context.Context) domain.Actor {
	a, _ := ctx.Value(actorKey{}).(domain.Actor)
	return a
}

func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTMiddleware accepts RS256 bearer tokens whose subject is the caller id
// and whose role claim is one of the known roles.
func JWTMiddleware(key *rsa.PublicKey, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := authenticate(r, key)
			if err != nil {
				observability.LoggerFromContext(r.Context(), logger).WithError(err).Debug("unauthenticated request")
				writeJSON(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func authenticate(r *http.Request, key *rsa.PublicKey) (domain.Actor, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		return domain.Actor{}, errors.New("missing bearer token")
	}
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.Newf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return domain.Actor{}, errors.Wrap(err, "parse token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return domain.Actor{}, errors.Wrap(err, "subject")
	}
	role := domain.Role(c.Role)
	switch role {
	case domain.RoleGuest, domain.RoleStaff, domain.RoleManager, domain.RoleAdmin:
	default:
		return domain.Actor{}, errors.Newf("unknown role %q", c.Role)
	}
	return domain.Actor{ID: id, Role: role}, nil
}

type limit struct {
	key  string
	rate int
}

// RateLimitMiddleware limits authenticated callers by id and everyone by IP.
// The limiter fails open when its counter is unreachable.
func RateLimitMiddleware(rl *rateLimit.RateLimiter, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			limits := []limit{{"ip:" + clientIP(r), ipRate}}
			if actor := ActorFrom(ctx); actor.ID != uuid.Nil {
				limits = append(limits, limit{"actor:" + actor.ID.String(), actorRate})
			}
			for _, k := range limits {
				ok, err := rl.Allow(ctx, k.key, k.rate, ratePer)
				if err != nil {
					observability.LoggerFromContext(ctx, logger).WithError(err).Warn("rate limiter unavailable")
				}
				if !ok {
					writeJSON(w, http.StatusTooManyRequests, envelope{Message: "rate limit exceeded"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rec *recorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *recorder) Write(p []byte) (int, error) {
	rec.body.Write(p)
	return rec.ResponseWriter.Write(p)
}

// IdempotencyMiddleware replays the first successful response for a caller's
// Idempotency-Key. The key is required.
func IdempotencyMiddleware(idemp *idempotency.Idempotency, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				writeError(w, r, logger, domain.NewValidation("missing Idempotency-Key"))
				return
			}
			if len(key) < idempotency.MinKeyLength {
				writeError(w, r, logger, domain.NewValidation("invalid Idempotency-Key",
					"Idempotency-Key must be at least "+strconv.Itoa(idempotency.MinKeyLength)+" characters"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, r, logger, domain.NewValidation("invalid request body", "unreadable body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scoped := idempotency.Scope(ActorFrom(r.Context()).ID.String(), key)
			stored, err := idemp.Begin(r.Context(), scoped, body)
			if err != nil {
				writeError(w, r, logger, err)
				return
			}
			if stored != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				w.Write(stored.Result)
				return
			}

			log := observability.LoggerFromContext(r.Context(), logger)
			ctx := context.WithoutCancel(r.Context())
			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			finished := false
			defer func() {
				if finished {
					return
				}
				if err := idemp.Abandon(ctx, scoped); err != nil {
					log.WithError(err).Warn("failed to release idempotency key")
				}
			}()
			next.ServeHTTP(rec, r)
			if rec.status >= 300 {
				return
			}
			finished = true
			resp := idempotency.Response{Status: rec.status, Result: rec.body.Bytes()}
			if err := idemp.Finish(ctx, scoped, body, resp); err != nil {
				log.WithError(err).Warn("failed to store idempotent response")
			}
		})
	}
}
