package api

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"feedmixer/internal/logger"
	"feedmixer/internal/ratelimit"
)

// accessLog tags the request context with a request id and logs every
// request with its duration and status code.
func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := uuid.NewString()
			ctx := logger.Ctx(r.Context(), slog.String("request_id", reqID))
			r = r.WithContext(ctx)
			w.Header().Set("X-Request-ID", reqID)

			log.DebugContext(ctx, "request received", "method", r.Method, "path", r.URL.Path)
			start := time.Now()

			writer := &respCodeWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(writer, r)

			log.InfoContext(ctx, "request completed",
				"method", r.Method,
				"url", r.URL.String(),
				"duration", time.Since(start),
				"status_code", writer.code,
			)
		})
	}
}

// To trap the response status code for logging later.
type respCodeWriter struct {
	http.ResponseWriter
	code int
}

func (w *respCodeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

type rateLimitBody struct {
	Error          string  `json:"error"`
	Detail         string  `json:"detail"`
	ResetInSeconds float64 `json:"reset_in_seconds"`
}

// rateLimit rejects clients that exceeded the limiter's window. Paths in
// exclude are never limited.
func rateLimit(l *ratelimit.Limiter, exclude []string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(exclude, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := clientKey(r)
			d := l.Allow(key)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(int(math.Round(d.ResetIn.Seconds()))))

			if !d.Allowed {
				reset := math.Round(d.ResetIn.Seconds()*10) / 10
				log.WarnContext(r.Context(), "rate limit exceeded", "client", key, "limit", d.Limit)
				if err := writeJSON(w, http.StatusTooManyRequests, rateLimitBody{
					Error:          "Rate limit exceeded",
					Detail:         fmt.Sprintf("Too many requests. Please try again in %.1f seconds.", reset),
					ResetInSeconds: reset,
				}); err != nil {
					log.ErrorContext(r.Context(), "write rate limit response", "error", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the first X-Forwarded-For hop, else the remote host.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	return host
}
