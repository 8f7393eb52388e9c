// Package httphandler serves the signed REST API and the gateway-side
// signature check.
package httphandler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/ericfisherdev/signproxy/internal/signature"
)

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the embedded writer.
func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// recoveryMiddleware recovers from panics in HTTP handlers, logs the error,
// and returns a 500 response.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered",
					"panic", v,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// SignatureConfig configures RequireSignature.
type SignatureConfig struct {
	// Secret is the gateway's own copy of the shared key. An empty Secret
	// rejects every request.
	Secret string
	Engine signature.Engine
	// MaxSkew bounds how far a client timestamp may sit from the server clock.
	// Zero disables the check.
	MaxSkew time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// RequireSignature rejects requests whose bearer signature does not verify
// against cfg.Secret. The signed timestamp comes from the X-Timestamp header,
// or from the server clock when the header is absent.
func RequireSignature(cfg SignatureConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sig, ts, hasTS, err := signature.FromHeader(r.Header)
			switch {
			case errors.Is(err, signature.ErrInvalidTimestamp):
				writeError(w, http.StatusBadRequest, "invalid timestamp")
				return
			case err != nil:
				writeError(w, http.StatusUnauthorized, "missing signature")
				return
			}

			serverMs := signature.Now(now())
			if !hasTS {
				ts = serverMs
			}

			if cfg.MaxSkew > 0 && !withinSkew(serverMs, ts, cfg.MaxSkew.Milliseconds()) {
				logger.Warn("signature timestamp outside skew window",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"timestamp", ts,
					"server_ms", serverMs,
				)
				writeError(w, http.StatusUnauthorized, "timestamp outside allowed window")
				return
			}

			if cfg.Secret == "" || !cfg.Engine.Verify(sig, cfg.Secret, ts) {
				logger.Warn("signature rejected",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeError(w, http.StatusUnauthorized, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// withinSkew reports whether ts lies in [serverMs-maxMs, serverMs+maxMs].
// The bounds saturate at the int64 limits instead of wrapping.
func withinSkew(serverMs, ts, maxMs int64) bool {
	lo := int64(math.MinInt64)
	if serverMs >= math.MinInt64+maxMs {
		lo = serverMs - maxMs
	}
	hi := int64(math.MaxInt64)
	if serverMs <= math.MaxInt64-maxMs {
		hi = serverMs + maxMs
	}
	return ts >= lo && ts <= hi
}
