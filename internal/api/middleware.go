/**
 * @description
 * This file contains custom middleware for the HTTP router. Middlewares are used
 * to process requests before they reach the final handler, perfect for tasks like
 * authentication, logging, or adding context to a request.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5/middleware: Response wrapping and request ids.
 * - go.uber.org/zap: Structured request logging.
 */

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// AccountIDContextKey is a custom type for the context key to avoid collisions.
type AccountIDContextKey string

const accountIDKey AccountIDContextKey = "accountID"

// AuthMiddleware validates the bearer token and stores the authenticated
// account id in the request context.
func AuthMiddleware(tokens *TokenManager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			// Extract the token from "Bearer <token>"
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
				return
			}

			accountID, _, err := tokens.Parse(strings.TrimSpace(tokenString))
			if err != nil {
				logger.Info("token rejected",
					zap.String("component", "auth"),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccountID retrieves the authenticated account id from the request context.
// Handlers should use this function to get the caller's identity.
func GetAccountID(ctx context.Context) (int64, bool) {
	accountID, ok := ctx.Value(accountIDKey).(int64)
	return accountID, ok
}

// RequestLogger logs one line per request once the response is written.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("component", "http"),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
