package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/transfa/fundtransfer-service/internal/app"
	"github.com/transfa/fundtransfer-service/internal/domain"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      domain.User `json:"user"`
}

// LoginHandler exchanges a username and password for an access token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrCredentialsRequired):
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, app.ErrRateLimited):
		h.writeRateLimited(w, err, "login", "Too many login attempts. Please wait and try again.")
		return
	default:
		h.logger.Error("login failed", zap.String("component", "api"), zap.String("endpoint", "login"), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	token, expiresAt, err := h.tokens.Issue(*user)
	if err != nil {
		h.logger.Error("token issue failed", zap.String("component", "api"), zap.String("endpoint", "login"), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, ExpiresAt: expiresAt, User: *user})
}
