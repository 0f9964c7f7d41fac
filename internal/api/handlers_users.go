package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/transfa/fundtransfer-service/internal/store"
	"go.uber.org/zap"
)

// ListUsersHandler returns every account holder with their balance.
func (h *Handlers) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.String("component", "api"), zap.String("endpoint", "list_users"), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUserHandler returns one account holder.
func (h *Handlers) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("get user failed", zap.String("component", "api"), zap.String("endpoint", "get_user"), zap.Int64("user_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
