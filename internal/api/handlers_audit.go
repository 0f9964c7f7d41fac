package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/transfa/fundtransfer-service/internal/domain"
	"go.uber.org/zap"
)

// HistoryHandler returns the audit trail of the authenticated account, newest
// first. Callers may only read their own history.
func (h *Handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || accountID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if accountID != requesterID {
		writeError(w, http.StatusForbidden, "You can only view your own transaction history")
		return
	}

	page, ok := parseHistoryPage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit and offset must be non-negative integers")
		return
	}

	records, err := h.service.TransferHistory(r.Context(), accountID, page)
	if err != nil {
		h.logger.Error("audit history failed",
			zap.String("component", "api"),
			zap.String("endpoint", "audit_history"),
			zap.Int64("user_id", accountID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to fetch audit history")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func parseHistoryPage(r *http.Request) (domain.HistoryPage, bool) {
	var page domain.HistoryPage
	query := r.URL.Query()
	for key, target := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return domain.HistoryPage{}, false
		}
		*target = value
	}
	return page, true
}
