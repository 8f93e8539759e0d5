package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/folio-inc/folio-sync/pkg/apperrors"
	"github.com/folio-inc/folio-sync/pkg/auth"
	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/services"
)

// RecordHistoryResponse for GET /api/records/{rid}/history
type RecordHistoryResponse struct {
	Entries []*models.OperationLogEntry `json:"entries"`
	Total   int                         `json:"total"`
}

// RecordHistoryHandler exposes the operation log of a single record.
type RecordHistoryHandler struct {
	historyService services.HistoryService
	logger         *zap.Logger
}

// NewRecordHistoryHandler creates a new record history handler.
func NewRecordHistoryHandler(historyService services.HistoryService, logger *zap.Logger) *RecordHistoryHandler {
	return &RecordHistoryHandler{historyService: historyService, logger: logger}
}

// RegisterRoutes registers the history route on the given mux.
func (h *RecordHistoryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/records/{rid}/history", authMiddleware.RequireAuth(scopeMiddleware(h.History)))
}

// History handles GET /api/records/{rid}/history
func (h *RecordHistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	recordID, ok := ParseRecordID(w, r, h.logger)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	entries, err := h.historyService.RecordHistory(r.Context(), actor, recordID, limit)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoPermission) {
			if err := ErrorResponse(w, http.StatusForbidden, "no_permission", "You cannot view this record's history"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to read record history",
			zap.String("user_id", actor.String()),
			zap.String("record_id", recordID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "record_history_failed", "Internal server error"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := RecordHistoryResponse{Entries: entries, Total: len(entries)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
