package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/folio-inc/folio-sync/pkg/apperrors"
	"github.com/folio-inc/folio-sync/pkg/auth"
	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/services"
)

// PullRequestBody for POST /api/sync/pull
type PullRequestBody struct {
	Cursor *time.Time `json:"cursor,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// PushRequestBody for POST /api/sync/push
type PushRequestBody struct {
	Operations []models.PushOperation `json:"operations"`
}

// SyncHandler handles the pull/push synchronization endpoints.
type SyncHandler struct {
	pullService services.PullService
	pushService services.PushService
	logger      *zap.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(pullService services.PullService, pushService services.PushService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		pullService: pullService,
		pushService: pushService,
		logger:      logger,
	}
}

// RegisterRoutes registers the sync handler's routes on the given mux.
func (h *SyncHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/sync/pull", authMiddleware.RequireAuth(scopeMiddleware(h.Pull)))
	mux.HandleFunc("POST /api/sync/push", authMiddleware.RequireAuth(scopeMiddleware(h.Push)))
}

// Pull handles POST /api/sync/pull
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.unauthorized(w)
		return
	}

	var req PullRequestBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, "invalid_request", "Invalid request body")
			return
		}
	}

	result, err := h.pullService.Pull(r.Context(), actor, services.PullRequest{
		Cursor: req.Cursor,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.logger.Error("Pull failed",
			zap.String("user_id", actor.String()),
			zap.Error(err))
		h.internalError(w, "pull_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Push handles POST /api/sync/push
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.unauthorized(w)
		return
	}

	var req PushRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid_request", "Invalid request body")
		return
	}
	if req.Operations == nil {
		h.badRequest(w, "invalid_request", "Request must contain an operations array")
		return
	}

	result, err := h.pushService.Push(r.Context(), actor, req.Operations)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrMalformedBatch):
			h.badRequest(w, "malformed_batch", "Every operation needs a known type and a record with an id")
		case errors.Is(err, apperrors.ErrBatchTooLarge):
			h.badRequest(w, "batch_too_large", "Push batch exceeds the size limit")
		default:
			h.logger.Error("Push failed",
				zap.String("user_id", actor.String()),
				zap.Int("operations", len(req.Operations)),
				zap.Error(err))
			h.internalError(w, "push_failed")
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *SyncHandler) badRequest(w http.ResponseWriter, code, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *SyncHandler) unauthorized(w http.ResponseWriter) {
	if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *SyncHandler) internalError(w http.ResponseWriter, code string) {
	if err := ErrorResponse(w, http.StatusInternalServerError, code, "Internal server error"); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
