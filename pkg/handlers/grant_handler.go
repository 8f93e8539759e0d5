package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/folio-inc/folio-sync/pkg/apperrors"
	"github.com/folio-inc/folio-sync/pkg/auth"
	"github.com/folio-inc/folio-sync/pkg/models"
	"github.com/folio-inc/folio-sync/pkg/services"
)

// CreateGrantRequest for POST /api/grants
type CreateGrantRequest struct {
	RecipientEmail string `json:"recipientEmail"`
	Permission     string `json:"permission"`
}

// CreateGrantResponse carries the invitation token back to the owner.
// This is the only place the token is ever serialized.
type CreateGrantResponse struct {
	Grant *models.AccessGrant `json:"grant"`
	Token uuid.UUID           `json:"token"`
}

// AcceptGrantRequest for POST /api/grants/accept
type AcceptGrantRequest struct {
	Token uuid.UUID `json:"token"`
}

// GrantListResponse for GET /api/grants
type GrantListResponse struct {
	Grants []*models.AccessGrant `json:"grants"`
	Total  int                   `json:"total"`
}

// GrantHandler handles the sharing endpoints.
type GrantHandler struct {
	grantService services.GrantService
	logger       *zap.Logger
}

// NewGrantHandler creates a new grant handler.
func NewGrantHandler(grantService services.GrantService, logger *zap.Logger) *GrantHandler {
	return &GrantHandler{grantService: grantService, logger: logger}
}

// RegisterRoutes registers the grant handler's routes on the given mux.
func (h *GrantHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/grants", authMiddleware.RequireAuth(scopeMiddleware(h.Create)))
	mux.HandleFunc("POST /api/grants/accept", authMiddleware.RequireAuth(scopeMiddleware(h.Accept)))
	mux.HandleFunc("DELETE /api/grants/{gid}", authMiddleware.RequireAuth(scopeMiddleware(h.Revoke)))
	mux.HandleFunc("GET /api/grants", authMiddleware.RequireAuth(scopeMiddleware(h.List)))
}

// Create handles POST /api/grants
func (h *GrantHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	actorEmail := auth.GetEmailFromContext(r.Context())

	var req CreateGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	grant, err := h.grantService.Create(r.Context(), actor, actorEmail, req.RecipientEmail, models.Permission(req.Permission))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidPermission):
			h.writeError(w, http.StatusBadRequest, "invalid_permission", err.Error())
		case errors.Is(err, apperrors.ErrInvalidEmail):
			h.writeError(w, http.StatusBadRequest, "invalid_email", err.Error())
		case errors.Is(err, apperrors.ErrSelfGrant):
			h.writeError(w, http.StatusBadRequest, "self_grant", err.Error())
		case errors.Is(err, apperrors.ErrGrantExists):
			h.writeError(w, http.StatusConflict, "grant_exists", err.Error())
		default:
			h.logger.Error("Failed to create grant",
				zap.String("owner_id", actor.String()),
				zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "create_grant_failed", "Internal server error")
		}
		return
	}

	response := CreateGrantResponse{Grant: grant, Token: grant.Token}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Accept handles POST /api/grants/accept
func (h *GrantHandler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	actorEmail := auth.GetEmailFromContext(r.Context())

	var req AcceptGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Request must contain an invitation token")
		return
	}

	grant, err := h.grantService.Accept(r.Context(), actor, actorEmail, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrGrantNotFound):
			h.writeError(w, http.StatusNotFound, "grant_not_found", "No invitation matches this token")
		case errors.Is(err, apperrors.ErrGrantNotPending):
			h.writeError(w, http.StatusConflict, "grant_not_pending", err.Error())
		case errors.Is(err, apperrors.ErrSelfGrant):
			h.writeError(w, http.StatusBadRequest, "self_grant", err.Error())
		case errors.Is(err, apperrors.ErrGrantExists):
			h.writeError(w, http.StatusConflict, "grant_exists", err.Error())
		default:
			h.logger.Error("Failed to accept grant",
				zap.String("recipient_id", actor.String()),
				zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "accept_grant_failed", "Internal server error")
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: grant}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Revoke handles DELETE /api/grants/{gid}
func (h *GrantHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	grantID, ok := ParseGrantID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.grantService.Revoke(r.Context(), actor, grantID); err != nil {
		if errors.Is(err, apperrors.ErrGrantNotFound) {
			h.writeError(w, http.StatusNotFound, "grant_not_found", "Grant not found")
			return
		}
		h.logger.Error("Failed to revoke grant",
			zap.String("actor_id", actor.String()),
			zap.String("grant_id", grantID.String()),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "revoke_grant_failed", "Internal server error")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/grants
func (h *GrantHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	grants, err := h.grantService.List(r.Context(), actor)
	if err != nil {
		h.logger.Error("Failed to list grants",
			zap.String("user_id", actor.String()),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list_grants_failed", "Internal server error")
		return
	}

	response := GrantListResponse{Grants: grants, Total: len(grants)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *GrantHandler) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	if err := ErrorResponse(w, statusCode, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
