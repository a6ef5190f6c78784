package handler

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/bolsoapp/bolso/internal/adapter/http/dto"
	"github.com/bolsoapp/bolso/internal/infrastructure/auth"
	"github.com/bolsoapp/bolso/internal/infrastructure/metrics"
	"github.com/bolsoapp/bolso/internal/syncserver"
)

// AuthHandler handles login, token refresh and logout.
type AuthHandler struct {
	users      syncserver.UserRepository
	service    *syncserver.Service
	jwtManager *auth.JWTManager
	metrics    *metrics.Metrics
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users syncserver.UserRepository, service *syncserver.Service, jwtManager *auth.JWTManager, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{users: users, service: service, jwtManager: jwtManager, metrics: m}
}

// Login validates credentials and issues a token pair. A device id in the
// request registers the installation for sync status tracking.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.metrics.AuthAttempts.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.metrics.AuthAttempts.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}
	h.metrics.AuthAttempts.WithLabelValues("success").Inc()

	if req.DeviceID != "" {
		if err := h.service.RegisterDevice(r.Context(), user.ID, req.DeviceID, req.DeviceName); err != nil {
			writeError(w, mapDomainError(err), "device registration failed", err.Error())
			return
		}
	}

	pair, err := h.jwtManager.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue tokens", err.Error())
		return
	}
	h.metrics.TokensIssued.Inc()

	writeJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	claims, err := h.jwtManager.Verify(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		h.metrics.TokensRefused.Inc()
		writeError(w, http.StatusUnauthorized, "invalid refresh token", "")
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		h.metrics.TokensRefused.Inc()
		writeError(w, http.StatusUnauthorized, "invalid refresh token", "")
		return
	}

	pair, err := h.jwtManager.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue tokens", err.Error())
		return
	}
	h.metrics.TokensIssued.Inc()

	writeJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout acknowledges the client dropping its tokens. Tokens are stateless,
// so there is nothing to revoke server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
