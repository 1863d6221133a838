package api

import (
	"context"
	"errors"
	"net/http"

	"pulseboard/internal/dto/req"
	"pulseboard/internal/dto/resp"
	"pulseboard/internal/middleware"
	"pulseboard/internal/model"
	"pulseboard/internal/service"
	"pulseboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthProvider interface {
	Login(ctx context.Context, email, password string) (model.Identity, *model.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Me(ctx context.Context, id model.Identity) (*resp.MeResp, error)
}

type AuthHandler struct {
	svc     AuthProvider
	cookies middleware.CookieConfig
}

func NewAuthHandler(svc AuthProvider, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body req.LoginReq
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, pair, err := h.svc.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		case errors.Is(err, service.ErrBackendUnavailable), errors.Is(err, service.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "login temporarily unavailable"})
		default:
			logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}

	middleware.SetSessionCookies(c, h.cookies, pair)
	c.JSON(http.StatusOK, resp.LoginResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ID:           id.ID,
		Email:        id.Email,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	access, refresh := middleware.Credentials(c)
	if access == "" && refresh == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})
		return
	}

	err := h.svc.Logout(c.Request.Context(), access, refresh)
	middleware.ClearSessionCookies(c, h.cookies)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
		case errors.Is(err, service.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		default:
			logger.Error("logout failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		}
		return
	}

	c.JSON(http.StatusOK, resp.LogoutResp{Message: "logged out"})
}

// Me must run behind SessionMiddleware.
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	me, err := h.svc.Me(c.Request.Context(), id)
	if err != nil {
		logger.Error("failed to load user config", zap.String("user_id", id.ID), zap.Error(err))
		if errors.Is(err, service.ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "row store unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load config"})
		return
	}
	c.JSON(http.StatusOK, me)
}
