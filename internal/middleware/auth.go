package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pulseboard/internal/model"
	"pulseboard/internal/service"
	"pulseboard/pkg/constraints"
	"pulseboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	AccessCookie  = constraints.AccessCookie
	RefreshCookie = constraints.RefreshCookie

	RefreshHeader = constraints.RefreshHeader

	identityKey = "identity"
)

// CookieConfig controls the attributes of the two session cookies.
type CookieConfig struct {
	Domain string
	Secure bool
}

// SetSessionCookies hands a token pair to the client. Each cookie lives as long as
// its Token Store entry.
func SetSessionCookies(c *gin.Context, cfg CookieConfig, pair *model.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookie, pair.AccessToken, int(pair.AccessTTL.Seconds()), "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(RefreshCookie, pair.RefreshToken, int(pair.RefreshTTL.Seconds()), "/", cfg.Domain, cfg.Secure, true)
}

func ClearSessionCookies(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookie, "", -1, "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, "/", cfg.Domain, cfg.Secure, true)
}

// Credentials reads the token pair from cookies, falling back to
// Authorization: Bearer for the access token and X-Refresh-Token for the refresh token.
func Credentials(c *gin.Context) (access, refresh string) {
	access, _ = c.Cookie(AccessCookie)
	refresh, _ = c.Cookie(RefreshCookie)

	if access == "" {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			access = strings.TrimSpace(parts[1])
		}
	}
	if refresh == "" {
		refresh = c.GetHeader(RefreshHeader)
	}
	return access, refresh
}

// Verifier resolves the caller's identity from a token pair.
type Verifier interface {
	Verify(ctx context.Context, accessToken, refreshToken string) (*service.Verification, error)
}

// SessionMiddleware authenticates the request and injects the identity into both the
// gin context and the request context. Renewed credentials are written back as cookies.
func SessionMiddleware(verifier Verifier, cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		access, refresh := Credentials(c)

		v, err := verifier.Verify(c.Request.Context(), access, refresh)
		if err != nil {
			var authErr *service.AuthError
			switch {
			case errors.As(err, &authErr):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": authErr.Reason})
			case errors.Is(err, service.ErrStoreUnavailable):
				logger.Error("session store unavailable", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			default:
				logger.Error("session verification failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		if v.Renewed != nil {
			SetSessionCookies(c, cookies, v.Renewed)
		}

		c.Set(identityKey, v.Identity)
		c.Request = c.Request.WithContext(service.WithIdentity(c.Request.Context(), v.Identity))
		c.Next()
	}
}

// IdentityFrom returns the identity injected by SessionMiddleware.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}
