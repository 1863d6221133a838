package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pulseboard/internal/dto/req"
	"pulseboard/internal/dto/resp"
	"pulseboard/internal/model"
	"pulseboard/internal/service"
	"pulseboard/pkg/constraints"
	"pulseboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const WebhookSecretHeader = constraints.WebhookSecretHeader

type CacheInvalidator interface {
	Invalidate(ctx context.Context, table, source string) (string, bool, error)
	HandleEvent(ctx context.Context, ev model.ChangeEvent, source string) (bool, error)
}

type CacheHandler struct {
	invalidator CacheInvalidator
	secret      string
}

func NewCacheHandler(invalidator CacheInvalidator, secret string) *CacheHandler {
	return &CacheHandler{invalidator: invalidator, secret: secret}
}

// RequireSecret rejects calls without the shared webhook secret. It is a no-op when
// no secret is configured.
func (h *CacheHandler) RequireSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
		c.Next()
	}
}

func (h *CacheHandler) Invalidate(c *gin.Context) {
	var body req.InvalidateReq
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, existed, err := h.invalidator.Invalidate(c.Request.Context(), body.Table, service.SourceWebhook)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.InvalidateResp{DeletedKey: key, Existed: existed})
}

// pushEnvelope is the push-subscription wrapper; data holds the event JSON.
type pushEnvelope struct {
	Message *struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

// Events accepts a change event either bare or wrapped in a push envelope.
func (h *CacheHandler) Events(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var env pushEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != nil {
		raw = env.Message.Data
	}
	var ev model.ChangeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed change event"})
		return
	}

	done, err := h.invalidator.HandleEvent(c.Request.Context(), ev, service.SourcePush)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.EventResp{Table: ev.Table, Invalidated: done})
}

func (h *CacheHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStoreUnavailable):
		logger.Error("cache invalidation failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
	default:
		logger.Error("cache invalidation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalidation failed"})
	}
}
