package api

import (
	"context"
	"net/http"

	"pulseboard/internal/dto/req"
	"pulseboard/internal/model"
	"pulseboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WidgetDispatcher interface {
	Dispatch(ctx context.Context, requests []model.RpcRequest) model.WidgetResult
}

type WidgetHandler struct {
	dispatcher WidgetDispatcher
}

func NewWidgetHandler(dispatcher WidgetDispatcher) *WidgetHandler {
	return &WidgetHandler{dispatcher: dispatcher}
}

// Widgets runs a batch of computations. Per-widget failures are reported inside the
// result, so an authenticated well-formed request always gets 200.
func (h *WidgetHandler) Widgets(c *gin.Context) {
	var body req.MultiRpcReq
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.dispatcher.Dispatch(c.Request.Context(), body.Rpcs)
	logger.Debug("widgets dispatched",
		zap.String("module", c.Param("module")),
		zap.Int("rpcs", len(body.Rpcs)))
	c.JSON(http.StatusOK, result)
}
