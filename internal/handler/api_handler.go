package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opsinsight/opsinsight-go/internal/model"
	"github.com/opsinsight/opsinsight-go/internal/service"
	"go.uber.org/zap"
)

// APIHandler 运维接口
type APIHandler struct {
	serviceName    string
	sessionService *service.SessionService
	store          service.StatusStore
	logger         *zap.Logger
}

// NewAPIHandler 创建 API 处理器
func NewAPIHandler(serviceName string, sessionService *service.SessionService, store service.StatusStore, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		serviceName:    serviceName,
		sessionService: sessionService,
		store:          store,
		logger:         logger,
	}
}

// Health 健康检查
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "UP",
		"service":      h.serviceName,
		"online_users": h.sessionService.GetOnlineCount(),
	})
}

// DispatchStatus GET /api/dispatch/:id 查询后台派发状态
func (h *APIHandler) DispatchStatus(c *gin.Context) {
	id := c.Param("id")

	status, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, service.ErrStatusNotFound) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "dispatch not found"})
		return
	}
	if err != nil {
		h.logger.Error("查询派发状态失败", zap.String("dispatchId", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "status store unavailable"})
		return
	}

	// 未到终态的记录还会变化
	if !status.State.Terminal() {
		c.Header("Cache-Control", "no-store")
	}
	c.JSON(http.StatusOK, status)
}
