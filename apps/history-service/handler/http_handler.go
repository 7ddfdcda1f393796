package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shopchat/apps/history-service/model"
	"shopchat/apps/history-service/service"
	"shopchat/pkg/httpx"
	"shopchat/pkg/logger"
	"shopchat/pkg/middleware"
)

// HTTPHandler HTTP协议处理器
// 归档查询是后台运营接口，全部走管理员鉴权
type HTTPHandler struct {
	svc       *service.Service
	adminAuth *middleware.AdminAuthMiddleware
	log       logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(svc *service.Service, adminAuth *middleware.AdminAuthMiddleware, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		adminAuth: adminAuth,
		log:       log,
	}
}

// RegisterRoutes 注册HTTP路由
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/history", h.adminAuth.GinAuth())
	{
		api.GET("/conversations/:key/messages", h.GetConversationMessages) // 会话归档消息
		api.GET("/messages/:id", h.GetMessage)                             // 单条归档消息
	}
}

// pagedMessages 分页查询响应
type pagedMessages struct {
	Total    int64                    `json:"total"`
	Messages []*model.ArchivedMessage `json:"messages"`
}

// GetConversationMessages 分页查询会话归档消息
func (h *HTTPHandler) GetConversationMessages(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	limit := queryInt64(c, "limit", 50)
	offset := queryInt64(c, "offset", 0)

	messages, total, err := h.svc.GetConversationMessages(ctx, key, limit, offset)
	if err != nil {
		h.log.Error(ctx, "Failed to query archived messages",
			logger.F("conversationKey", key),
			logger.F("error", err.Error()))
		httpx.WriteError(c, http.StatusInternalServerError, "查询归档消息失败")
		return
	}

	if messages == nil {
		messages = []*model.ArchivedMessage{}
	}
	httpx.WriteObject(c, &pagedMessages{
		Total:    total,
		Messages: messages,
	}, nil)
}

// GetMessage 查询单条归档消息
func (h *HTTPHandler) GetMessage(c *gin.Context) {
	ctx := c.Request.Context()

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "无效的消息ID")
		return
	}

	msg, err := h.svc.GetMessage(ctx, messageID)
	if err != nil {
		h.log.Error(ctx, "Failed to query archived message",
			logger.F("messageID", messageID),
			logger.F("error", err.Error()))
		httpx.WriteError(c, http.StatusInternalServerError, "查询归档消息失败")
		return
	}
	if msg == nil {
		httpx.WriteError(c, http.StatusNotFound, "归档消息不存在")
		return
	}
	httpx.WriteObject(c, msg, nil)
}

// queryInt64 解析query整数参数
func queryInt64(c *gin.Context, name string, def int64) int64 {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return val
}
