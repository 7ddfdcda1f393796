package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shopchat/apps/chat-service/model"
	"shopchat/apps/chat-service/service"
	"shopchat/pkg/httpx"
	"shopchat/pkg/logger"
	"shopchat/pkg/middleware"
)

// HTTPHandler HTTP协议处理器
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
	api := r.Group("/api/v1/chat")
	{
		api.POST("/conversations", h.CreateConversation)       // 顾客发起会话
		api.GET("/conversations/:key/messages", h.GetMessages) // 拉取会话消息
		api.GET("/admins/online", h.GetOnlineAdmins)           // 在线管理员快照
	}

	adminAPI := r.Group("/api/v1/chat/admin", h.adminAuth.GinAuth())
	{
		adminAPI.POST("/conversations/:key/participants", h.JoinConversation) // 管理员加入会话
	}
}

// conversationView 会话对外响应
type conversationView struct {
	Key        string `json:"key"`
	CustomerID int64  `json:"customer_id"`
	Status     string `json:"status"`
}

// messageView 消息对外响应
type messageView struct {
	MessageID  int64  `json:"message_id"`
	SenderID   int64  `json:"sender_id"`
	SenderKind string `json:"sender_kind"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"created_at"`
}

// resolveIdentity 从请求头解析身份，HTTP侧与WebSocket用同一套token
func (h *HTTPHandler) resolveIdentity(c *gin.Context) (*model.Customer, *model.Admin) {
	customerToken := extractToken(c, "X-Customer-Token", "customer_token")
	adminToken := extractToken(c, "X-Admin-Token", "admin_token")
	return h.svc.ResolveIdentities(c.Request.Context(), customerToken, adminToken)
}

// CreateConversation 顾客发起新会话
func (h *HTTPHandler) CreateConversation(c *gin.Context) {
	ctx := c.Request.Context()

	customer, _ := h.resolveIdentity(c)
	if customer == nil {
		httpx.WriteError(c, http.StatusUnauthorized, "缺少有效的顾客token")
		return
	}

	conv, err := h.svc.CreateConversation(ctx, customer)
	if err != nil {
		h.log.Error(ctx, "Failed to create conversation",
			logger.F("customerID", customer.ID),
			logger.F("error", err.Error()))
		httpx.WriteError(c, http.StatusInternalServerError, "创建会话失败")
		return
	}

	h.log.Info(ctx, "Conversation created",
		logger.F("conversationKey", conv.Key),
		logger.F("customerID", customer.ID))
	httpx.WriteObject(c, &conversationView{
		Key:        conv.Key,
		CustomerID: conv.CustomerID,
		Status:     conv.Status,
	}, nil)
}

// GetMessages 拉取会话消息，分页用limit/offset
func (h *HTTPHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	customer, admin := h.resolveIdentity(c)
	if customer == nil && admin == nil {
		httpx.WriteError(c, http.StatusUnauthorized, "缺少有效的会话token")
		return
	}

	limit := queryInt32(c, "limit", 50)
	offset := queryInt32(c, "offset", 0)

	messages, err := h.svc.ConversationMessages(ctx, key, customer, admin, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrConversationNotFound):
			httpx.WriteError(c, http.StatusNotFound, "会话不存在")
		case errors.Is(err, model.ErrForbidden):
			httpx.WriteError(c, http.StatusForbidden, "无权访问该会话")
		default:
			h.log.Error(ctx, "Failed to load conversation messages",
				logger.F("conversationKey", key),
				logger.F("error", err.Error()))
			httpx.WriteError(c, http.StatusInternalServerError, "查询消息失败")
		}
		return
	}

	views := make([]*messageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, &messageView{
			MessageID:  msg.ID,
			SenderID:   msg.SenderID,
			SenderKind: msg.SenderKind,
			Content:    msg.Content,
			CreatedAt:  msg.CreatedAt.Unix(),
		})
	}
	httpx.WriteObject(c, views, nil)
}

// GetOnlineAdmins 在线管理员快照
func (h *HTTPHandler) GetOnlineAdmins(c *gin.Context) {
	httpx.WriteObject(c, h.svc.OnlineAdmins(), nil)
}

// JoinConversation 管理员把自己登记为会话参与者
// adminID由鉴权中间件写入上下文
func (h *HTTPHandler) JoinConversation(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	adminID := c.GetInt64("adminID")
	if adminID <= 0 {
		httpx.WriteError(c, http.StatusUnauthorized, "缺少管理员身份")
		return
	}

	admin, err := h.svc.LookupAdmin(ctx, adminID)
	if err != nil {
		h.log.Error(ctx, "Failed to load admin",
			logger.F("adminID", adminID),
			logger.F("error", err.Error()))
		httpx.WriteError(c, http.StatusInternalServerError, "查询管理员失败")
		return
	}
	if admin == nil {
		httpx.WriteError(c, http.StatusUnauthorized, "管理员不存在")
		return
	}

	conv, err := h.svc.JoinConversation(ctx, key, admin)
	if err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			httpx.WriteError(c, http.StatusNotFound, "会话不存在")
			return
		}
		h.log.Error(ctx, "Failed to join conversation",
			logger.F("conversationKey", key),
			logger.F("adminID", adminID),
			logger.F("error", err.Error()))
		httpx.WriteError(c, http.StatusInternalServerError, "加入会话失败")
		return
	}

	h.log.Info(ctx, "Admin joined conversation",
		logger.F("conversationKey", key),
		logger.F("adminID", adminID))
	httpx.WriteObject(c, &conversationView{
		Key:        conv.Key,
		CustomerID: conv.CustomerID,
		Status:     conv.Status,
	}, nil)
}

// queryInt32 解析query整数参数
func queryInt32(c *gin.Context, name string, def int32) int32 {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || val < 0 {
		return def
	}
	return int32(val)
}
