package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shopchat/apps/chat-service/model"
	"shopchat/apps/chat-service/service"
	tracecontext "shopchat/pkg/context"
	"shopchat/pkg/logger"
)

// WSHandler WebSocket协议处理器
type WSHandler struct {
	svc      *service.Service
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler 创建WebSocket处理器
func NewWSHandler(svc *service.Service, log logger.Logger) *WSHandler {
	return &WSHandler{
		svc:      svc,
		log:      log,
		upgrader: websocket.Upgrader{},
	}
}

// RegisterRoutes 注册WebSocket路由
func (ws *WSHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/chat")
	{
		api.GET("/ws", ws.HandleConnection) // WebSocket长连接
	}
}

// extractToken 先从header取token，兼容浏览器WebSocket再回退到query参数
func extractToken(c *gin.Context, header, query string) string {
	if token := c.GetHeader(header); token != "" {
		return token
	}
	return c.Query(query)
}

// HandleConnection 处理WebSocket连接
// 身份在升级前解析，两种token都解析不出身份时直接拒绝升级
func (ws *WSHandler) HandleConnection(c *gin.Context) {
	customerToken := extractToken(c, "X-Customer-Token", "customer_token")
	adminToken := extractToken(c, "X-Admin-Token", "admin_token")

	customer, admin := ws.svc.ResolveIdentities(c.Request.Context(), customerToken, adminToken)
	if customer == nil && admin == nil {
		ws.log.Error(c.Request.Context(), "WebSocket connection rejected, no resolvable identity")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少有效的会话token"})
		return
	}

	conn, err := ws.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ws.log.Error(c.Request.Context(), "WebSocket upgrade failed", logger.F("error", err.Error()))
		return
	}

	connID := "conn-" + uuid.NewString()
	ctx := tracecontext.WithConnID(c.Request.Context(), connID)
	if customer != nil {
		ctx = tracecontext.WithCustomerID(ctx, customer.ID)
	}
	if admin != nil {
		ctx = tracecontext.WithAdminID(ctx, admin.ID)
	}

	client := service.NewClient(connID, conn, customer, admin, ws.log)
	go client.WritePump()

	// 连接记录到Redis，供运维侧查询在线连接
	ws.svc.RegisterSession(ctx, client)

	// ping刷新Redis心跳
	conn.SetPingHandler(func(appData string) error {
		ws.svc.HeartbeatSession(ctx, client)
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	defer func() {
		ws.svc.Disconnect(client)
		ws.svc.RemoveSession(ctx, client)
		client.Close()
	}()

	ws.log.Info(ctx, "WebSocket connection established",
		logger.F("connID", connID),
		logger.F("hasCustomer", customer != nil),
		logger.F("hasAdmin", admin != nil))

	ws.readLoop(ctx, conn, client)
}

// readLoop 入站帧主循环
func (ws *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *service.Client) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			ws.log.Info(ctx, "WebSocket connection closed", logger.F("error", err.Error()))
			return
		}

		var action model.ClientAction
		if err := json.Unmarshal(msg, &action); err != nil {
			ws.log.Warn(ctx, "Invalid WebSocket frame", logger.F("error", err.Error()))
			continue
		}

		ws.dispatch(ctx, client, &action)
	}
}

// dispatch 按动作类型分发，未知动作只记日志
func (ws *WSHandler) dispatch(ctx context.Context, client *service.Client, action *model.ClientAction) {
	switch action.Action {
	case model.ActionSubscribe:
		if err := ws.svc.Subscribe(ctx, client, action.ConversationKey); err != nil {
			ws.sendReject(ctx, client, action.ConversationKey, err)
			return
		}
		ws.sendConfirm(ctx, client, action.ConversationKey)
	case model.ActionUnsubscribe:
		ws.svc.Unsubscribe(ctx, client, action.ConversationKey)
	case model.ActionSpeak:
		// 失败静默，不向发送方或其他连接泄露原因
		if err := ws.svc.Speak(ctx, client, action.ConversationKey, action.Content); err != nil {
			ws.log.Warn(ctx, "Speak dropped",
				logger.F("conversationKey", action.ConversationKey),
				logger.F("error", err.Error()))
		}
	case model.ActionTyping:
		if err := ws.svc.Typing(ctx, client, action.ConversationKey); err != nil {
			ws.log.Warn(ctx, "Typing dropped",
				logger.F("conversationKey", action.ConversationKey),
				logger.F("error", err.Error()))
		}
	case model.ActionPresence:
		ws.svc.SubscribePresence(client)
	default:
		ws.log.Warn(ctx, "Unknown action kind", logger.F("action", string(action.Action)))
	}
}

// sendConfirm 发送订阅成功确认
func (ws *WSHandler) sendConfirm(ctx context.Context, client *service.Client, key string) {
	event := model.SubscribeEvent{
		Type:            model.EventConfirm,
		ConversationKey: key,
	}
	ws.sendEvent(ctx, client, event)
}

// sendReject 发送订阅拒绝，原因只分不存在和无权两类
func (ws *WSHandler) sendReject(ctx context.Context, client *service.Client, key string, err error) {
	reason := RejectReason(err)

	event := model.SubscribeEvent{
		Type:            model.EventReject,
		ConversationKey: key,
		Reason:          reason,
	}
	ws.sendEvent(ctx, client, event)
}

// RejectReason 把领域错误映射为对外的拒绝原因
// 内部错误不外泄，一律按不存在处理
func RejectReason(err error) string {
	if errors.Is(err, model.ErrForbidden) {
		return model.RejectReasonForbidden
	}
	return model.RejectReasonNotFound
}

func (ws *WSHandler) sendEvent(ctx context.Context, client *service.Client, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		ws.log.Error(ctx, "Failed to marshal event", logger.F("error", err.Error()))
		return
	}
	client.Enqueue(payload)
}
