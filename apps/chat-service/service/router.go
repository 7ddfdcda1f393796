package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"shopchat/apps/chat-service/dao"
	"shopchat/apps/chat-service/model"
	"shopchat/pkg/logger"
	"shopchat/pkg/snowflake"
)

// ArchivePublisher 消息归档事件发布接口，生产实现是Kafka生产者
type ArchivePublisher interface {
	SendMessage(topic string, key, value []byte) error
}

// subState 一条(连接,会话)订阅的记录
// adminPresence标记该订阅当初是否以管理员身份计入了在线状态，退订时按原样归还
type subState struct {
	adminPresence bool
}

// ConversationRouter 会话主题路由
// 管理(连接,会话)订阅生命周期，并把入站动作分发到对应会话上下文
type ConversationRouter struct {
	convDAO  dao.ConversationDAO
	guard    *AuthGuard
	hub      *Hub
	presence *PresenceTracker
	renderer MessageRenderer
	archiver ArchivePublisher
	ids      *snowflake.Snowflake
	log      logger.Logger

	mu   sync.Mutex
	subs map[*Client]map[string]*subState

	// 每个会话一把发布锁，持久化与广播在锁内完成，
	// 保证广播顺序与落库顺序一致
	lockMu    sync.Mutex
	convLocks map[string]*sync.Mutex
}

// NewConversationRouter 创建会话主题路由
func NewConversationRouter(convDAO dao.ConversationDAO, guard *AuthGuard, hub *Hub, presence *PresenceTracker, renderer MessageRenderer, archiver ArchivePublisher, ids *snowflake.Snowflake, log logger.Logger) *ConversationRouter {
	return &ConversationRouter{
		convDAO:   convDAO,
		guard:     guard,
		hub:       hub,
		presence:  presence,
		renderer:  renderer,
		archiver:  archiver,
		ids:       ids,
		log:       log,
		subs:      make(map[*Client]map[string]*subState),
		convLocks: make(map[string]*sync.Mutex),
	}
}

// convLock 获取会话发布锁，按需创建
func (r *ConversationRouter) convLock(key string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()

	lock, ok := r.convLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.convLocks[key] = lock
	}
	return lock
}

// Subscribe 订阅会话主题
// 会话不存在返回ErrConversationNotFound，无权访问返回ErrForbidden，
// 两种情况都只拒绝本次订阅，不影响连接本身
func (r *ConversationRouter) Subscribe(ctx context.Context, c *Client, key string) error {
	conv, err := r.convDAO.GetConversationByKey(ctx, key)
	if err != nil {
		return err
	}

	senderID, senderKind, ok := r.guard.Authorize(ctx, conv, c.Customer(), c.Admin())
	if !ok {
		return model.ErrForbidden
	}

	asAdmin := senderKind == model.SenderKindAdmin

	r.mu.Lock()
	clientSubs, exists := r.subs[c]
	if !exists {
		clientSubs = make(map[string]*subState)
		r.subs[c] = clientSubs
	}
	if _, already := clientSubs[key]; already {
		// 重复订阅视为成功，不重复计数
		r.mu.Unlock()
		return nil
	}
	clientSubs[key] = &subState{adminPresence: asAdmin}
	r.mu.Unlock()

	r.hub.Subscribe(ConversationTopic(key), c)
	if asAdmin {
		r.presence.MarkOnline(c.Admin())
	}

	r.log.Info(ctx, "Client subscribed to conversation",
		logger.F("clientID", c.ID),
		logger.F("conversationKey", key),
		logger.F("senderID", senderID),
		logger.F("senderKind", senderKind))
	return nil
}

// Unsubscribe 退订会话主题，未订阅时静默返回
func (r *ConversationRouter) Unsubscribe(ctx context.Context, c *Client, key string) {
	r.mu.Lock()
	clientSubs := r.subs[c]
	state, ok := clientSubs[key]
	if ok {
		delete(clientSubs, key)
		if len(clientSubs) == 0 {
			delete(r.subs, c)
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.hub.Unsubscribe(ConversationTopic(key), c)
	if state.adminPresence {
		r.presence.MarkOffline(c.Admin())
	}
}

// Disconnect 连接断开，释放其全部订阅与在线状态计数
func (r *ConversationRouter) Disconnect(c *Client) {
	r.mu.Lock()
	clientSubs := r.subs[c]
	delete(r.subs, c)
	r.mu.Unlock()

	for _, state := range clientSubs {
		if state.adminPresence {
			r.presence.MarkOffline(c.Admin())
		}
	}

	r.hub.UnsubscribeAll(c)
}

// isSubscribed 连接当前是否订阅着该会话
func (r *ConversationRouter) isSubscribed(c *Client, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[c][key]
	return ok
}

// Speak 在会话里发送一条消息
// 授权每次重新判定，失效则静默丢弃；落库成功才广播，落库失败不广播也不归档
func (r *ConversationRouter) Speak(ctx context.Context, c *Client, key, content string) error {
	if !r.isSubscribed(c, key) {
		return model.ErrNotSubscribed
	}

	lock := r.convLock(key)
	lock.Lock()
	defer lock.Unlock()

	// 重新加载会话，参与者列表和状态可能已经变化
	conv, err := r.convDAO.GetConversationByKey(ctx, key)
	if err != nil {
		return err
	}

	senderID, senderKind, ok := r.guard.Authorize(ctx, conv, c.Customer(), c.Admin())
	if !ok {
		return model.ErrForbidden
	}

	msg := &model.Message{
		ID:             r.ids.Generate(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		SenderKind:     senderKind,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := r.convDAO.CreateMessage(ctx, msg); err != nil {
		return err
	}

	// 管理员首次应答把会话从open转为active
	if senderKind == model.SenderKindAdmin && conv.Status == model.ConversationStatusOpen {
		if err := r.convDAO.UpdateConversationStatus(ctx, conv.ID, model.ConversationStatusActive); err != nil {
			return err
		}
	}

	event := model.MessageEvent{
		Type:            model.EventMessage,
		ConversationKey: key,
		MessageID:       msg.ID,
		HTML:            r.renderer.Render(msg),
		SenderID:        senderID,
		SenderKind:      senderKind,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	r.hub.Publish(ConversationTopic(key), payload)

	r.archiveMessage(ctx, key, msg)
	return nil
}

// archiveMessage 发送归档事件到Kafka，失败只记日志
func (r *ConversationRouter) archiveMessage(ctx context.Context, key string, msg *model.Message) {
	if r.archiver == nil {
		return
	}

	event := model.ArchiveEvent{
		Type:            model.ArchiveEventType,
		MessageID:       msg.ID,
		ConversationKey: key,
		SenderID:        msg.SenderID,
		SenderKind:      msg.SenderKind,
		Content:         msg.Content,
		CreatedAt:       msg.CreatedAt.Unix(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		r.log.Error(ctx, "Failed to marshal archive event", logger.F("error", err.Error()))
		return
	}
	if err := r.archiver.SendMessage(model.ArchiveTopic, []byte(key), value); err != nil {
		r.log.Error(ctx, "Failed to publish archive event",
			logger.F("messageID", msg.ID),
			logger.F("error", err.Error()))
	}
}

// Typing 广播输入中提示，不落库，授权同样每次重新判定
func (r *ConversationRouter) Typing(ctx context.Context, c *Client, key string) error {
	if !r.isSubscribed(c, key) {
		return model.ErrNotSubscribed
	}

	conv, err := r.convDAO.GetConversationByKey(ctx, key)
	if err != nil {
		return err
	}

	senderID, senderKind, ok := r.guard.Authorize(ctx, conv, c.Customer(), c.Admin())
	if !ok {
		return model.ErrForbidden
	}

	event := model.TypingEvent{
		Type:            model.EventTyping,
		ConversationKey: key,
		Typing:          true,
		SenderID:        senderID,
		SenderKind:      senderKind,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	r.hub.Publish(ConversationTopic(key), payload)
	return nil
}

// SubscribePresence 订阅在线状态主题
// 注册与快照推送在登记表锁内完成，保证快照先于任何后续增量到达新订阅者
func (r *ConversationRouter) SubscribePresence(c *Client) {
	r.presence.SubscribeSnapshot(func() {
		r.hub.Subscribe(PresenceTopic, c)
	}, func(event model.PresenceEvent) {
		if payload, err := json.Marshal(event); err == nil {
			c.Enqueue(payload)
		}
	})
}
