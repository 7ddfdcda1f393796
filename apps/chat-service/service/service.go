package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"shopchat/apps/chat-service/dao"
	"shopchat/apps/chat-service/model"
	"shopchat/pkg/kafka"
	"shopchat/pkg/logger"
	"shopchat/pkg/redis"
	"shopchat/pkg/session"
	"shopchat/pkg/snowflake"
)

// Service 客服聊天服务 - 业务编排层
type Service struct {
	convDAO     dao.ConversationDAO
	identityDAO dao.IdentityDAO
	resolver    *IdentityResolver
	guard       *AuthGuard
	hub         *Hub
	presence    *PresenceTracker
	router      *ConversationRouter
	sessions    *session.Registry
	logger      logger.Logger
}

// NewService 创建客服聊天服务实例
func NewService(convDAO dao.ConversationDAO, identityDAO dao.IdentityDAO, redisClient *redis.RedisClient, kafkaProducer *kafka.Producer, customerSecret, adminSecret string, machineID int64, log logger.Logger) (*Service, error) {
	ids, err := snowflake.NewSnowflake(machineID)
	if err != nil {
		return nil, fmt.Errorf("failed to init snowflake: %v", err)
	}

	hub := NewHub(log)
	presence := NewPresenceTracker(func(event model.PresenceEvent) {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Error(context.Background(), "Failed to marshal presence event", logger.F("error", err.Error()))
			return
		}
		hub.Publish(PresenceTopic, payload)
	})

	guard := NewAuthGuard(convDAO, log)
	var archiver ArchivePublisher
	if kafkaProducer != nil {
		archiver = kafkaProducer
	}
	router := NewConversationRouter(convDAO, guard, hub, presence, NewHTMLRenderer(), archiver, ids, log)

	var sessions *session.Registry
	if redisClient != nil {
		sessions = session.NewRegistry(redisClient, log)
	}

	return &Service{
		convDAO:     convDAO,
		identityDAO: identityDAO,
		resolver:    NewIdentityResolver(identityDAO, customerSecret, adminSecret, log),
		guard:       guard,
		hub:         hub,
		presence:    presence,
		router:      router,
		sessions:    sessions,
		logger:      log,
	}, nil
}

// ResolveIdentities 解析连接凭证，两个身份都为nil时调用方必须拒绝连接
func (s *Service) ResolveIdentities(ctx context.Context, customerToken, adminToken string) (*model.Customer, *model.Admin) {
	return s.resolver.Resolve(ctx, customerToken, adminToken)
}

// Subscribe 订阅会话主题
func (s *Service) Subscribe(ctx context.Context, c *Client, key string) error {
	return s.router.Subscribe(ctx, c, key)
}

// Unsubscribe 退订会话主题
func (s *Service) Unsubscribe(ctx context.Context, c *Client, key string) {
	s.router.Unsubscribe(ctx, c, key)
}

// Speak 发送消息
func (s *Service) Speak(ctx context.Context, c *Client, key, content string) error {
	return s.router.Speak(ctx, c, key, content)
}

// Typing 广播输入中提示
func (s *Service) Typing(ctx context.Context, c *Client, key string) error {
	return s.router.Typing(ctx, c, key)
}

// SubscribePresence 订阅在线状态主题
func (s *Service) SubscribePresence(c *Client) {
	s.router.SubscribePresence(c)
}

// Disconnect 连接断开清理
func (s *Service) Disconnect(c *Client) {
	s.router.Disconnect(c)
}

// OnlineAdmins 当前在线管理员快照
func (s *Service) OnlineAdmins() []model.PresenceEntry {
	return s.presence.ListOnline()
}

// CreateConversation 顾客发起新会话
func (s *Service) CreateConversation(ctx context.Context, customer *model.Customer) (*model.Conversation, error) {
	conv := &model.Conversation{
		Key:        uuid.NewString(),
		CustomerID: customer.ID,
		Status:     model.ConversationStatusOpen,
	}
	if err := s.convDAO.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// JoinConversation 把管理员登记为会话参与者
func (s *Service) JoinConversation(ctx context.Context, key string, admin *model.Admin) (*model.Conversation, error) {
	conv, err := s.convDAO.GetConversationByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	isParticipant, err := s.convDAO.IsParticipant(ctx, conv.ID, admin.ID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		if err := s.convDAO.AddParticipant(ctx, conv.ID, admin.ID); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

// ConversationMessages 拉取会话内的历史消息，访问权与WebSocket订阅同一套判定
func (s *Service) ConversationMessages(ctx context.Context, key string, customer *model.Customer, admin *model.Admin, limit, offset int32) ([]*model.Message, error) {
	conv, err := s.convDAO.GetConversationByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if !s.guard.CanAccess(ctx, conv, customer, admin) {
		return nil, model.ErrForbidden
	}

	return s.convDAO.GetConversationMessages(ctx, conv.ID, limit, offset)
}

// LookupAdmin 按ID加载管理员
func (s *Service) LookupAdmin(ctx context.Context, adminID int64) (*model.Admin, error) {
	return s.identityDAO.GetAdmin(ctx, adminID)
}

// RegisterSession 在Redis登记连接会话
func (s *Service) RegisterSession(ctx context.Context, c *Client) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Register(ctx, sessionRecord(c)); err != nil {
		s.logger.Error(ctx, "Failed to register session",
			logger.F("clientID", c.ID),
			logger.F("error", err.Error()))
	}
}

// HeartbeatSession 刷新连接会话心跳
func (s *Service) HeartbeatSession(ctx context.Context, c *Client) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Heartbeat(ctx, c.ID); err != nil {
		s.logger.Error(ctx, "Failed to refresh session heartbeat",
			logger.F("clientID", c.ID),
			logger.F("error", err.Error()))
	}
}

// RemoveSession 删除连接会话记录
func (s *Service) RemoveSession(ctx context.Context, c *Client) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Remove(ctx, c.ID); err != nil {
		s.logger.Error(ctx, "Failed to remove session",
			logger.F("clientID", c.ID),
			logger.F("error", err.Error()))
	}
}

// sessionRecord 连接会话记录
func sessionRecord(c *Client) *session.Record {
	record := &session.Record{ConnID: c.ID}
	if c.Customer() != nil {
		record.CustomerID = c.Customer().ID
	}
	if c.Admin() != nil {
		record.AdminID = c.Admin().ID
	}
	return record
}
