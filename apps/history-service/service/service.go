package service

import (
	"context"

	"shopchat/apps/history-service/dao"
	"shopchat/apps/history-service/model"
	"shopchat/pkg/logger"
)

// Service 消息归档查询服务
type Service struct {
	dao    dao.HistoryDAO
	logger logger.Logger
}

// NewService 创建消息归档查询服务实例
func NewService(historyDAO dao.HistoryDAO, log logger.Logger) *Service {
	return &Service{
		dao:    historyDAO,
		logger: log,
	}
}

// GetConversationMessages 分页查询会话归档消息
func (s *Service) GetConversationMessages(ctx context.Context, conversationKey string, limit, offset int64) ([]*model.ArchivedMessage, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.dao.GetConversationMessages(ctx, conversationKey, limit, offset)
}

// GetMessage 查询单条归档消息
func (s *Service) GetMessage(ctx context.Context, messageID int64) (*model.ArchivedMessage, error) {
	return s.dao.GetMessage(ctx, messageID)
}
