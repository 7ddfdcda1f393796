package dao

import (
	"context"

	"shopchat/apps/history-service/model"
)

// HistoryDAO 归档消息数据访问接口
type HistoryDAO interface {
	// ArchiveMessage 写入归档消息，MessageID重复时幂等返回成功
	ArchiveMessage(ctx context.Context, msg *model.ArchivedMessage) error
	// GetConversationMessages 按会话key分页查询归档消息，按MessageID升序
	GetConversationMessages(ctx context.Context, conversationKey string, limit, offset int64) ([]*model.ArchivedMessage, int64, error)
	// GetMessage 按MessageID查询单条归档消息
	GetMessage(ctx context.Context, messageID int64) (*model.ArchivedMessage, error)
	// EnsureIndexes 创建集合索引
	EnsureIndexes(ctx context.Context) error
}
