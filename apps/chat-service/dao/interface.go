package dao

import (
	"context"

	"shopchat/apps/chat-service/model"
)

// ConversationDAO 会话数据访问接口
type ConversationDAO interface {
	// 会话
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversationByKey(ctx context.Context, key string) (*model.Conversation, error)
	UpdateConversationStatus(ctx context.Context, conversationID int64, status string) error

	// 参与者
	AddParticipant(ctx context.Context, conversationID, adminID int64) error
	IsParticipant(ctx context.Context, conversationID, adminID int64) (bool, error)

	// 消息，只追加
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetConversationMessages(ctx context.Context, conversationID int64, limit, offset int32) ([]*model.Message, error)
}

// IdentityDAO 身份数据访问接口
type IdentityDAO interface {
	GetCustomer(ctx context.Context, customerID int64) (*model.Customer, error)
	GetAdmin(ctx context.Context, adminID int64) (*model.Admin, error)
}
