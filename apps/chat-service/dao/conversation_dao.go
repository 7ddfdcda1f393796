package dao

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shopchat/apps/chat-service/model"
	"shopchat/pkg/database"
)

// conversationDAO .
type conversationDAO struct {
	db *database.PostgreSQL
}

// NewConversationDAO 创建会话DAO
func NewConversationDAO(db *database.PostgreSQL) ConversationDAO {
	return &conversationDAO{db: db}
}

// CreateConversation 创建会话
func (d *conversationDAO) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("failed to create conversation: %v", err)
	}
	return nil
}

// GetConversationByKey 按对外标识查找会话，未找到返回ErrConversationNotFound
func (d *conversationDAO) GetConversationByKey(ctx context.Context, key string) (*model.Conversation, error) {
	var conv model.Conversation
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Where("key = ?", key).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %v", err)
	}
	return &conv, nil
}

// UpdateConversationStatus 更新会话状态
func (d *conversationDAO) UpdateConversationStatus(ctx context.Context, conversationID int64, status string) error {
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update conversation status: %v", err)
	}
	return nil
}

// AddParticipant 添加会话参与者
func (d *conversationDAO) AddParticipant(ctx context.Context, conversationID, adminID int64) error {
	participant := &model.ConversationParticipant{
		ConversationID: conversationID,
		AdminID:        adminID,
	}
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Create(participant).Error; err != nil {
		return fmt.Errorf("failed to add participant: %v", err)
	}
	return nil
}

// IsParticipant 检查管理员是否为会话参与者
func (d *conversationDAO) IsParticipant(ctx context.Context, conversationID, adminID int64) (bool, error) {
	var count int64
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND admin_id = ?", conversationID, adminID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check participant: %v", err)
	}
	return count > 0, nil
}

// CreateMessage 追加一条消息
func (d *conversationDAO) CreateMessage(ctx context.Context, msg *model.Message) error {
	db := d.db.GetDB()
	if err := db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %v", err)
	}
	return nil
}

// GetConversationMessages 按插入顺序分页查询会话消息
func (d *conversationDAO) GetConversationMessages(ctx context.Context, conversationID int64, limit, offset int32) ([]*model.Message, error) {
	var messages []*model.Message
	db := d.db.GetDB()
	if err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Offset(int(offset)).Limit(int(limit)).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get conversation messages: %v", err)
	}
	return messages, nil
}
