package model

import (
	"time"
)

// Customer 商城顾客身份
type Customer struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:255;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// Admin 客服管理员身份
type Admin struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:255;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation 客服会话
type Conversation struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	Key        string    `json:"key" gorm:"size:36;uniqueIndex;not null"` // 对外会话标识，UUID
	CustomerID int64     `json:"customer_id" gorm:"index;not null"`       // 会话归属的顾客，有且仅有一个
	Status     string    `json:"status" gorm:"size:16;default:open"`      // open/active/closed
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConversationParticipant 会话参与者记录，一条记录代表一个管理员被授权进入该会话
type ConversationParticipant struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	ConversationID int64     `json:"conversation_id" gorm:"uniqueIndex:idx_conv_admin;not null"`
	AdminID        int64     `json:"admin_id" gorm:"uniqueIndex:idx_conv_admin;not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message 会话消息，只追加不修改
type Message struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement:false"` // 雪花ID，同一会话内按发布顺序单调递增
	ConversationID int64     `json:"conversation_id" gorm:"index;not null"`
	SenderID       int64     `json:"sender_id" gorm:"not null"`
	SenderKind     string    `json:"sender_kind" gorm:"size:16;not null"` // customer/admin
	Content        string    `json:"content" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

// 会话状态
const (
	ConversationStatusOpen   = "open"   // 顾客已发起，尚无管理员应答
	ConversationStatusActive = "active" // 管理员已应答
	ConversationStatusClosed = "closed" // 已结束
)

// 发送者类型
const (
	SenderKindCustomer = "customer"
	SenderKindAdmin    = "admin"
)

// 在线状态
const (
	PresenceStatusOnline  = "online"
	PresenceStatusOffline = "offline"
)

// PresenceEntry 单个管理员的在线状态快照
type PresenceEntry struct {
	AdminID   int64     `json:"admin_id"`
	AdminName string    `json:"admin_name"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}
