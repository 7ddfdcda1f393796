package model

import "errors"

// ActionKind 客户端动作类型，封闭枚举
type ActionKind string

const (
	ActionSubscribe   ActionKind = "subscribe"   // 订阅会话主题
	ActionUnsubscribe ActionKind = "unsubscribe" // 退订会话主题
	ActionSpeak       ActionKind = "speak"       // 发送消息
	ActionTyping      ActionKind = "typing"      // 输入中提示
	ActionPresence    ActionKind = "presence"    // 订阅在线状态主题
)

// ClientAction 客户端入站帧
type ClientAction struct {
	Action          ActionKind `json:"action"`
	ConversationKey string     `json:"conversation_key,omitempty"`
	Content         string     `json:"content,omitempty"`
}

// 服务端出站事件类型
const (
	EventConfirm  = "confirm"  // 订阅成功确认
	EventReject   = "reject"   // 订阅被拒绝
	EventMessage  = "message"  // 会话消息
	EventTyping   = "typing"   // 输入中提示
	EventPresence = "presence" // 在线状态快照/增量
)

// 订阅拒绝原因
const (
	RejectReasonNotFound  = "not_found"
	RejectReasonForbidden = "forbidden"
)

// SubscribeEvent 订阅结果事件
type SubscribeEvent struct {
	Type            string `json:"type"` // confirm/reject
	ConversationKey string `json:"conversation_key"`
	Reason          string `json:"reason,omitempty"`
}

// MessageEvent 广播给会话主题订阅者的消息事件
type MessageEvent struct {
	Type            string `json:"type"` // message
	ConversationKey string `json:"conversation_key"`
	MessageID       int64  `json:"message_id"`
	HTML            string `json:"html"` // 服务端渲染后的消息内容
	SenderID        int64  `json:"sender_id"`
	SenderKind      string `json:"sender_kind"`
}

// TypingEvent 输入中提示事件，不落库，尽力投递
type TypingEvent struct {
	Type            string `json:"type"` // typing
	ConversationKey string `json:"conversation_key"`
	Typing          bool   `json:"typing"`
	SenderID        int64  `json:"sender_id"`
	SenderKind      string `json:"sender_kind"`
}

// PresenceEvent 在线状态事件，快照与增量共用同一形状
type PresenceEvent struct {
	Type      string `json:"type"` // presence
	AdminID   int64  `json:"admin_id"`
	AdminName string `json:"admin_name"`
	Status    string `json:"status"` // online/offline
}

// ArchiveEvent 投递到Kafka的消息归档事件
type ArchiveEvent struct {
	Type            string `json:"type"` // archive_message
	MessageID       int64  `json:"message_id"`
	ConversationKey string `json:"conversation_key"`
	SenderID        int64  `json:"sender_id"`
	SenderKind      string `json:"sender_kind"`
	Content         string `json:"content"`
	CreatedAt       int64  `json:"created_at"` // Unix秒
}

// Kafka归档
const (
	ArchiveTopic     = "chat_message_archive" // 消息归档Topic
	ArchiveEventType = "archive_message"
)

// 领域错误，仅在路由层内部消化，不向其他连接暴露
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrForbidden            = errors.New("identity not allowed on conversation")
	ErrNotSubscribed        = errors.New("connection not subscribed to conversation")
)
