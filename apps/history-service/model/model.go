package model

import "time"

// 归档消费配置
const (
	ArchiveTopic         = "chat_message_archive" // 消息归档Topic
	ArchiveEventType     = "archive_message"
	ArchiveCollection    = "archived_messages" // MongoDB集合名
	ArchiveConsumerGroup = "history-archive-consumer-group"
)

// ArchiveEvent Kafka归档事件，与chat-service的出站事件同一形状
type ArchiveEvent struct {
	Type            string `json:"type"`
	MessageID       int64  `json:"message_id"`
	ConversationKey string `json:"conversation_key"`
	SenderID        int64  `json:"sender_id"`
	SenderKind      string `json:"sender_kind"`
	Content         string `json:"content"`
	CreatedAt       int64  `json:"created_at"` // Unix秒
}

// ArchivedMessage MongoDB归档消息文档
// MessageID上有唯一索引，重复消费靠它幂等
type ArchivedMessage struct {
	MessageID       int64     `bson:"message_id" json:"message_id"`
	ConversationKey string    `bson:"conversation_key" json:"conversation_key"`
	SenderID        int64     `bson:"sender_id" json:"sender_id"`
	SenderKind      string    `bson:"sender_kind" json:"sender_kind"`
	Content         string    `bson:"content" json:"content"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	ArchivedAt      time.Time `bson:"archived_at" json:"archived_at"`
}
