package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"shopchat/apps/history-service/dao"
	"shopchat/apps/history-service/model"
	"shopchat/pkg/kafka"
	"shopchat/pkg/logger"
)

// ArchiveConsumer 消息归档消费者
// 职责：消费chat_message_archive Topic，把消息落到MongoDB
// 幂等性保护：依赖MongoDB的message_id唯一索引
type ArchiveConsumer struct {
	dao      dao.HistoryDAO
	consumer *kafka.Consumer
	log      logger.Logger
}

// NewArchiveConsumer 创建归档消费者
func NewArchiveConsumer(historyDAO dao.HistoryDAO, log logger.Logger) *ArchiveConsumer {
	return &ArchiveConsumer{
		dao: historyDAO,
		log: log,
	}
}

// Start 启动归档消费者
func (c *ArchiveConsumer) Start(ctx context.Context, brokers []string) error {
	cfg := kafka.KafkaConfig{
		Brokers: brokers,
		GroupID: model.ArchiveConsumerGroup,
		Topics:  []string{model.ArchiveTopic},
	}

	consumer, err := kafka.InitConsumer(cfg, c)
	if err != nil {
		c.log.Error(ctx, "Failed to init archive consumer", logger.F("error", err.Error()))
		return err
	}

	c.consumer = consumer
	c.log.Info(ctx, "Archive consumer started",
		logger.F("topic", model.ArchiveTopic),
		logger.F("groupID", model.ArchiveConsumerGroup))

	return c.consumer.StartConsuming(ctx)
}

// HandleMessage 实现 kafka.ConsumerHandler 接口
// 毒消息不返回错误，避免消费组无休止重试
func (c *ArchiveConsumer) HandleMessage(msg *sarama.ConsumerMessage) error {
	ctx := context.Background()

	var event model.ArchiveEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Error(ctx, "Invalid archive event",
			logger.F("partition", msg.Partition),
			logger.F("offset", msg.Offset),
			logger.F("error", err.Error()))
		return nil
	}

	if event.Type != model.ArchiveEventType {
		c.log.Warn(ctx, "Unknown archive event type", logger.F("type", event.Type))
		return nil
	}

	if err := c.handleArchiveMessage(ctx, &event); err != nil {
		c.log.Error(ctx, "Failed to archive message",
			logger.F("messageID", event.MessageID),
			logger.F("error", err.Error()))
		return nil
	}
	return nil
}

// handleArchiveMessage 消息落库，重复消息由唯一索引兜底
func (c *ArchiveConsumer) handleArchiveMessage(ctx context.Context, event *model.ArchiveEvent) error {
	if event.MessageID == 0 {
		return fmt.Errorf("archive event without message_id, conversation=%s", event.ConversationKey)
	}

	archived := &model.ArchivedMessage{
		MessageID:       event.MessageID,
		ConversationKey: event.ConversationKey,
		SenderID:        event.SenderID,
		SenderKind:      event.SenderKind,
		Content:         event.Content,
		CreatedAt:       time.Unix(event.CreatedAt, 0),
		ArchivedAt:      time.Now(),
	}

	return c.dao.ArchiveMessage(ctx, archived)
}
