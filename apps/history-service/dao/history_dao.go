package dao

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopchat/apps/history-service/model"
	"shopchat/pkg/database"
)

// historyDAO 归档消息MongoDB访问实现
type historyDAO struct {
	db *database.MongoDB
}

// NewHistoryDAO 创建归档消息DAO实例
func NewHistoryDAO(db *database.MongoDB) HistoryDAO {
	return &historyDAO{
		db: db,
	}
}

func (d *historyDAO) collection() *mongo.Collection {
	return d.db.GetCollection(model.ArchiveCollection)
}

// EnsureIndexes 创建集合索引
// message_id唯一索引承担重复消费的幂等保护
func (d *historyDAO) EnsureIndexes(ctx context.Context) error {
	if err := d.db.EnsureUniqueIndex(ctx, model.ArchiveCollection, "message_id"); err != nil {
		return err
	}

	_, err := d.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_key", Value: 1},
			{Key: "message_id", Value: 1},
		},
	})
	return err
}

// ArchiveMessage 写入归档消息
// 乐观插入，撞唯一索引视为已归档过，返回成功
func (d *historyDAO) ArchiveMessage(ctx context.Context, msg *model.ArchivedMessage) error {
	_, err := d.collection().InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	}
	return nil
}

// GetConversationMessages 按会话key分页查询归档消息
func (d *historyDAO) GetConversationMessages(ctx context.Context, conversationKey string, limit, offset int64) ([]*model.ArchivedMessage, int64, error) {
	filter := bson.M{"conversation_key": conversationKey}

	total, err := d.collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "message_id", Value: 1}}).
		SetSkip(offset).
		SetLimit(limit)

	cursor, err := d.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var messages []*model.ArchivedMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// GetMessage 按MessageID查询单条归档消息
func (d *historyDAO) GetMessage(ctx context.Context, messageID int64) (*model.ArchivedMessage, error) {
	var msg model.ArchivedMessage
	err := d.collection().FindOne(ctx, bson.M{"message_id": messageID}).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}
