package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"shopchat/pkg/logger"
	"shopchat/pkg/redis"
)

// 连接会话记录的Redis过期时间，心跳负责续期，
// 进程崩溃后记录随TTL自然消失
const sessionTTL = 2 * time.Hour

// Record 一条活跃连接的会话记录
type Record struct {
	ConnID     string `json:"conn_id"`
	CustomerID int64  `json:"customer_id,omitempty"`
	AdminID    int64  `json:"admin_id,omitempty"`
}

// Registry 基于Redis的连接会话登记表
// 记录哪些连接正活跃在本实例上，供运维排查与离线推送判断使用
type Registry struct {
	redis *redis.RedisClient
	log   logger.Logger
}

// NewRegistry 创建会话登记表
func NewRegistry(redisClient *redis.RedisClient, log logger.Logger) *Registry {
	return &Registry{redis: redisClient, log: log}
}

// sessionKey .
func sessionKey(connID string) string {
	return "chat:session:" + connID
}

// Register 登记一条连接会话
func (r *Registry) Register(ctx context.Context, record *Record) error {
	now := time.Now().Unix()
	fields := map[string]interface{}{
		"conn_id":        record.ConnID,
		"customer_id":    record.CustomerID,
		"admin_id":       record.AdminID,
		"connected_at":   now,
		"last_heartbeat": now,
	}

	key := sessionKey(record.ConnID)
	if err := r.redis.HMSet(ctx, key, fields); err != nil {
		return fmt.Errorf("failed to register session: %v", err)
	}
	if err := r.redis.Expire(ctx, key, sessionTTL); err != nil {
		return fmt.Errorf("failed to set session expire: %v", err)
	}
	return nil
}

// Heartbeat 刷新连接心跳并续期
func (r *Registry) Heartbeat(ctx context.Context, connID string) error {
	key := sessionKey(connID)
	if err := r.redis.HSet(ctx, key, "last_heartbeat", time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to update heartbeat: %v", err)
	}
	if err := r.redis.Expire(ctx, key, sessionTTL); err != nil {
		return fmt.Errorf("failed to refresh session expire: %v", err)
	}
	return nil
}

// Remove 删除连接会话记录
func (r *Registry) Remove(ctx context.Context, connID string) error {
	if err := r.redis.Del(ctx, sessionKey(connID)); err != nil {
		return fmt.Errorf("failed to remove session: %v", err)
	}
	return nil
}

// Get 查询连接会话记录，不存在返回nil
func (r *Registry) Get(ctx context.Context, connID string) (*Record, error) {
	fields, err := r.redis.HGetAll(ctx, sessionKey(connID))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %v", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	record := &Record{ConnID: fields["conn_id"]}
	if v, err := strconv.ParseInt(fields["customer_id"], 10, 64); err == nil {
		record.CustomerID = v
	}
	if v, err := strconv.ParseInt(fields["admin_id"], 10, 64); err == nil {
		record.AdminID = v
	}
	return record, nil
}
