package service

import (
	"context"
	"sync"

	"shopchat/pkg/logger"
)

// PresenceTopic 全局在线状态主题
const PresenceTopic = "presence"

// ConversationTopic 由会话标识推导会话主题名
func ConversationTopic(key string) string {
	return "conversation:" + key
}

// Hub 进程内广播总线：主题 → 订阅者集合
// 发布时对订阅者集合做快照遍历，投递走各客户端自己的缓冲，慢订阅者不会拖住其他订阅者
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
	log    logger.Logger
}

// NewHub 创建广播总线
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		log:    log,
	}
}

// Subscribe 将客户端注册到主题
func (h *Hub) Subscribe(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Client]struct{})
		h.topics[topic] = subs
	}
	subs[c] = struct{}{}
}

// Unsubscribe 将客户端从主题移除
func (h *Hub) Unsubscribe(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// UnsubscribeAll 客户端断开时移除其全部主题成员关系
func (h *Hub) UnsubscribeAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic, subs := range h.topics {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish 向主题当前全部订阅者投递一帧，按发布时刻的成员快照，尽力而为
func (h *Hub) Publish(topic string, payload []byte) {
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	for _, c := range subs {
		if !c.Enqueue(payload) {
			h.log.Debug(context.Background(), "Dropped publish to subscriber",
				logger.F("topic", topic),
				logger.F("clientID", c.ID))
		}
	}
}

// SubscriberCount 主题当前订阅者数量
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
