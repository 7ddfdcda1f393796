package service

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"shopchat/apps/chat-service/model"
	"shopchat/pkg/logger"
)

// 每个客户端的发送缓冲大小，写满说明消费端过慢，直接丢弃该次投递
const clientSendBuffer = 64

// wsConn 客户端写入所需的最小连接接口，便于测试替身
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client 一条已认证的长连接
// customer/admin二者至少有一个非空，均为空的连接在握手阶段就会被拒绝
type Client struct {
	ID       string
	conn     wsConn
	customer *model.Customer
	admin    *model.Admin

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       logger.Logger
}

// NewClient 创建客户端
func NewClient(id string, conn wsConn, customer *model.Customer, admin *model.Admin, log logger.Logger) *Client {
	return &Client{
		ID:       id,
		conn:     conn,
		customer: customer,
		admin:    admin,
		send:     make(chan []byte, clientSendBuffer),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Customer 返回顾客身份，可能为nil
func (c *Client) Customer() *model.Customer {
	return c.customer
}

// Admin 返回管理员身份，可能为nil
func (c *Client) Admin() *model.Admin {
	return c.admin
}

// Enqueue 非阻塞投递一帧，连接已关闭或缓冲已满时丢弃并返回false
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		// 慢消费者，丢弃本次投递，不阻塞发布方
		c.log.Warn(context.Background(), "Client send buffer full, dropping payload",
			logger.F("clientID", c.ID))
		return false
	}
}

// WritePump 独占websocket写端，直到连接关闭
func (c *Client) WritePump() {
	for {
		select {
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Info(context.Background(), "Client write failed, closing",
					logger.F("clientID", c.ID),
					logger.F("error", err.Error()))
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close 幂等关闭连接
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Done 连接关闭信号
func (c *Client) Done() <-chan struct{} {
	return c.done
}
