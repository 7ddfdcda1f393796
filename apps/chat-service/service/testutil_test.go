package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shopchat/apps/chat-service/model"
	"shopchat/pkg/logger"
)

// nopLogger 测试用空日志器
type nopLogger struct{}

func (nopLogger) Info(ctx context.Context, msg string, fields ...logger.Field)  {}
func (nopLogger) Error(ctx context.Context, msg string, fields ...logger.Field) {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...logger.Field)  {}
func (nopLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {}
func (nopLogger) Fatal(ctx context.Context, msg string, fields ...logger.Field) {}
func (l nopLogger) WithContext(ctx context.Context) logger.Logger               { return l }

// fakeConn 测试用连接替身，记录所有写出的帧
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	// writeErr非空时WriteMessage返回该错误
	writeErr error
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) frame(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[i]
}

// waitForFrames 轮询等待连接收到期望数量的帧
func waitForFrames(c *fakeConn, want int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.frameCount() >= want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return c.frameCount() >= want
}

// fakeConvDAO 会话DAO内存替身
type fakeConvDAO struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation     // key -> conversation
	participants  map[int64]map[int64]bool           // conversationID -> adminID -> true
	messages      []*model.Message
	nextID        int64

	// 错误注入
	participantErr error
	createMsgErr   error
}

func newFakeConvDAO() *fakeConvDAO {
	return &fakeConvDAO{
		conversations: make(map[string]*model.Conversation),
		participants:  make(map[int64]map[int64]bool),
		nextID:        1,
	}
}

func (d *fakeConvDAO) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	conv.ID = d.nextID
	d.nextID++
	d.conversations[conv.Key] = conv
	return nil
}

func (d *fakeConvDAO) GetConversationByKey(ctx context.Context, key string) (*model.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conv, ok := d.conversations[key]
	if !ok {
		return nil, model.ErrConversationNotFound
	}
	clone := *conv
	return &clone, nil
}

func (d *fakeConvDAO) UpdateConversationStatus(ctx context.Context, conversationID int64, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, conv := range d.conversations {
		if conv.ID == conversationID {
			conv.Status = status
			return nil
		}
	}
	return model.ErrConversationNotFound
}

func (d *fakeConvDAO) AddParticipant(ctx context.Context, conversationID, adminID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.participants[conversationID] == nil {
		d.participants[conversationID] = make(map[int64]bool)
	}
	d.participants[conversationID][adminID] = true
	return nil
}

func (d *fakeConvDAO) IsParticipant(ctx context.Context, conversationID, adminID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.participantErr != nil {
		return false, d.participantErr
	}
	return d.participants[conversationID][adminID], nil
}

func (d *fakeConvDAO) CreateMessage(ctx context.Context, msg *model.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createMsgErr != nil {
		return d.createMsgErr
	}
	clone := *msg
	d.messages = append(d.messages, &clone)
	return nil
}

func (d *fakeConvDAO) GetConversationMessages(ctx context.Context, conversationID int64, limit, offset int32) ([]*model.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []*model.Message
	for _, msg := range d.messages {
		if msg.ConversationID == conversationID {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (d *fakeConvDAO) messageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

// setCreateMessageErr 注入落库错误，传nil恢复
func (d *fakeConvDAO) setCreateMessageErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createMsgErr = err
}

// removeParticipant 撤销管理员的参与者记录
func (d *fakeConvDAO) removeParticipant(conversationID, adminID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.participants[conversationID], adminID)
}

// addConversation 登记一条会话并返回它
func (d *fakeConvDAO) addConversation(key string, customerID int64, status string) *model.Conversation {
	conv := &model.Conversation{Key: key, CustomerID: customerID, Status: status}
	d.CreateConversation(context.Background(), conv)
	return conv
}

// fakeIdentityDAO 身份DAO内存替身
type fakeIdentityDAO struct {
	customers map[int64]*model.Customer
	admins    map[int64]*model.Admin

	customerErr error
}

func newFakeIdentityDAO() *fakeIdentityDAO {
	return &fakeIdentityDAO{
		customers: make(map[int64]*model.Customer),
		admins:    make(map[int64]*model.Admin),
	}
}

func (d *fakeIdentityDAO) GetCustomer(ctx context.Context, customerID int64) (*model.Customer, error) {
	if d.customerErr != nil {
		return nil, d.customerErr
	}
	return d.customers[customerID], nil
}

func (d *fakeIdentityDAO) GetAdmin(ctx context.Context, adminID int64) (*model.Admin, error) {
	return d.admins[adminID], nil
}

// fakeArchiver 归档发布替身
type fakeArchiver struct {
	mu     sync.Mutex
	topics []string
	values [][]byte
	err    error
}

func (a *fakeArchiver) SendMessage(topic string, key, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.topics = append(a.topics, topic)
	buf := make([]byte, len(value))
	copy(buf, value)
	a.values = append(a.values, buf)
	return nil
}

func (a *fakeArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.values)
}

// newTestClient 创建带替身连接的客户端，并启动写循环
func newTestClient(id string, customer *model.Customer, admin *model.Admin) (*Client, *fakeConn) {
	conn := &fakeConn{}
	c := NewClient(id, conn, customer, admin, nopLogger{})
	go c.WritePump()
	return c, conn
}

var testClientSeq int64

// nextClientID 生成测试用连接ID
func nextClientID() string {
	testClientSeq++
	return fmt.Sprintf("conn-test-%d", testClientSeq)
}
