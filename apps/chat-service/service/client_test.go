package service

import (
	"errors"
	"testing"
	"time"

	"shopchat/apps/chat-service/model"
)

// TestWritePumpClosesOnWriteError 连接写失败后写循环退出并关闭连接
func TestWritePumpClosesOnWriteError(t *testing.T) {
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	c := NewClient(nextClientID(), conn, &model.Customer{ID: 1}, nil, nopLogger{})
	go c.WritePump()

	if !c.Enqueue([]byte(`{"type":"typing"}`)) {
		t.Fatalf("入队应成功")
	}

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatalf("写失败后连接应关闭")
	}
	if !conn.isClosed() {
		t.Errorf("底层连接应已关闭")
	}

	// 关闭后的入队是静默空操作
	if c.Enqueue([]byte("x")) {
		t.Errorf("关闭后入队应返回false")
	}
}
