package service

import (
	"fmt"
	"testing"
	"time"

	"shopchat/apps/chat-service/model"
)

// TestHubFanout 发布应到达主题全部订阅者，且不波及其他主题
func TestHubFanout(t *testing.T) {
	hub := NewHub(nopLogger{})

	c1, conn1 := newTestClient(nextClientID(), &model.Customer{ID: 1}, nil)
	c2, conn2 := newTestClient(nextClientID(), &model.Customer{ID: 2}, nil)
	c3, conn3 := newTestClient(nextClientID(), &model.Customer{ID: 3}, nil)
	defer c1.Close()
	defer c2.Close()
	defer c3.Close()

	topic := ConversationTopic("conv-1")
	hub.Subscribe(topic, c1)
	hub.Subscribe(topic, c2)
	hub.Subscribe(ConversationTopic("conv-2"), c3)

	hub.Publish(topic, []byte(`{"type":"message"}`))

	if !waitForFrames(conn1, 1, time.Second) || !waitForFrames(conn2, 1, time.Second) {
		t.Fatalf("主题订阅者应收到帧")
	}
	time.Sleep(10 * time.Millisecond)
	if conn3.frameCount() != 0 {
		t.Errorf("其他主题订阅者不应收到帧")
	}
}

// TestHubUnsubscribe 退订后不再收到帧
func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(nopLogger{})
	c1, conn1 := newTestClient(nextClientID(), &model.Customer{ID: 1}, nil)
	defer c1.Close()

	topic := ConversationTopic("conv-1")
	hub.Subscribe(topic, c1)
	hub.Unsubscribe(topic, c1)
	hub.Publish(topic, []byte("x"))

	time.Sleep(10 * time.Millisecond)
	if conn1.frameCount() != 0 {
		t.Errorf("退订后不应收到帧")
	}
	if hub.SubscriberCount(topic) != 0 {
		t.Errorf("退订后订阅数应为0")
	}
}

// TestHubUnsubscribeAll 断连清理应覆盖全部主题
func TestHubUnsubscribeAll(t *testing.T) {
	hub := NewHub(nopLogger{})
	c1, _ := newTestClient(nextClientID(), &model.Customer{ID: 1}, nil)
	defer c1.Close()

	hub.Subscribe(ConversationTopic("conv-1"), c1)
	hub.Subscribe(ConversationTopic("conv-2"), c1)
	hub.Subscribe(PresenceTopic, c1)

	hub.UnsubscribeAll(c1)
	for _, topic := range []string{ConversationTopic("conv-1"), ConversationTopic("conv-2"), PresenceTopic} {
		if hub.SubscriberCount(topic) != 0 {
			t.Errorf("主题%s应无订阅者", topic)
		}
	}
}

// TestHubSlowSubscriberIsolation 慢消费者丢帧，不拖累同主题其他订阅者
func TestHubSlowSubscriberIsolation(t *testing.T) {
	hub := NewHub(nopLogger{})

	// slow不启动写循环，缓冲会被灌满
	slowConn := &fakeConn{}
	slow := NewClient(nextClientID(), slowConn, &model.Customer{ID: 1}, nil, nopLogger{})
	fast, fastConn := newTestClient(nextClientID(), &model.Customer{ID: 2}, nil)
	defer slow.Close()
	defer fast.Close()

	topic := ConversationTopic("conv-1")
	hub.Subscribe(topic, slow)
	hub.Subscribe(topic, fast)

	total := clientSendBuffer + 16
	for i := 0; i < total; i++ {
		hub.Publish(topic, []byte(fmt.Sprintf("frame-%d", i)))
	}

	if !waitForFrames(fastConn, total, 2*time.Second) {
		t.Errorf("正常订阅者应收到全部%d帧，实际%d", total, fastConn.frameCount())
	}
}
