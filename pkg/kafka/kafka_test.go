package kafka

import (
	"testing"
)

// TestConsumerSetupAfterRebalance 再平衡后Setup会被重新调用，不应panic
func TestConsumerSetupAfterRebalance(t *testing.T) {
	c := &Consumer{ready: make(chan bool)}

	if err := c.Setup(nil); err != nil {
		t.Fatalf("首个会话Setup失败: %v", err)
	}
	if err := c.Setup(nil); err != nil {
		t.Fatalf("再平衡后的Setup失败: %v", err)
	}

	select {
	case <-c.ready:
	default:
		t.Errorf("Setup后ready应已关闭")
	}
}
