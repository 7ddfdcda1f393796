package service

import (
	"strings"
	"testing"

	"shopchat/apps/chat-service/model"
)

// TestRenderEscapesContent 消息内容做HTML转义，防止注入
func TestRenderEscapesContent(t *testing.T) {
	renderer := NewHTMLRenderer()
	msg := &model.Message{
		ID:         42,
		SenderKind: model.SenderKindCustomer,
		Content:    `<script>alert("x")</script>`,
	}

	got := renderer.Render(msg)
	if strings.Contains(got, "<script>") {
		t.Errorf("内容未转义: %s", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("应包含转义后的内容: %s", got)
	}
	if !strings.Contains(got, `data-message-id="42"`) {
		t.Errorf("应带消息ID: %s", got)
	}
	if !strings.Contains(got, "chat-message--customer") {
		t.Errorf("应带发送者样式类: %s", got)
	}
}
