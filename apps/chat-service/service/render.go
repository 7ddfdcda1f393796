package service

import (
	"fmt"
	"html"

	"shopchat/apps/chat-service/model"
)

// MessageRenderer 把消息渲染成广播载荷里的标记文本
// 对路由层来说渲染结果是不透明字符串，换用别的模板方案不影响广播逻辑
type MessageRenderer interface {
	Render(msg *model.Message) string
}

// HTMLRenderer 默认渲染器，输出与商城前端约定的消息片段
type HTMLRenderer struct{}

// NewHTMLRenderer 创建默认渲染器
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

// Render 渲染一条消息，内容做HTML转义
func (r *HTMLRenderer) Render(msg *model.Message) string {
	return fmt.Sprintf(`<div class="chat-message chat-message--%s" data-message-id="%d"><p>%s</p></div>`,
		msg.SenderKind, msg.ID, html.EscapeString(msg.Content))
}
