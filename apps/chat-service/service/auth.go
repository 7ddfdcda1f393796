package service

import (
	"context"

	"shopchat/apps/chat-service/dao"
	"shopchat/apps/chat-service/model"
	"shopchat/pkg/logger"
)

// AuthGuard 会话访问决策
// 规则：顾客仅能访问自己拥有的会话；管理员仅能访问有参与者记录的会话
// 参与者列表会随时间变化，因此每次订阅和每个入站动作都要重新判定，不做连接级缓存
type AuthGuard struct {
	convDAO dao.ConversationDAO
	log     logger.Logger
}

// NewAuthGuard 创建访问决策器
func NewAuthGuard(convDAO dao.ConversationDAO, log logger.Logger) *AuthGuard {
	return &AuthGuard{convDAO: convDAO, log: log}
}

// Authorize 判定身份对会话的访问权，并给出实际生效的发送者身份
// 同一连接两种身份都可用时管理员身份优先（参与者记录是显式授权）
func (g *AuthGuard) Authorize(ctx context.Context, conv *model.Conversation, customer *model.Customer, admin *model.Admin) (senderID int64, senderKind string, ok bool) {
	if admin != nil {
		isParticipant, err := g.convDAO.IsParticipant(ctx, conv.ID, admin.ID)
		if err != nil {
			// 查询失败按未授权处理，不向上抛
			g.log.Error(ctx, "Participant check failed",
				logger.F("conversationID", conv.ID),
				logger.F("adminID", admin.ID),
				logger.F("error", err.Error()))
		} else if isParticipant {
			return admin.ID, model.SenderKindAdmin, true
		}
	}

	if customer != nil && conv.CustomerID == customer.ID {
		return customer.ID, model.SenderKindCustomer, true
	}

	return 0, "", false
}

// CanAccess 仅判定能否访问
func (g *AuthGuard) CanAccess(ctx context.Context, conv *model.Conversation, customer *model.Customer, admin *model.Admin) bool {
	_, _, ok := g.Authorize(ctx, conv, customer, admin)
	return ok
}
