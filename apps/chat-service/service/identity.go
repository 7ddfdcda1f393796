package service

import (
	"context"

	"shopchat/apps/chat-service/dao"
	"shopchat/apps/chat-service/model"
	"shopchat/pkg/auth"
	"shopchat/pkg/logger"
)

// IdentityResolver 连接身份解析
// 顾客与管理员是两个独立的身份命名空间，各自用独立密钥签发的会话token
type IdentityResolver struct {
	identityDAO    dao.IdentityDAO
	customerSecret string
	adminSecret    string
	log            logger.Logger
}

// NewIdentityResolver 创建身份解析器
func NewIdentityResolver(identityDAO dao.IdentityDAO, customerSecret, adminSecret string, log logger.Logger) *IdentityResolver {
	return &IdentityResolver{
		identityDAO:    identityDAO,
		customerSecret: customerSecret,
		adminSecret:    adminSecret,
		log:            log,
	}
}

// Resolve 解析连接携带的凭证，返回找到的身份（可能两个都有，也可能都没有）
// token缺失、格式错误、过期一律按"未找到"处理，绝不向调用方抛错
func (r *IdentityResolver) Resolve(ctx context.Context, customerToken, adminToken string) (*model.Customer, *model.Admin) {
	var customer *model.Customer
	var admin *model.Admin

	if customerID, err := auth.ParseSessionToken(customerToken, r.customerSecret); err == nil {
		found, lookupErr := r.identityDAO.GetCustomer(ctx, customerID)
		if lookupErr != nil {
			r.log.Error(ctx, "Customer lookup failed",
				logger.F("customerID", customerID),
				logger.F("error", lookupErr.Error()))
		} else {
			customer = found
		}
	}

	if adminID, err := auth.ParseSessionToken(adminToken, r.adminSecret); err == nil {
		found, lookupErr := r.identityDAO.GetAdmin(ctx, adminID)
		if lookupErr != nil {
			r.log.Error(ctx, "Admin lookup failed",
				logger.F("adminID", adminID),
				logger.F("error", lookupErr.Error()))
		} else {
			admin = found
		}
	}

	return customer, admin
}
