package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"shopchat/apps/chat-service/model"
	"shopchat/pkg/auth"
)

const (
	testCustomerSecret = "customer-secret"
	testAdminSecret    = "admin-secret"
)

func newTestResolver(identityDAO *fakeIdentityDAO) *IdentityResolver {
	return NewIdentityResolver(identityDAO, testCustomerSecret, testAdminSecret, nopLogger{})
}

// TestResolveBothIdentities 两个token都有效时两个身份都解析出来
func TestResolveBothIdentities(t *testing.T) {
	identityDAO := newFakeIdentityDAO()
	identityDAO.customers[100] = &model.Customer{ID: 100, Name: "买家"}
	identityDAO.admins[7] = &model.Admin{ID: 7, Name: "客服甲"}
	resolver := newTestResolver(identityDAO)

	customerToken, _ := auth.GenerateSessionToken(100, testCustomerSecret, time.Hour)
	adminToken, _ := auth.GenerateSessionToken(7, testAdminSecret, time.Hour)

	customer, admin := resolver.Resolve(context.Background(), customerToken, adminToken)
	if customer == nil || customer.ID != 100 {
		t.Errorf("应解析出顾客身份: %+v", customer)
	}
	if admin == nil || admin.ID != 7 {
		t.Errorf("应解析出管理员身份: %+v", admin)
	}
}

// TestResolveCrossNamespaceRejected 顾客token不能冒充管理员token
func TestResolveCrossNamespaceRejected(t *testing.T) {
	identityDAO := newFakeIdentityDAO()
	identityDAO.customers[100] = &model.Customer{ID: 100}
	identityDAO.admins[100] = &model.Admin{ID: 100}
	resolver := newTestResolver(identityDAO)

	customerToken, _ := auth.GenerateSessionToken(100, testCustomerSecret, time.Hour)

	// 把顾客token塞到管理员位置
	customer, admin := resolver.Resolve(context.Background(), "", customerToken)
	if customer != nil || admin != nil {
		t.Errorf("跨命名空间的token不应解析出任何身份: customer=%v admin=%v", customer, admin)
	}
}

// TestResolveMalformedAndExpired 缺失、畸形、过期token一律按未找到处理
func TestResolveMalformedAndExpired(t *testing.T) {
	identityDAO := newFakeIdentityDAO()
	identityDAO.customers[100] = &model.Customer{ID: 100}
	resolver := newTestResolver(identityDAO)

	expired, _ := auth.GenerateSessionToken(100, testCustomerSecret, -time.Hour)

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"expired", expired},
	}
	for _, tc := range cases {
		customer, admin := resolver.Resolve(context.Background(), tc.token, "")
		if customer != nil || admin != nil {
			t.Errorf("%s token不应解析出身份", tc.name)
		}
	}
}

// TestResolveUnknownUser 有效token但用户不存在时身份为nil
func TestResolveUnknownUser(t *testing.T) {
	resolver := newTestResolver(newFakeIdentityDAO())

	token, _ := auth.GenerateSessionToken(999, testCustomerSecret, time.Hour)
	customer, _ := resolver.Resolve(context.Background(), token, "")
	if customer != nil {
		t.Errorf("不存在的用户不应解析出身份")
	}
}

// TestResolveLookupErrorTreatedAsNotFound 查库出错按未找到处理，不向上抛
func TestResolveLookupErrorTreatedAsNotFound(t *testing.T) {
	identityDAO := newFakeIdentityDAO()
	identityDAO.customerErr = fmt.Errorf("db down")
	resolver := newTestResolver(identityDAO)

	token, _ := auth.GenerateSessionToken(100, testCustomerSecret, time.Hour)
	customer, _ := resolver.Resolve(context.Background(), token, "")
	if customer != nil {
		t.Errorf("查库失败不应解析出身份")
	}
}
