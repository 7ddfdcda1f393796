package dao

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shopchat/apps/chat-service/model"
	"shopchat/pkg/database"
)

// identityDAO .
type identityDAO struct {
	db *database.PostgreSQL
}

// NewIdentityDAO 创建身份DAO
func NewIdentityDAO(db *database.PostgreSQL) IdentityDAO {
	return &identityDAO{db: db}
}

// GetCustomer 查找顾客，未找到返回nil而非错误
func (d *identityDAO) GetCustomer(ctx context.Context, customerID int64) (*model.Customer, error) {
	var customer model.Customer
	db := d.db.GetDB()
	if err := db.WithContext(ctx).First(&customer, customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer: %v", err)
	}
	return &customer, nil
}

// GetAdmin 查找管理员，未找到返回nil而非错误
func (d *identityDAO) GetAdmin(ctx context.Context, adminID int64) (*model.Admin, error) {
	var admin model.Admin
	db := d.db.GetDB()
	if err := db.WithContext(ctx).First(&admin, adminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get admin: %v", err)
	}
	return &admin, nil
}
