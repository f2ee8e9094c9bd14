package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	OrderNumber string `gorm:"size:64;not null;uniqueIndex"`
	Version     int64  `gorm:"not null;default:0"`
	State       string `gorm:"size:16;not null"`
	Reason      string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// 关联关系
	Lines   []OrderLineModel  `gorm:"foreignKey:OrderNumber;references:OrderNumber"`
	Address OrderAddressModel `gorm:"foreignKey:OrderNumber;references:OrderNumber"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineModel 对应 order_lines 表，Position 保持订单行的原始顺序
type OrderLineModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	OrderNumber string `gorm:"size:64;not null;index"`
	Position    int    `gorm:"not null"`
	ItemRef     string `gorm:"size:64;not null"`
	Count       int    `gorm:"not null"`
	ItemName    string `gorm:"size:255"`
}

func (OrderLineModel) TableName() string {
	return "order_lines"
}

// OrderAddressModel 对应 order_addresses 表
type OrderAddressModel struct {
	OrderNumber  string `gorm:"primaryKey;size:64"`
	AddressLine1 string `gorm:"size:255;not null"`
	AddressLine2 string `gorm:"size:255"`
	City         string `gorm:"size:128;not null"`
	Country      string `gorm:"size:128;not null"`
}

func (OrderAddressModel) TableName() string {
	return "order_addresses"
}

// AutoMigrate 创建或更新订单相关的表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OrderModel{}, &OrderLineModel{}, &OrderAddressModel{})
}
