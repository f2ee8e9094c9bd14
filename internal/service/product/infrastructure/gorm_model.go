package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// ProductModel 对应数据库中的 products 表
type ProductModel struct {
	ID          string   `gorm:"primaryKey;size:36"`
	Name        string   `gorm:"size:255;not null"`
	Description string   `gorm:"type:text"`
	Price       float64  `gorm:"type:decimal(12,2)"`
	Categories  []string `gorm:"type:json;serializer:json"`
	Tags        []string `gorm:"type:json;serializer:json"`
	CreatedAt   time.Time
}

func (ProductModel) TableName() string {
	return "products"
}

// ItemInstanceModel 对应 item_instances 表。
// Seq 是自增主键，用来提供稳定的分配顺序；业务 ID 另建唯一索引。
type ItemInstanceModel struct {
	Seq                    uint64     `gorm:"primaryKey;autoIncrement"`
	ID                     string     `gorm:"size:36;uniqueIndex"`
	ProductRef             string     `gorm:"size:36;not null;uniqueIndex:uk_product_serial,priority:1;index:idx_product_availability,priority:1"`
	SerialNumber           string     `gorm:"size:128;not null;uniqueIndex:uk_product_serial,priority:2"`
	Availability           string     `gorm:"size:16;not null;index:idx_product_availability,priority:2"`
	ReservationTimeDate    *time.Time
	ReservationOrderNumber string `gorm:"size:64"`
	UpdatedAt              time.Time
}

func (ItemInstanceModel) TableName() string {
	return "item_instances"
}

// ReservationModel 对应 reservations 表。
// ActiveOrderNumber 只在 ACTIVE 时有值，唯一索引保证一个订单最多一条有效预留；
// 释放后置为 NULL，历史记录得以保留。
type ReservationModel struct {
	ID                string   `gorm:"primaryKey;size:36"`
	OrderNumber       string   `gorm:"size:64;not null;index"`
	ActiveOrderNumber *string  `gorm:"size:64;uniqueIndex"`
	OrderVersion      int64    `gorm:"not null;default:0"`
	ProductItemIDs    []string `gorm:"type:json;serializer:json"`
	Date              time.Time
	Status            string `gorm:"size:16;not null"`
	ReleasedAt        *time.Time
}

func (ReservationModel) TableName() string {
	return "reservations"
}

// AutoMigrate 创建或更新库存相关的表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProductModel{}, &ItemInstanceModel{}, &ReservationModel{})
}
