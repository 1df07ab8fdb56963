package model

import "time"

// サイズなどのバリアント。SKUで一意。
type ProductVariant struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID  int64     `gorm:"not null;index" json:"product_id"`
	SKU        string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"sku"`
	Label      string    `gorm:"type:varchar(50);not null" json:"label"`
	PriceCents int64     `gorm:"not null" json:"price_cents"`
	Currency   string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Stock      int64     `gorm:"not null" json:"stock"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
