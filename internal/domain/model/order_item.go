package model

import "time"

// 注文明細。カート明細からのディープコピー。
// 名前・SKU・価格は注文時点のスナップショットで、後からカタログを直しても変わらない。
type OrderItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           int64     `gorm:"not null;index" json:"order_id"`
	ProductID         int64     `gorm:"not null;index" json:"product_id"`
	VariantID         int64     `gorm:"not null" json:"variant_id"`
	SKUSnapshot       string    `gorm:"type:varchar(64);not null" json:"sku_snapshot"`
	NameSnapshot      string    `gorm:"type:varchar(255);not null" json:"name_snapshot"`
	SizeLabelSnapshot string    `gorm:"type:varchar(50)" json:"size_label_snapshot"`
	UnitPriceCents    int64     `gorm:"not null" json:"unit_price_cents"`
	Currency          string    `gorm:"type:varchar(3);not null" json:"currency"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	Recommended       bool      `gorm:"not null;default:false" json:"recommended"`
	FitSummary        string    `gorm:"type:text" json:"fit_summary"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
