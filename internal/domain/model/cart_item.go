package model

import "time"

// カートの明細。
// 価格はチェックアウト時にスナップショットするので、ここでは持たない。
// FitSummaryはサイズ推薦の由来情報で、中身は見ずに注文へ引き継ぐだけ。
type CartItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID      int64     `gorm:"not null;index" json:"cart_id"`
	ProductID   int64     `gorm:"not null;index" json:"product_id"`
	VariantID   int64     `gorm:"not null;index" json:"variant_id"`
	Quantity    int64     `gorm:"not null" json:"quantity"`
	Recommended bool      `gorm:"not null;default:false" json:"recommended"`
	FitSummary  string    `gorm:"type:text" json:"fit_summary"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
