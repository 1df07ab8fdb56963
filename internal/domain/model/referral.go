package model

import "time"

// 紹介コード。128bit以上の乱数から作る。
type Referral struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code           string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	ReferrerUserID int64     `gorm:"not null;index" json:"referrer_user_id"`
	Active         bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

type ReferralEventKind string

const (
	ReferralEventClick      ReferralEventKind = "click"
	ReferralEventSignup     ReferralEventKind = "signup"
	ReferralEventConversion ReferralEventKind = "conversion"
)

// 紹介イベント（click / signup / conversion）。
type ReferralEvent struct {
	ID          int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string            `gorm:"type:varchar(64);not null;index" json:"code"`
	Kind        ReferralEventKind `gorm:"type:varchar(20);not null;index" json:"kind"`
	UserID      int64             `gorm:"index" json:"user_id,omitempty"`
	OrderID     int64             `gorm:"index" json:"order_id,omitempty"`
	AmountCents int64             `json:"amount_cents,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;autoCreateTime" json:"created_at"`
}

type RewardStatus string

const (
	RewardStatusPending RewardStatus = "pending"
	RewardStatusIssued  RewardStatus = "issued"
)

// 紹介報酬。order_id はユニークで、同じ注文から報酬は1件だけ。
type ReferralReward struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64        `gorm:"not null;index" json:"user_id"`
	Code        string       `gorm:"type:varchar(64);not null;index" json:"code"`
	OrderID     int64        `gorm:"not null;uniqueIndex" json:"order_id"`
	AmountCents int64        `gorm:"not null" json:"amount_cents"`
	Status      RewardStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;autoCreateTime" json:"created_at"`
}
