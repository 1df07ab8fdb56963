package model

import "time"

type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusSentToBrand     OrderStatus = "sent_to_brand"
	OrderStatusFulfilled       OrderStatus = "fulfilled"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusReturnRequested OrderStatus = "return_requested"
	OrderStatusClosed          OrderStatus = "closed"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// 遷移表。ここに無い組み合わせは全部拒否。
// cancelled へ行けるのは created / paid だけ。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:         {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:            {OrderStatusSentToBrand, OrderStatusCancelled},
	OrderStatusSentToBrand:     {OrderStatusFulfilled},
	OrderStatusFulfilled:       {OrderStatusDelivered},
	OrderStatusDelivered:       {OrderStatusReturnRequested, OrderStatusClosed},
	OrderStatusReturnRequested: {OrderStatusClosed},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusCreated, OrderStatusPaid, OrderStatusSentToBrand, OrderStatusFulfilled,
		OrderStatusDelivered, OrderStatusReturnRequested, OrderStatusClosed, OrderStatusCancelled:
		return true
	}
	return false
}

// 金額は全部セント（整数）。作成時に一度だけ計算して以後変えない。
type Order struct {
	ID                int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64       `gorm:"not null;index" json:"user_id"`
	Status            OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	SubtotalCents     int64       `gorm:"not null" json:"subtotal_cents"`
	TaxCents          int64       `gorm:"not null" json:"tax_cents"`
	ShippingCents     int64       `gorm:"not null" json:"shipping_cents"`
	TotalCents        int64       `gorm:"not null" json:"total_cents"`
	Currency          string      `gorm:"type:varchar(3);not null" json:"currency"`
	ShippingAddressID int64       `gorm:"not null" json:"shipping_address_id"`
	BillingAddressID  int64       `gorm:"not null" json:"billing_address_id"`
	PaymentRef        string      `gorm:"type:varchar(255)" json:"payment_ref"`
	ReferralCode      string      `gorm:"type:varchar(64);index" json:"referral_code,omitempty"`
	IdempotencyKey    string      `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	//同じキーで中身の違うリクエストを見分けるためのハッシュ
	RequestFingerprint string    `gorm:"type:varchar(64)" json:"-"`
	TrackingNumber     string    `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	CreatedAt          time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
