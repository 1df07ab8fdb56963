package model

import "time"

// 1ユーザーにつきカートは1つ。
// チェックアウト時は明細だけ空にして、カート自体は消さない。
type Cart struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex" json:"user_id"`
	Currency  string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
