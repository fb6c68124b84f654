package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserSettings персональные настройки пользователя, одна строка на пользователя
type UserSettings struct {
	UserID          string          `gorm:"column:user_id;primaryKey;size:32" json:"user_id"`
	DefaultCurrency string          `gorm:"column:default_currency;not null;size:3;default:EUR" json:"default_currency"`
	DecimalPlaces   int             `gorm:"column:decimal_places;not null;default:2" json:"decimal_places"`
	NotifyThreshold decimal.Decimal `gorm:"column:notify_threshold;type:decimal(20,2);not null;default:1" json:"notify_threshold"`
	Email           string          `gorm:"column:email;size:100" json:"email,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (UserSettings) TableName() string {
	return "user_settings"
}
