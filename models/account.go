package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account банковский счет пользователя. Balance является накопительным итогом
// по всем транзакциям счета и меняется только вместе с их записью.
type Account struct {
	AccountID string          `gorm:"column:account_id;primaryKey;size:16" json:"account_id"`
	UserID    string          `gorm:"column:user_id;not null;size:32;index" json:"user_id"`
	IBAN      string          `gorm:"column:iban;size:34" json:"iban"`
	Name      string          `gorm:"column:name;not null;size:100" json:"name"`
	Currency  string          `gorm:"column:currency;not null;size:3;default:EUR" json:"currency"`
	Balance   decimal.Decimal `gorm:"column:balance;type:decimal(20,2);not null;default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
