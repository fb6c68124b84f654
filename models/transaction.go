package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType представляет тип транзакции
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "DEBIT"
	TransactionTypeCredit TransactionType = "CREDIT"
)

// Transaction запись в истории счета. Amount отрицательный для DEBIT и
// положительный для CREDIT. PiggyID заполнен у зеркальных записей
// копилки, такие записи не считаются доходом или расходом.
type Transaction struct {
	TransactionID string          `gorm:"column:transaction_id;primaryKey;size:16" json:"transaction_id"`
	AccountID     string          `gorm:"column:account_id;not null;size:16;index" json:"account_id"`
	PiggyID       *string         `gorm:"column:piggy_id;size:16;index" json:"piggy_id,omitempty"`
	Date          time.Time       `gorm:"column:date;not null;index" json:"date"`
	Description   string          `gorm:"column:description;size:255" json:"description"`
	Category      string          `gorm:"column:category;size:64" json:"category"`
	Type          TransactionType `gorm:"column:type;not null;size:6" json:"type"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`

	Account *Account   `gorm:"foreignKey:AccountID;references:AccountID" json:"-"`
	Piggy   *PiggyBank `gorm:"foreignKey:PiggyID;references:PiggyID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}
