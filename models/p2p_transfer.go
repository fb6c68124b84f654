package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// P2PTransfer мгновенный перевод между пользователями. Всегда создается
// вместе с двумя транзакциями: DEBIT у отправителя и CREDIT у получателя.
type P2PTransfer struct {
	P2PID         string          `gorm:"column:p2p_id;primaryKey;size:16" json:"p2p_id"`
	FromUserID    string          `gorm:"column:from_user_id;not null;size:32;index" json:"from_user_id"`
	ToUserID      string          `gorm:"column:to_user_id;not null;size:32;index" json:"to_user_id"`
	FromAccountID string          `gorm:"column:from_account_id;not null;size:16" json:"from_account_id"`
	ToAccountID   string          `gorm:"column:to_account_id;not null;size:16" json:"to_account_id"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Message       *string         `gorm:"column:message;size:255" json:"message,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`

	FromAccount *Account `gorm:"foreignKey:FromAccountID;references:AccountID" json:"-"`
	ToAccount   *Account `gorm:"foreignKey:ToAccountID;references:AccountID" json:"-"`
}

func (P2PTransfer) TableName() string {
	return "p2p_transfers"
}
