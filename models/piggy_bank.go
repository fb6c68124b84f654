package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PiggyStatus статус копилки
type PiggyStatus string

const (
	PiggyStatusActive  PiggyStatus = "ACTIVE"
	PiggyStatusDeleted PiggyStatus = "DELETED"
)

// PiggyDirection направление перевода копилки
type PiggyDirection string

const (
	DirectionToPiggy   PiggyDirection = "TO_PIGGY"
	DirectionFromPiggy PiggyDirection = "FROM_PIGGY"
)

// PiggyBank копилка пользователя. CurrentAmount это кэш, который
// пересчитывается из piggy_transfers после каждого перевода.
type PiggyBank struct {
	PiggyID       string              `gorm:"column:piggy_id;primaryKey;size:16" json:"piggy_id"`
	UserID        string              `gorm:"column:user_id;not null;size:32;index" json:"user_id"`
	Name          string              `gorm:"column:name;not null;size:100" json:"name"`
	TargetAmount  decimal.NullDecimal `gorm:"column:target_amount;type:decimal(20,2)" json:"target_amount"`
	CurrentAmount decimal.Decimal     `gorm:"column:current_amount;type:decimal(20,2);not null;default:0" json:"current_amount"`
	Status        PiggyStatus         `gorm:"column:status;not null;size:10;default:ACTIVE" json:"status"`
	CreatedAt     time.Time           `gorm:"column:created_at" json:"created_at"`
}

func (PiggyBank) TableName() string {
	return "piggy_banks"
}

// TargetReached true, если у копилки есть цель и она достигнута
func (p PiggyBank) TargetReached() bool {
	return p.TargetAmount.Valid && p.TargetAmount.Decimal.IsPositive() &&
		p.CurrentAmount.GreaterThanOrEqual(p.TargetAmount.Decimal)
}

// PiggyTransfer неизменяемая запись движения средств копилки
type PiggyTransfer struct {
	TransferID string          `gorm:"column:transfer_id;primaryKey;size:16" json:"transfer_id"`
	PiggyID    string          `gorm:"column:piggy_id;not null;size:16;index" json:"piggy_id"`
	AccountID  string          `gorm:"column:account_id;not null;size:16" json:"account_id"`
	Date       time.Time       `gorm:"column:date;not null" json:"date"`
	Amount     decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Direction  PiggyDirection  `gorm:"column:direction;not null;size:10" json:"direction"`
	Note       *string         `gorm:"column:note;size:255" json:"note,omitempty"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"created_at"`

	Piggy   *PiggyBank `gorm:"foreignKey:PiggyID;references:PiggyID" json:"-"`
	Account *Account   `gorm:"foreignKey:AccountID;references:AccountID" json:"-"`
}

func (PiggyTransfer) TableName() string {
	return "piggy_transfers"
}
