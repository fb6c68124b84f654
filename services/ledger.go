package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"piggybank/models"
)

const dateLayout = "2006-01-02"

// Категории и описания проводок, которые создает сам леджер
const (
	CategorySavings = "Savings"
	CategoryP2P     = "P2P"

	descToPiggy      = "Transfer to piggy bank"
	descFromPiggy    = "Withdrawal from piggy bank"
	piggyClosureNote = "Piggy bank closure (funds returned)"
)

// lockAccount читает счет с блокировкой строки до конца транзакции
func lockAccount(tx *gorm.DB, accountID string) (*models.Account, error) {
	var account models.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", accountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: счет %s", ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("ошибка при поиске счета: %w", err)
	}
	return &account, nil
}

// lockOwnedAccount как lockAccount, но чужой счет считается несуществующим
func lockOwnedAccount(tx *gorm.DB, userID, accountID string) (*models.Account, error) {
	account, err := lockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, fmt.Errorf("%w: счет %s", ErrNotFound, accountID)
	}
	return account, nil
}

// postTransaction выделяет идентификатор, сохраняет транзакцию и применяет
// ее сумму к кэшированному балансу счета. Счет должен быть заблокирован.
func postTransaction(tx *gorm.DB, account *models.Account, txn *models.Transaction) error {
	id, err := NextID(tx, PrefixTransaction)
	if err != nil {
		return err
	}
	txn.TransactionID = id
	txn.AccountID = account.AccountID

	if err := tx.Create(txn).Error; err != nil {
		return fmt.Errorf("ошибка при сохранении транзакции: %w", err)
	}

	account.Balance = account.Balance.Add(txn.Amount)
	if err := tx.Model(account).Update("balance", account.Balance).Error; err != nil {
		return fmt.Errorf("ошибка при обновлении баланса: %w", err)
	}
	return nil
}

// today текущая дата в UTC без времени
func today() time.Time {
	return truncateDay(time.Now().UTC())
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseDate разбирает дату YYYY-MM-DD, пустая строка означает сегодня
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return today(), nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: дата %q", ErrInvalidInput, value)
	}
	return t.UTC(), nil
}

// normalizeAmount округляет сумму до центов и проверяет, что она положительна
// и помещается в int64 центов
func normalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	rounded := amount.Round(2)
	if !rounded.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: сумма должна быть больше 0", ErrInvalidAmount)
	}
	if _, err := toCents(rounded); err != nil {
		return decimal.Zero, err
	}
	return rounded, nil
}

// toCents переводит сумму в целые центы с округлением половины вверх.
// Суммы, которые не помещаются в int64 центов, отклоняются.
func toCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Shift(2).Round(0)
	if !cents.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: сумма %s слишком велика", ErrInvalidAmount, amount.StringFixed(2))
	}
	return cents.IntPart(), nil
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// displayAmount форматирует сумму для текста уведомлений ("€10.00")
func displayAmount(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = money.EUR
	}
	cents, err := toCents(amount)
	if err != nil {
		return currency + " " + amount.StringFixed(2)
	}
	return money.New(cents, currency).Display()
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
