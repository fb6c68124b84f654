package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"piggybank/models"
)

// Префиксы идентификаторов
const (
	PrefixAccount       = "ACC"
	PrefixPiggy         = "PIG"
	PrefixPiggyTransfer = "TRP"
	PrefixTransaction   = "TRX"
	PrefixP2P           = "P2P"
	PrefixContact       = "CON"
	PrefixSplitGroup    = "SPG"
	PrefixSplitMember   = "SPM"
	PrefixNotification  = "NOT"
)

// idColumns таблица и колонка, по которым счетчик префикса
// инициализируется из уже существующих данных
var idColumns = map[string][2]string{
	PrefixAccount:       {"accounts", "account_id"},
	PrefixPiggy:         {"piggy_banks", "piggy_id"},
	PrefixPiggyTransfer: {"piggy_transfers", "transfer_id"},
	PrefixTransaction:   {"transactions", "transaction_id"},
	PrefixP2P:           {"p2p_transfers", "p2p_id"},
	PrefixContact:       {"contacts", "contact_id"},
	PrefixSplitGroup:    {"split_groups", "group_id"},
	PrefixSplitMember:   {"split_group_members", "member_id"},
	PrefixNotification:  {"notifications", "notification_id"},
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// NextID выделяет следующий идентификатор для префикса.
// Вызывается внутри транзакции tx: строка счетчика блокируется до ее завершения,
// поэтому параллельные писатели получают разные значения.
func NextID(tx *gorm.DB, prefix string) (string, error) {
	var seq models.IDSequence
	err := lockSequence(tx, prefix, &seq)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		last, scanErr := lastExistingValue(tx, prefix)
		if scanErr != nil {
			return "", scanErr
		}
		seed := models.IDSequence{Prefix: prefix, LastValue: last}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return "", fmt.Errorf("ошибка создания счетчика %s: %w", prefix, err)
		}
		err = lockSequence(tx, prefix, &seq)
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения счетчика %s: %w", prefix, err)
	}

	seq.LastValue++
	if err := tx.Save(&seq).Error; err != nil {
		return "", fmt.Errorf("ошибка обновления счетчика %s: %w", prefix, err)
	}
	return formatID(prefix, seq.LastValue), nil
}

func lockSequence(tx *gorm.DB, prefix string, seq *models.IDSequence) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ?", prefix).
		First(seq).Error
}

// lastExistingValue находит идентификатор с самым длинным, а затем
// самым большим числовым суффиксом (PIG1000 после PIG999)
func lastExistingValue(tx *gorm.DB, prefix string) (int64, error) {
	target, ok := idColumns[prefix]
	if !ok {
		return 0, nil
	}
	table, column := target[0], target[1]

	var ids []string
	err := tx.Table(table).
		Where(column+" LIKE ?", prefix+"%").
		Order("LENGTH(" + column + ") DESC").
		Order(column + " DESC").
		Limit(1).
		Pluck(column, &ids).Error
	if err != nil {
		return 0, fmt.Errorf("ошибка поиска последнего идентификатора %s: %w", prefix, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return idSuffix(ids[0]), nil
}

// idSuffix числовой хвост идентификатора, 0 если его нет
func idSuffix(id string) int64 {
	m := trailingDigits.FindString(id)
	if m == "" {
		return 0
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// formatID дополняет номер нулями минимум до трех цифр
func formatID(prefix string, n int64) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}
