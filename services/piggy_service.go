package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"piggybank/models"
	"piggybank/utils"
)

// CreatePiggyRequest данные для создания копилки
type CreatePiggyRequest struct {
	UserID       string              `json:"-" validate:"required"`
	Name         string              `json:"name" validate:"required,min=1,max=100"`
	TargetAmount decimal.NullDecimal `json:"target_amount" validate:"omitempty,gt=0"`
}

// PiggyTransferRequest данные для перевода между счетом и копилкой
type PiggyTransferRequest struct {
	UserID          string                `json:"-" validate:"required"`
	PiggyID         string                `json:"piggy_id" validate:"required"`
	AccountID       string                `json:"account_id" validate:"required"`
	Amount          decimal.Decimal       `json:"amount" validate:"required,gt=0"`
	Direction       models.PiggyDirection `json:"direction" validate:"required,oneof=TO_PIGGY FROM_PIGGY"`
	Note            *string               `json:"note" validate:"omitempty,max=255"`
	MirrorToAccount bool                  `json:"create_account_tx"`
	Date            string                `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// DeletePiggyRequest данные для закрытия копилки
type DeletePiggyRequest struct {
	UserID         string `json:"-" validate:"required"`
	PiggyID        string `json:"piggy_id" validate:"required"`
	DrainAccountID string `json:"account_id"`
}

// PiggyService реализует леджер копилок: баланс всегда выводится из
// истории переводов, а current_amount лишь кэш этого значения
type PiggyService struct {
	db            *gorm.DB
	validator     *validator.Validate
	notifications *NotificationService
}

// NewPiggyService создает новый экземпляр PiggyService
func NewPiggyService(db *gorm.DB, notifications *NotificationService) *PiggyService {
	return &PiggyService{
		db:            db,
		validator:     newValidator(),
		notifications: notifications,
	}
}

// Create создает новую копилку с нулевым балансом
func (s *PiggyService) Create(ctx context.Context, req CreatePiggyRequest) (*models.PiggyBank, error) {
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}
	if req.TargetAmount.Valid {
		req.TargetAmount.Decimal = req.TargetAmount.Decimal.Round(2)
	}

	piggy := &models.PiggyBank{
		UserID:        req.UserID,
		Name:          req.Name,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: decimal.Zero,
		Status:        models.PiggyStatusActive,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := NextID(tx, PrefixPiggy)
		if err != nil {
			return err
		}
		piggy.PiggyID = id
		return tx.Create(piggy).Error
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать копилку: %w", err)
	}

	utils.LogInfo("создана копилка %s пользователя %s", piggy.PiggyID, piggy.UserID)
	return piggy, nil
}

// List возвращает активные копилки пользователя
func (s *PiggyService) List(ctx context.Context, userID string) ([]models.PiggyBank, error) {
	var piggies []models.PiggyBank
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, models.PiggyStatusDeleted).
		Order("created_at ASC").Order("piggy_id ASC").
		Find(&piggies).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении копилок: %w", err)
	}
	return piggies, nil
}

// Get возвращает копилку пользователя
func (s *PiggyService) Get(ctx context.Context, userID, piggyID string) (*models.PiggyBank, error) {
	var piggy models.PiggyBank
	err := s.db.WithContext(ctx).Where("piggy_id = ? AND user_id = ?", piggyID, userID).First(&piggy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: копилка %s", ErrNotFound, piggyID)
		}
		return nil, fmt.Errorf("ошибка при поиске копилки: %w", err)
	}
	return &piggy, nil
}

// BalanceOf пересчитывает баланс копилки по истории переводов
func (s *PiggyService) BalanceOf(ctx context.Context, userID, piggyID string) (decimal.Decimal, error) {
	if _, err := s.Get(ctx, userID, piggyID); err != nil {
		return decimal.Zero, err
	}
	return balanceOf(s.db.WithContext(ctx), piggyID)
}

// Recalculate записывает фактический баланс в current_amount
func (s *PiggyService) Recalculate(ctx context.Context, piggyID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		piggy, err := lockPiggy(tx, piggyID)
		if err != nil {
			return err
		}
		if err := recalculate(tx, piggy); err != nil {
			return err
		}
		balance = piggy.CurrentAmount
		return nil
	})
	return balance, err
}

// RecalculateAll пересчитывает кэш всех копилок и возвращает число
// копилок, у которых значение изменилось
func (s *PiggyService) RecalculateAll(ctx context.Context) (int, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.PiggyBank{}).Order("piggy_id").Pluck("piggy_id", &ids).Error; err != nil {
		return 0, fmt.Errorf("ошибка при получении копилок: %w", err)
	}

	changed := 0
	for _, id := range ids {
		var before models.PiggyBank
		if err := s.db.WithContext(ctx).Where("piggy_id = ?", id).First(&before).Error; err != nil {
			return changed, err
		}
		after, err := s.Recalculate(ctx, id)
		if err != nil {
			return changed, err
		}
		if !after.Equal(before.CurrentAmount) {
			utils.LogInfo("копилка %s: %s -> %s", id, before.CurrentAmount, after)
			changed++
		}
	}
	return changed, nil
}

// Transfer переводит средства между счетом и копилкой. Вывод из копилки
// больше ее баланса отклоняется без каких-либо записей.
func (s *PiggyService) Transfer(ctx context.Context, req PiggyTransferRequest) (*models.PiggyTransfer, error) {
	start := time.Now()
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}
	amount, err := normalizeAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	var transfer *models.PiggyTransfer
	var piggy *models.PiggyBank
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		piggy, err = lockOwnedPiggy(tx, req.UserID, req.PiggyID)
		if err != nil {
			return err
		}
		account, err := lockOwnedAccount(tx, req.UserID, req.AccountID)
		if err != nil {
			return err
		}
		transfer, err = transferTx(tx, piggy, account, amount, req.Direction, req.Note, req.MirrorToAccount, date)
		return err
	})
	utils.LogOperation("piggy.transfer", start, err)
	if err != nil {
		return nil, err
	}

	s.syncTargetAlert(ctx, piggy)
	return transfer, nil
}

// Delete закрывает копилку. Положительный остаток сначала возвращается
// на указанный счет отдельным переводом FROM_PIGGY.
func (s *PiggyService) Delete(ctx context.Context, req DeletePiggyRequest) error {
	start := time.Now()
	if err := validateRequest(s.validator, req); err != nil {
		return err
	}

	var piggy *models.PiggyBank
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		piggy, err = lockOwnedPiggy(tx, req.UserID, req.PiggyID)
		if err != nil {
			return err
		}

		balance, err := balanceOf(tx, piggy.PiggyID)
		if err != nil {
			return err
		}
		if balance.IsPositive() {
			if req.DrainAccountID == "" {
				return ErrMissingDrainTarget
			}
			account, err := lockOwnedAccount(tx, req.UserID, req.DrainAccountID)
			if err != nil {
				return err
			}
			note := piggyClosureNote
			if _, err := transferTx(tx, piggy, account, balance, models.DirectionFromPiggy, &note, true, today()); err != nil {
				return err
			}
		}

		piggy.Status = models.PiggyStatusDeleted
		return tx.Model(piggy).Update("status", models.PiggyStatusDeleted).Error
	})
	utils.LogOperation("piggy.delete", start, err)
	if err != nil {
		return err
	}

	s.syncTargetAlert(ctx, piggy)
	return nil
}

// syncTargetAlert поднимает уведомление о достижении цели или снимает его
func (s *PiggyService) syncTargetAlert(ctx context.Context, piggy *models.PiggyBank) {
	if s.notifications == nil || piggy == nil {
		return
	}
	key := "piggy:target:" + piggy.PiggyID

	if piggy.Status == models.PiggyStatusActive && piggy.TargetReached() {
		body := fmt.Sprintf("%s reached its target of %s.", piggy.Name, piggy.TargetAmount.Decimal.StringFixed(2))
		_, err := s.notifications.Raise(ctx, RaiseRequest{
			UserID:    piggy.UserID,
			Type:      models.NotificationTypePiggyTarget,
			Title:     "Savings target reached",
			Body:      &body,
			DedupeKey: &key,
			Payload: models.Payload{
				"piggy_id": models.String(piggy.PiggyID),
				"target":   models.Number(piggy.TargetAmount.Decimal),
				"current":  models.Number(piggy.CurrentAmount),
			},
		})
		if err != nil {
			utils.LogError("не удалось создать уведомление для копилки %s: %v", piggy.PiggyID, err)
		}
		return
	}

	if err := s.notifications.Clear(ctx, piggy.UserID, key); err != nil {
		utils.LogError("не удалось сбросить уведомление для копилки %s: %v", piggy.PiggyID, err)
	}
}

// transferTx выполняет перевод внутри открытой транзакции. Копилка и счет
// должны быть заблокированы вызывающим кодом.
func transferTx(tx *gorm.DB, piggy *models.PiggyBank, account *models.Account, amount decimal.Decimal,
	direction models.PiggyDirection, note *string, mirror bool, date time.Time) (*models.PiggyTransfer, error) {

	current, err := balanceOf(tx, piggy.PiggyID)
	if err != nil {
		return nil, err
	}

	var projected decimal.Decimal
	switch direction {
	case models.DirectionToPiggy:
		projected = current.Add(amount)
	case models.DirectionFromPiggy:
		projected = current.Sub(amount)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	if projected.IsNegative() {
		return nil, fmt.Errorf("%w: в копилке %s, запрошено %s", ErrInsufficientFunds, current.StringFixed(2), amount.StringFixed(2))
	}

	id, err := NextID(tx, PrefixPiggyTransfer)
	if err != nil {
		return nil, err
	}
	transfer := &models.PiggyTransfer{
		TransferID: id,
		PiggyID:    piggy.PiggyID,
		AccountID:  account.AccountID,
		Date:       date,
		Amount:     amount,
		Direction:  direction,
		Note:       note,
	}
	if err := tx.Create(transfer).Error; err != nil {
		return nil, fmt.Errorf("ошибка при сохранении перевода копилки: %w", err)
	}

	if err := recalculate(tx, piggy); err != nil {
		return nil, err
	}

	if mirror {
		txn := &models.Transaction{
			PiggyID:  &piggy.PiggyID,
			Date:     date,
			Category: CategorySavings,
		}
		if direction == models.DirectionToPiggy {
			txn.Type = models.TransactionTypeDebit
			txn.Amount = amount.Neg()
			txn.Description = descToPiggy
		} else {
			txn.Type = models.TransactionTypeCredit
			txn.Amount = amount
			txn.Description = descFromPiggy
		}
		if err := postTransaction(tx, account, txn); err != nil {
			return nil, err
		}
	}

	return transfer, nil
}

// balanceOf Σ TO_PIGGY − Σ FROM_PIGGY по истории переводов копилки
func balanceOf(db *gorm.DB, piggyID string) (decimal.Decimal, error) {
	var transfers []models.PiggyTransfer
	if err := db.Select("amount", "direction").Where("piggy_id = ?", piggyID).Find(&transfers).Error; err != nil {
		return decimal.Zero, fmt.Errorf("ошибка при расчете баланса копилки: %w", err)
	}
	return sumTransfers(transfers), nil
}

func sumTransfers(transfers []models.PiggyTransfer) decimal.Decimal {
	total := decimal.Zero
	for _, t := range transfers {
		switch t.Direction {
		case models.DirectionToPiggy:
			total = total.Add(t.Amount)
		case models.DirectionFromPiggy:
			total = total.Sub(t.Amount)
		}
	}
	return total
}

// recalculate сохраняет фактический баланс в кэш копилки
func recalculate(tx *gorm.DB, piggy *models.PiggyBank) error {
	balance, err := balanceOf(tx, piggy.PiggyID)
	if err != nil {
		return err
	}
	piggy.CurrentAmount = balance
	if err := tx.Model(piggy).Update("current_amount", balance).Error; err != nil {
		return fmt.Errorf("ошибка при обновлении копилки: %w", err)
	}
	return nil
}

func lockPiggy(tx *gorm.DB, piggyID string) (*models.PiggyBank, error) {
	var piggy models.PiggyBank
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("piggy_id = ?", piggyID).First(&piggy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: копилка %s", ErrNotFound, piggyID)
		}
		return nil, fmt.Errorf("ошибка при поиске копилки: %w", err)
	}
	return &piggy, nil
}

// lockOwnedPiggy блокирует активную копилку пользователя
func lockOwnedPiggy(tx *gorm.DB, userID, piggyID string) (*models.PiggyBank, error) {
	piggy, err := lockPiggy(tx, piggyID)
	if err != nil {
		return nil, err
	}
	if piggy.UserID != userID || piggy.Status == models.PiggyStatusDeleted {
		return nil, fmt.Errorf("%w: копилка %s", ErrNotFound, piggyID)
	}
	return piggy, nil
}
