package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"piggybank/models"
	"piggybank/utils"
)

// SendRequest данные мгновенного перевода контакту
type SendRequest struct {
	UserID        string          `json:"-" validate:"required"`
	SenderName    string          `json:"-"`
	FromAccountID string          `json:"from_account_id" validate:"required"`
	ContactID     string          `json:"contact_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Message       *string         `json:"message" validate:"omitempty,max=255"`
}

// instantTransfer параметры одной двусторонней проводки
type instantTransfer struct {
	fromUserID    string
	toUserID      string
	fromAccountID string
	toAccountID   string
	amount        decimal.Decimal
	message       *string
	fromName      string
	toName        string
}

// P2PService выполняет мгновенные переводы между пользователями
type P2PService struct {
	db            *gorm.DB
	validator     *validator.Validate
	contacts      *ContactService
	notifications *NotificationService
}

// NewP2PService создает новый экземпляр P2PService
func NewP2PService(db *gorm.DB, contacts *ContactService, notifications *NotificationService) *P2PService {
	return &P2PService{
		db:            db,
		validator:     newValidator(),
		contacts:      contacts,
		notifications: notifications,
	}
}

// Send переводит сумму с счета пользователя на счет внутреннего контакта
// и уведомляет обе стороны
func (s *P2PService) Send(ctx context.Context, req SendRequest) (*models.P2PTransfer, error) {
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}

	contact, err := s.contacts.Get(ctx, req.UserID, req.ContactID)
	if err != nil {
		return nil, err
	}
	if !contact.Internal() {
		return nil, fmt.Errorf("%w: контакт %s не является внутренним", ErrInvalidInput, contact.ContactID)
	}
	if *contact.TargetUserID == req.UserID {
		return nil, ErrSameAccount
	}

	p2p, err := s.instant(ctx, instantTransfer{
		fromUserID:    req.UserID,
		toUserID:      *contact.TargetUserID,
		fromAccountID: req.FromAccountID,
		toAccountID:   *contact.TargetAccountID,
		amount:        req.Amount,
		message:       req.Message,
		fromName:      req.SenderName,
		toName:        contact.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	s.notifyTransfer(ctx, p2p, "p2p:sent:", "p2p:recv:", "", contact.DisplayName, nameOrUser(req.SenderName, req.UserID), models.Payload{
		"contact_id": models.String(contact.ContactID),
	})
	return p2p, nil
}

// instant выполняет перевод одной транзакцией хранилища: DEBIT отправителя,
// CREDIT получателя и запись P2P либо сохраняются вместе, либо не сохраняется ничего
func (s *P2PService) instant(ctx context.Context, p instantTransfer) (*models.P2PTransfer, error) {
	start := time.Now()
	amount, err := normalizeAmount(p.amount)
	if err != nil {
		return nil, err
	}
	if p.fromAccountID == p.toAccountID {
		return nil, ErrSameAccount
	}

	descOut := "P2P to " + nameOrUser(p.toName, p.toUserID)
	descIn := "P2P from " + nameOrUser(p.fromName, p.fromUserID)
	if p.message != nil && *p.message != "" {
		descOut += ": " + *p.message
		descIn += ": " + *p.message
	}

	var transfer *models.P2PTransfer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		from, to, err := lockAccountPair(tx, p.fromAccountID, p.toAccountID)
		if err != nil {
			return err
		}
		if from.UserID != p.fromUserID {
			return fmt.Errorf("%w: счет %s", ErrNotFound, from.AccountID)
		}
		if to.UserID != p.toUserID {
			return fmt.Errorf("%w: счет %s", ErrNotFound, to.AccountID)
		}
		if from.Currency != to.Currency {
			return fmt.Errorf("%w: %s и %s", ErrCurrencyMismatch, from.Currency, to.Currency)
		}
		if from.Balance.LessThan(amount) {
			return fmt.Errorf("%w: на счете %s, требуется %s", ErrInsufficientFunds, from.Balance.StringFixed(2), amount.StringFixed(2))
		}

		p2pID, err := NextID(tx, PrefixP2P)
		if err != nil {
			return err
		}
		date := today()

		debit := &models.Transaction{
			Date:        date,
			Description: descOut,
			Category:    CategoryP2P,
			Type:        models.TransactionTypeDebit,
			Amount:      amount.Neg(),
		}
		if err := postTransaction(tx, from, debit); err != nil {
			return err
		}

		credit := &models.Transaction{
			Date:        date,
			Description: descIn,
			Category:    CategoryP2P,
			Type:        models.TransactionTypeCredit,
			Amount:      amount,
		}
		if err := postTransaction(tx, to, credit); err != nil {
			return err
		}

		transfer = &models.P2PTransfer{
			P2PID:         p2pID,
			FromUserID:    p.fromUserID,
			ToUserID:      p.toUserID,
			FromAccountID: from.AccountID,
			ToAccountID:   to.AccountID,
			Amount:        amount,
			Message:       p.message,
		}
		if err := tx.Create(transfer).Error; err != nil {
			return fmt.Errorf("ошибка при сохранении перевода: %w", err)
		}
		return nil
	})
	utils.LogOperation("p2p.instant", start, err)
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// notifyTransfer уведомляет отправителя и получателя о переводе.
// Ошибки уведомлений не отменяют уже выполненный перевод.
func (s *P2PService) notifyTransfer(ctx context.Context, p2p *models.P2PTransfer, sentPrefix, recvPrefix, note, toName, fromName string, extra models.Payload) {
	if s.notifications == nil {
		return
	}
	currency := s.accountCurrency(ctx, p2p.FromAccountID)
	shown := displayAmount(p2p.Amount, currency)

	sentPayload := models.Payload{
		"p2p_id": models.String(p2p.P2PID),
		"amount": models.Number(p2p.Amount),
	}
	for k, v := range extra {
		sentPayload[k] = v
	}
	sentBody := fmt.Sprintf("You sent %s to %s%s.", shown, toName, note)
	sentKey := sentPrefix + p2p.P2PID
	if _, err := s.notifications.Raise(ctx, RaiseRequest{
		UserID:    p2p.FromUserID,
		Type:      models.NotificationTypeP2PSent,
		Title:     "Transfer sent",
		Body:      &sentBody,
		DedupeKey: &sentKey,
		Payload:   sentPayload,
	}); err != nil {
		utils.LogError("не удалось уведомить отправителя перевода %s: %v", p2p.P2PID, err)
	}

	if s.notifications.settings != nil {
		if _, err := s.notifications.settings.Get(ctx, p2p.ToUserID); err != nil {
			utils.LogError("не удалось создать настройки получателя %s: %v", p2p.ToUserID, err)
		}
	}

	recvPayload := models.Payload{
		"p2p_id":    models.String(p2p.P2PID),
		"amount":    models.Number(p2p.Amount),
		"from_user": models.String(p2p.FromUserID),
	}
	if group, ok := extra["group_id"]; ok {
		recvPayload["group_id"] = group
	}
	recvBody := fmt.Sprintf("%s sent you %s%s.", fromName, shown, note)
	recvKey := recvPrefix + p2p.P2PID
	if _, err := s.notifications.Raise(ctx, RaiseRequest{
		UserID:    p2p.ToUserID,
		Type:      models.NotificationTypeP2PReceived,
		Title:     "You received a transfer",
		Body:      &recvBody,
		DedupeKey: &recvKey,
		Payload:   recvPayload,
	}); err != nil {
		utils.LogError("не удалось уведомить получателя перевода %s: %v", p2p.P2PID, err)
	}
}

func (s *P2PService) accountCurrency(ctx context.Context, accountID string) string {
	var account models.Account
	if err := s.db.WithContext(ctx).Select("currency").Where("account_id = ?", accountID).First(&account).Error; err != nil {
		return ""
	}
	return account.Currency
}

// lockAccountPair блокирует два счета в порядке идентификаторов,
// чтобы встречные переводы не взаимоблокировались
func lockAccountPair(tx *gorm.DB, fromID, toID string) (*models.Account, *models.Account, error) {
	firstID, secondID := fromID, toID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := lockAccount(tx, firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := lockAccount(tx, secondID)
	if err != nil {
		return nil, nil, err
	}

	if first.AccountID == fromID {
		return first, second, nil
	}
	return second, first, nil
}

func nameOrUser(name, userID string) string {
	if name != "" {
		return name
	}
	return "user " + userID
}
