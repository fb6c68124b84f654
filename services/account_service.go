package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"piggybank/models"
	"piggybank/utils"
)

// CreateAccountRequest данные для создания счета
type CreateAccountRequest struct {
	UserID   string `json:"-" validate:"required"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	IBAN     string `json:"iban" validate:"omitempty,max=34"`
	Currency string `json:"currency" validate:"omitempty,oneof=EUR USD GBP"`
}

// RecordTransactionRequest обычная операция по счету (не копилка и не P2P)
type RecordTransactionRequest struct {
	UserID      string                 `json:"-" validate:"required"`
	AccountID   string                 `json:"account_id" validate:"required"`
	Type        models.TransactionType `json:"type" validate:"required,oneof=DEBIT CREDIT"`
	Amount      decimal.Decimal        `json:"amount" validate:"required,gt=0"`
	Description string                 `json:"description" validate:"max=255"`
	Category    string                 `json:"category" validate:"max=64"`
	Date        string                 `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// TransactionFilter параметры поиска транзакций
type TransactionFilter struct {
	UserID    string
	AccountID string
	Query     string
	Type      string
	DateFrom  string
	DateTo    string
	Sort      string
	Order     string
	Limit     int
	Offset    int
}

// TransactionRow строка выдачи поиска транзакций
type TransactionRow struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	AccountName   string          `json:"account_name"`
	PiggyID       *string         `json:"piggy_id,omitempty"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
}

// BalanceMismatch счет, кэш баланса которого расходится с суммой транзакций
type BalanceMismatch struct {
	AccountID string
	Cached    decimal.Decimal
	Computed  decimal.Decimal
}

// сортировка только по разрешенным колонкам
var transactionSortColumns = map[string]string{
	"date":        "transactions.date",
	"amount":      "transactions.amount",
	"description": "transactions.description",
	"category":    "transactions.category",
}

// AccountService предоставляет методы для работы со счетами
type AccountService struct {
	db              *gorm.DB
	validator       *validator.Validate
	defaultCurrency string
}

// NewAccountService создает новый экземпляр AccountService
func NewAccountService(db *gorm.DB, defaultCurrency string) *AccountService {
	if defaultCurrency == "" {
		defaultCurrency = DefaultSettingsCurrency
	}
	return &AccountService{
		db:              db,
		validator:       newValidator(),
		defaultCurrency: defaultCurrency,
	}
}

// Create создает новый счет с нулевым балансом
func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest) (*models.Account, error) {
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}

	// Устанавливаем значения по умолчанию
	if req.Currency == "" {
		req.Currency = s.defaultCurrency
	}
	if req.IBAN == "" {
		req.IBAN = generateIBAN()
	}

	account := &models.Account{
		UserID:   req.UserID,
		IBAN:     req.IBAN,
		Name:     req.Name,
		Currency: req.Currency,
		Balance:  decimal.Zero,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := NextID(tx, PrefixAccount)
		if err != nil {
			return err
		}
		account.AccountID = id
		return tx.Create(account).Error
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать счет: %w", err)
	}

	utils.LogInfo("создан счет %s пользователя %s", account.AccountID, account.UserID)
	return account, nil
}

// generateIBAN генерирует номер счета в формате IBAN для демо-банка
func generateIBAN() string {
	var number strings.Builder
	number.WriteString("IT60X0542811101")
	for i := 0; i < 12; i++ {
		number.WriteString(strconv.Itoa(rand.Intn(10)))
	}
	return number.String()
}

// GetByID возвращает счет пользователя
func (s *AccountService) GetByID(ctx context.Context, userID, accountID string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("account_id = ? AND user_id = ?", accountID, userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: счет %s", ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("ошибка при поиске счета: %w", err)
	}
	return &account, nil
}

// ListByUser возвращает все счета пользователя
func (s *AccountService) ListByUser(ctx context.Context, userID string) ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("account_id DESC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("ошибка при поиске счетов: %w", err)
	}
	return accounts, nil
}

// Record записывает обычную операцию и атомарно меняет баланс счета
func (s *AccountService) Record(ctx context.Context, req RecordTransactionRequest) (*models.Transaction, error) {
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

	txn := &models.Transaction{
		Date:        date,
		Description: req.Description,
		Category:    req.Category,
		Type:        req.Type,
		Amount:      amount,
	}
	if req.Type == models.TransactionTypeDebit {
		txn.Amount = amount.Neg()
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := lockOwnedAccount(tx, req.UserID, req.AccountID)
		if err != nil {
			return err
		}
		return postTransaction(tx, account, txn)
	})
	utils.LogOperation("account.record", start, err)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ListTransactions ищет транзакции пользователя по фильтру
func (s *AccountService) ListTransactions(ctx context.Context, f TransactionFilter) ([]TransactionRow, error) {
	query := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("transactions.transaction_id, transactions.account_id, accounts.name AS account_name, " +
			"transactions.piggy_id, transactions.date, transactions.description, transactions.category, " +
			"transactions.type, transactions.amount").
		Joins("JOIN accounts ON accounts.account_id = transactions.account_id").
		Where("accounts.user_id = ?", f.UserID)

	if f.AccountID != "" {
		query = query.Where("transactions.account_id = ?", f.AccountID)
	}
	if f.Type == string(models.TransactionTypeDebit) || f.Type == string(models.TransactionTypeCredit) {
		query = query.Where("transactions.type = ?", f.Type)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("(LOWER(transactions.description) LIKE ? OR LOWER(transactions.category) LIKE ?)", like, like)
	}
	if f.DateFrom != "" {
		from, err := time.Parse(dateLayout, f.DateFrom)
		if err != nil {
			return nil, fmt.Errorf("%w: date_from %q", ErrInvalidInput, f.DateFrom)
		}
		query = query.Where("transactions.date >= ?", from)
	}
	if f.DateTo != "" {
		to, err := time.Parse(dateLayout, f.DateTo)
		if err != nil {
			return nil, fmt.Errorf("%w: date_to %q", ErrInvalidInput, f.DateTo)
		}
		query = query.Where("transactions.date < ?", to.AddDate(0, 0, 1))
	}

	sortColumn, ok := transactionSortColumns[strings.ToLower(f.Sort)]
	if !ok {
		sortColumn = transactionSortColumns["date"]
	}
	order := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		order = "ASC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []TransactionRow
	err := query.
		Order(sortColumn + " " + order).
		Order("transactions.created_at DESC").
		Order("transactions.transaction_id DESC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при поиске транзакций: %w", err)
	}
	return rows, nil
}

// Verify сравнивает кэш баланса каждого счета с суммой его транзакций
func (s *AccountService) Verify(ctx context.Context) ([]BalanceMismatch, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).Order("account_id").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении счетов: %w", err)
	}

	var mismatches []BalanceMismatch
	for _, account := range accounts {
		var amounts []decimal.Decimal
		err := s.db.WithContext(ctx).Model(&models.Transaction{}).
			Where("account_id = ?", account.AccountID).
			Pluck("amount", &amounts).Error
		if err != nil {
			return nil, fmt.Errorf("ошибка при получении транзакций %s: %w", account.AccountID, err)
		}

		computed := decimal.Sum(decimal.Zero, amounts...)
		if !computed.Equal(account.Balance) {
			mismatches = append(mismatches, BalanceMismatch{
				AccountID: account.AccountID,
				Cached:    account.Balance,
				Computed:  computed,
			})
		}
	}
	return mismatches, nil
}
