package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"piggybank/database"
	"piggybank/models"
)

// newTestDB отдельная in-memory база SQLite на каждый тест
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := database.OpenSQLite(dsn, false)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type sentMail struct {
	to, title, body string
}

// stubMailer запоминает отправленные письма
type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *stubMailer) SendNotification(to, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, title: title, body: body})
	return nil
}

func (m *stubMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// fixture все сервисы поверх одной тестовой базы
type fixture struct {
	ctx           context.Context
	db            *gorm.DB
	mailer        *stubMailer
	settings      *SettingsService
	notifications *NotificationService
	accounts      *AccountService
	piggies       *PiggyService
	contacts      *ContactService
	p2p           *P2PService
	splits        *SplitService
	reports       *ReportService
	statements    *StatementService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{ctx: context.Background(), db: db, mailer: &stubMailer{}}
	f.settings = NewSettingsService(db)
	f.notifications = NewNotificationService(db, f.settings, f.mailer, 10)
	f.accounts = NewAccountService(db, "EUR")
	f.piggies = NewPiggyService(db, f.notifications)
	f.contacts = NewContactService(db)
	f.p2p = NewP2PService(db, f.contacts, f.notifications)
	f.splits = NewSplitService(db, f.contacts, f.p2p, f.notifications, f.settings)
	f.reports = NewReportService(db, 3)
	f.statements = NewStatementService(db, f.accounts)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// openAccount создает счет и, если funded не пуст, пополняет его
func (f *fixture) openAccount(t *testing.T, userID, currency, funded string) *models.Account {
	t.Helper()
	account, err := f.accounts.Create(f.ctx, CreateAccountRequest{UserID: userID, Name: "Main " + userID, Currency: currency})
	if err != nil {
		t.Fatalf("Create account error = %v", err)
	}
	if funded != "" {
		_, err := f.accounts.Record(f.ctx, RecordTransactionRequest{
			UserID:      userID,
			AccountID:   account.AccountID,
			Type:        models.TransactionTypeCredit,
			Amount:      dec(funded),
			Description: "Salary",
			Category:    "Income",
		})
		if err != nil {
			t.Fatalf("Record funding error = %v", err)
		}
	}
	return f.account(t, account.AccountID)
}

// account перечитывает счет из базы
func (f *fixture) account(t *testing.T, accountID string) *models.Account {
	t.Helper()
	var account models.Account
	if err := f.db.Where("account_id = ?", accountID).First(&account).Error; err != nil {
		t.Fatalf("load account %s: %v", accountID, err)
	}
	return &account
}

// contactFor создает у owner внутренний контакт на счет target
func (f *fixture) contactFor(t *testing.T, ownerUserID, name string, target *models.Account) *models.Contact {
	t.Helper()
	contact, err := f.contacts.Create(f.ctx, CreateContactRequest{
		OwnerUserID:     ownerUserID,
		DisplayName:     name,
		TargetAccountID: &target.AccountID,
	})
	if err != nil {
		t.Fatalf("Create contact error = %v", err)
	}
	return contact
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
