package services

import (
	"errors"
	"strings"
	"testing"

	"piggybank/models"
)

func TestAccountCreateDefaults(t *testing.T) {
	f := newFixture(t)

	account, err := f.accounts.Create(f.ctx, CreateAccountRequest{UserID: "u1", Name: "Everyday"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if account.AccountID != "ACC001" || account.Currency != "EUR" || !account.Balance.IsZero() {
		t.Errorf("account = %+v", account)
	}
	if !strings.HasPrefix(account.IBAN, "IT60") || len(account.IBAN) != 27 {
		t.Errorf("IBAN = %q", account.IBAN)
	}

	if _, err := f.accounts.Create(f.ctx, CreateAccountRequest{UserID: "u1", Name: "X"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Create(short name) error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.accounts.Create(f.ctx, CreateAccountRequest{UserID: "u1", Name: "Yen", Currency: "JPY"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Create(JPY) error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.accounts.GetByID(f.ctx, "u2", account.AccountID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() by other user error = %v, want ErrNotFound", err)
	}
}

func TestAccountRecord(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "u1", "", "100")

	txn, err := f.accounts.Record(f.ctx, RecordTransactionRequest{
		UserID: "u1", AccountID: account.AccountID, Type: models.TransactionTypeDebit,
		Amount: dec("30.255"), Description: "Groceries", Category: "Food", Date: "2024-03-05",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !txn.Amount.Equal(dec("-30.26")) || txn.Date.Format(dateLayout) != "2024-03-05" {
		t.Errorf("transaction = %+v", txn)
	}
	if got := f.account(t, account.AccountID).Balance; !got.Equal(dec("69.74")) {
		t.Errorf("balance = %s, want 69.74", got)
	}

	tests := []struct {
		name    string
		req     RecordTransactionRequest
		wantErr error
	}{
		{"foreign account", RecordTransactionRequest{UserID: "u2", AccountID: account.AccountID, Type: models.TransactionTypeCredit, Amount: dec("1")}, ErrNotFound},
		{"zero", RecordTransactionRequest{UserID: "u1", AccountID: account.AccountID, Type: models.TransactionTypeCredit}, ErrInvalidAmount},
		{"bad type", RecordTransactionRequest{UserID: "u1", AccountID: account.AccountID, Type: "REFUND", Amount: dec("1")}, ErrInvalidInput},
		{"bad date", RecordTransactionRequest{UserID: "u1", AccountID: account.AccountID, Type: models.TransactionTypeCredit, Amount: dec("1"), Date: "05.03.2024"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.accounts.Record(f.ctx, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Record() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccountListTransactions(t *testing.T) {
	f := newFixture(t)
	main := f.openAccount(t, "u1", "", "")
	spare := f.openAccount(t, "u1", "", "")
	foreign := f.openAccount(t, "u2", "", "")

	record := func(account *models.Account, userID string, typ models.TransactionType, amount, desc, category, date string) {
		t.Helper()
		_, err := f.accounts.Record(f.ctx, RecordTransactionRequest{
			UserID: userID, AccountID: account.AccountID, Type: typ, Amount: dec(amount),
			Description: desc, Category: category, Date: date,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	record(main, "u1", models.TransactionTypeCredit, "2000", "Salary March", "Income", "2024-03-01")
	record(main, "u1", models.TransactionTypeDebit, "45.10", "Supermarket", "Food", "2024-03-03")
	record(main, "u1", models.TransactionTypeDebit, "800", "Rent", "Housing", "2024-03-05")
	record(spare, "u1", models.TransactionTypeDebit, "12", "Cinema", "Leisure", "2024-03-10")
	record(foreign, "u2", models.TransactionTypeCredit, "99", "Salary", "Income", "2024-03-01")

	tests := []struct {
		name    string
		filter  TransactionFilter
		wantIDs []string
	}{
		{"all newest first", TransactionFilter{}, []string{"Cinema", "Rent", "Supermarket", "Salary March"}},
		{"account", TransactionFilter{AccountID: spare.AccountID}, []string{"Cinema"}},
		{"debits by amount asc", TransactionFilter{Type: "DEBIT", Sort: "amount", Order: "asc"}, []string{"Rent", "Supermarket", "Cinema"}},
		{"text query", TransactionFilter{Query: "sal"}, []string{"Salary March"}},
		{"category query", TransactionFilter{Query: "Housing"}, []string{"Rent"}},
		{"date range inclusive", TransactionFilter{DateFrom: "2024-03-03", DateTo: "2024-03-05"}, []string{"Rent", "Supermarket"}},
		{"unknown sort falls back to date", TransactionFilter{Sort: "amount; DROP TABLE accounts", Order: "asc"}, []string{"Salary March", "Supermarket", "Rent", "Cinema"}},
		{"limit and offset", TransactionFilter{Limit: 2, Offset: 1}, []string{"Rent", "Supermarket"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.UserID = "u1"
			rows, err := f.accounts.ListTransactions(f.ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTransactions() error = %v", err)
			}
			var got []string
			for _, r := range rows {
				got = append(got, r.Description)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("got %v, want %v", got, tt.wantIDs)
			}
		})
	}

	if _, err := f.accounts.ListTransactions(f.ctx, TransactionFilter{UserID: "u1", DateFrom: "March"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad date_from error = %v, want ErrInvalidInput", err)
	}
}

func TestAccountVerify(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "u1", "", "100")
	bad := f.openAccount(t, "u1", "", "50")

	if err := f.db.Model(&models.Account{}).Where("account_id = ?", bad.AccountID).Update("balance", dec("75")).Error; err != nil {
		t.Fatal(err)
	}

	mismatches, err := f.accounts.Verify(f.ctx)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(mismatches) != 1 {
		t.Fatalf("Verify() = %+v, want one mismatch", mismatches)
	}
	m := mismatches[0]
	if m.AccountID != bad.AccountID || !m.Cached.Equal(dec("75")) || !m.Computed.Equal(dec("50")) {
		t.Errorf("mismatch = %+v", m)
	}
}
