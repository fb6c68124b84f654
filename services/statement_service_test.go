package services

import (
	"errors"
	"testing"
	"time"

	"github.com/beevik/etree"

	"piggybank/models"
)

func TestStatementExport(t *testing.T) {
	f := newFixture(t)
	f.statements.now = func() time.Time { return time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC) }
	account := f.openAccount(t, "u1", "", "")

	for _, r := range []struct {
		typ    models.TransactionType
		amount string
		desc   string
		date   string
	}{
		{models.TransactionTypeCredit, "100", "Salary", "2024-03-01"},
		{models.TransactionTypeDebit, "30", "Groceries & more", "2024-03-05"},
		{models.TransactionTypeCredit, "10", "Refund", "2024-03-20"},
	} {
		_, err := f.accounts.Record(f.ctx, RecordTransactionRequest{UserID: "u1", AccountID: account.AccountID, Type: r.typ, Amount: dec(r.amount), Description: r.desc, Category: "Misc", Date: r.date})
		if err != nil {
			t.Fatal(err)
		}
	}

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	data, err := f.statements.Export(f.ctx, "u1", account.AccountID, from, to)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		t.Fatalf("statement is not valid XML: %v", err)
	}
	stmt := doc.FindElement("/Document/BkToCstmrStmt/Stmt")
	if stmt == nil {
		t.Fatal("Stmt element is missing")
	}
	if iban := stmt.FindElement("Acct/Id/IBAN"); iban == nil || iban.Text() != account.IBAN {
		t.Errorf("IBAN element = %v", iban)
	}

	balances := map[string]string{}
	for _, bal := range stmt.SelectElements("Bal") {
		code := bal.FindElement("Tp/CdOrPrtry/Cd").Text()
		balances[code] = bal.FindElement("Amt").Text() + " " + bal.FindElement("CdtDbtInd").Text()
	}
	if balances["OPBD"] != "100.00 CRDT" || balances["CLBD"] != "70.00 CRDT" {
		t.Errorf("balances = %v", balances)
	}

	entries := stmt.SelectElements("Ntry")
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.FindElement("Amt").Text() != "30.00" || e.FindElement("CdtDbtInd").Text() != "DBIT" {
		t.Errorf("entry amount = %s %s", e.FindElement("Amt").Text(), e.FindElement("CdtDbtInd").Text())
	}
	if e.FindElement("AddtlNtryInf").Text() != "Groceries & more" {
		t.Errorf("entry info = %q", e.FindElement("AddtlNtryInf").Text())
	}
	if ccy := e.FindElement("Amt").SelectAttrValue("Ccy", ""); ccy != "EUR" {
		t.Errorf("entry currency = %q", ccy)
	}
}

func TestStatementExportRejections(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "u1", "", "")
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	if _, err := f.statements.Export(f.ctx, "u1", account.AccountID, day, day.AddDate(0, 0, -1)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("inverted range error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.statements.Export(f.ctx, "u2", account.AccountID, day, day); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign account error = %v, want ErrNotFound", err)
	}
}
