package services

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"piggybank/models"
)

const camtNamespace = "urn:iso:std:iso:20022:tech:xsd:camt.053.001.02"

// StatementService выгружает выписку по счету в формате camt.053
type StatementService struct {
	db       *gorm.DB
	accounts *AccountService
	now      func() time.Time
}

// NewStatementService создает новый экземпляр StatementService
func NewStatementService(db *gorm.DB, accounts *AccountService) *StatementService {
	return &StatementService{
		db:       db,
		accounts: accounts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Export строит выписку за период [from, to] включительно.
// Входящий остаток выводится из текущего баланса и более поздних проводок.
func (s *StatementService) Export(ctx context.Context, userID, accountID string, from, to time.Time) ([]byte, error) {
	from, to = truncateDay(from), truncateDay(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: дата окончания раньше даты начала", ErrInvalidInput)
	}

	account, err := s.accounts.GetByID(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	var txns []models.Transaction
	err = s.db.WithContext(ctx).
		Where("account_id = ? AND date >= ?", accountID, from).
		Order("date ASC").Order("created_at ASC").Order("transaction_id ASC").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении транзакций: %w", err)
	}

	end := to.AddDate(0, 0, 1)
	opening := account.Balance
	var entries []models.Transaction
	for _, t := range txns {
		opening = opening.Sub(t.Amount)
		if t.Date.Before(end) {
			entries = append(entries, t)
		}
	}
	closing := opening
	for _, t := range entries {
		closing = closing.Add(t.Amount)
	}

	doc := buildStatement(account, entries, opening, closing, from, to, s.now())
	return doc.WriteToBytes()
}

func buildStatement(account *models.Account, entries []models.Transaction, opening, closing decimal.Decimal, from, to, created time.Time) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Document")
	root.CreateAttr("xmlns", camtNamespace)
	stmtRoot := root.CreateElement("BkToCstmrStmt")

	msgID := fmt.Sprintf("STMT-%s-%s", account.AccountID, created.Format("20060102150405"))
	hdr := stmtRoot.CreateElement("GrpHdr")
	hdr.CreateElement("MsgId").SetText(msgID)
	hdr.CreateElement("CreDtTm").SetText(created.Format(time.RFC3339))

	stmt := stmtRoot.CreateElement("Stmt")
	stmt.CreateElement("Id").SetText(msgID)
	stmt.CreateElement("CreDtTm").SetText(created.Format(time.RFC3339))
	period := stmt.CreateElement("FrToDt")
	period.CreateElement("FrDtTm").SetText(from.Format(time.RFC3339))
	period.CreateElement("ToDtTm").SetText(to.Format(time.RFC3339))

	acct := stmt.CreateElement("Acct")
	acct.CreateElement("Id").CreateElement("IBAN").SetText(account.IBAN)
	acct.CreateElement("Ccy").SetText(account.Currency)
	acct.CreateElement("Nm").SetText(account.Name)

	addBalance(stmt, "OPBD", opening, account.Currency, from)
	addBalance(stmt, "CLBD", closing, account.Currency, to)

	for _, t := range entries {
		ntry := stmt.CreateElement("Ntry")
		ntry.CreateElement("NtryRef").SetText(t.TransactionID)
		amt := ntry.CreateElement("Amt")
		amt.CreateAttr("Ccy", account.Currency)
		amt.SetText(t.Amount.Abs().StringFixed(2))
		ntry.CreateElement("CdtDbtInd").SetText(creditDebit(t.Amount))
		ntry.CreateElement("Sts").SetText("BOOK")
		ntry.CreateElement("BookgDt").CreateElement("Dt").SetText(t.Date.Format(dateLayout))
		if t.Category != "" {
			ntry.CreateElement("BkTxCd").CreateElement("Prtry").CreateElement("Cd").SetText(t.Category)
		}
		ntry.CreateElement("AddtlNtryInf").SetText(t.Description)
	}

	doc.Indent(2)
	return doc
}

func addBalance(stmt *etree.Element, code string, amount decimal.Decimal, currency string, at time.Time) {
	bal := stmt.CreateElement("Bal")
	bal.CreateElement("Tp").CreateElement("CdOrPrtry").CreateElement("Cd").SetText(code)
	amt := bal.CreateElement("Amt")
	amt.CreateAttr("Ccy", currency)
	amt.SetText(amount.Abs().StringFixed(2))
	bal.CreateElement("CdtDbtInd").SetText(creditDebit(amount))
	bal.CreateElement("Dt").CreateElement("Dt").SetText(at.Format(dateLayout))
}

func creditDebit(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "DBIT"
	}
	return "CRDT"
}
