package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"piggybank/services"
	"piggybank/utils"
)

// AccountController обрабатывает запросы по счетам, транзакциям и выпискам
type AccountController struct {
	accounts   *services.AccountService
	statements *services.StatementService
	signKey    []byte
}

// NewAccountController создает новый экземпляр AccountController.
// signKey используется для подписи выгружаемых выписок.
func NewAccountController(accounts *services.AccountService, statements *services.StatementService, signKey []byte) *AccountController {
	return &AccountController{
		accounts:   accounts,
		statements: statements,
		signKey:    signKey,
	}
}

// CreateAccount обрабатывает запрос на создание счета
func (c *AccountController) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.CreateAccountRequest
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.UserID = userID

	account, err := c.accounts.Create(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// GetAccounts возвращает счета пользователя
func (c *AccountController) GetAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	accounts, err := c.accounts.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// RecordTransaction записывает обычную операцию по счету
func (c *AccountController) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.RecordTransactionRequest
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.UserID = userID
	dto.AccountID = mux.Vars(r)["id"]

	txn, err := c.accounts.Record(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// ListTransactions ищет транзакции пользователя
func (c *AccountController) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	rows, err := c.accounts.ListTransactions(r.Context(), services.TransactionFilter{
		UserID:    userID,
		AccountID: q.Get("account_id"),
		Query:     q.Get("q"),
		Type:      q.Get("type"),
		DateFrom:  q.Get("date_from"),
		DateTo:    q.Get("date_to"),
		Sort:      q.Get("sort"),
		Order:     q.Get("order"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ExportStatement отдает выписку camt.053 за период from..to (по умолчанию последние 30 дней)
func (c *AccountController) ExportStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			writeError(w, fmt.Errorf("%w: from %q", services.ErrInvalidInput, v))
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			writeError(w, fmt.Errorf("%w: to %q", services.ErrInvalidInput, v))
			return
		}
	}

	accountID := mux.Vars(r)["id"]
	data, err := c.statements.Export(r.Context(), userID, accountID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s.xml"`, accountID))
	if len(c.signKey) > 0 {
		w.Header().Set("X-Statement-Signature", utils.SignPayload(data, c.signKey))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
