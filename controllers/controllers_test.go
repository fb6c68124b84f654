package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"piggybank/config"
	"piggybank/database"
	"piggybank/middleware"
	"piggybank/utils"
)

var testKey = []byte("controllers-test-key")

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared&_pragma=foreign_keys(1)", false)
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

	cfg := &config.Config{}
	cfg.Ledger.DefaultCurrency = "EUR"
	cfg.Ledger.DefaultReportMonths = 3
	cfg.Ledger.NotificationPageSize = 10

	return NewAPI(NewServices(db, cfg, nil), testKey).Handler()
}

func tokenFor(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := middleware.IssueToken(testKey, userID, name, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

// do выполняет запрос и при out != nil разбирает JSON ответа
func do(t *testing.T, h http.Handler, method, path, token, body string, wantStatus int, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != wantStatus {
		t.Fatalf("%s %s returned wrong status code: got %v want %v (body %s)",
			method, path, rr.Code, wantStatus, rr.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: cannot decode %q: %v", method, path, rr.Body.String(), err)
		}
	}
	return rr
}

func TestRequiresToken(t *testing.T) {
	h := newTestHandler(t)
	do(t, h, "GET", "/api/accounts", "", "", http.StatusUnauthorized, nil)
}

func TestAccountPiggyFlow(t *testing.T) {
	h := newTestHandler(t)
	alice := tokenFor(t, "alice", "Alice")

	var account struct {
		AccountID string `json:"account_id"`
		Currency  string `json:"currency"`
	}
	do(t, h, "POST", "/api/accounts", alice, `{"name":"Main"}`, http.StatusCreated, &account)
	if account.AccountID != "ACC001" || account.Currency != "EUR" {
		t.Fatalf("unexpected account %+v", account)
	}

	do(t, h, "POST", "/api/accounts/ACC001/transactions", alice,
		`{"type":"CREDIT","amount":"1000","description":"Salary","category":"Income"}`, http.StatusCreated, nil)

	// Некорректное тело запроса
	do(t, h, "POST", "/api/accounts/ACC001/transactions", alice, `{"type":`, http.StatusBadRequest, nil)

	var piggy struct {
		PiggyID string `json:"piggy_id"`
	}
	do(t, h, "POST", "/api/piggy", alice, `{"name":"Trip","target_amount":"500"}`, http.StatusCreated, &piggy)
	if piggy.PiggyID != "PIG001" {
		t.Fatalf("piggy_id = %q, want PIG001", piggy.PiggyID)
	}

	var transfer map[string]string
	do(t, h, "POST", "/api/piggy/transfer", alice,
		`{"piggy_id":"PIG001","account_id":"ACC001","amount":"100","direction":"TO_PIGGY","create_account_tx":true}`, http.StatusCreated, &transfer)
	if transfer["transfer_id"] == "" {
		t.Error("expected transfer_id in response")
	}

	// Снять больше, чем лежит в копилке, нельзя
	do(t, h, "POST", "/api/piggy/transfer", alice,
		`{"piggy_id":"PIG001","account_id":"ACC001","amount":"150","direction":"FROM_PIGGY"}`, http.StatusUnprocessableEntity, nil)

	var balance map[string]string
	do(t, h, "GET", "/api/piggy/PIG001/balance", alice, "", http.StatusOK, &balance)
	if balance["balance"] != "100.00" {
		t.Errorf("balance = %q, want 100.00", balance["balance"])
	}

	// Чужая копилка не видна
	bob := tokenFor(t, "bob", "Bob")
	do(t, h, "GET", "/api/piggy/PIG001/balance", bob, "", http.StatusNotFound, nil)

	var rows []struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
	}
	do(t, h, "GET", "/api/transactions?q=piggy", alice, "", http.StatusOK, &rows)
	if len(rows) != 1 || !rows[0].Amount.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("unexpected search result %+v", rows)
	}
	do(t, h, "GET", "/api/transactions?limit=ten", alice, "", http.StatusBadRequest, nil)

	// Закрытие копилки без счета для остатка
	do(t, h, "DELETE", "/api/piggy/PIG001", alice, "", http.StatusBadRequest, nil)
	do(t, h, "DELETE", "/api/piggy/PIG001?account_id=ACC001", alice, "", http.StatusNoContent, nil)

	var accounts []struct {
		Balance decimal.Decimal `json:"balance"`
	}
	do(t, h, "GET", "/api/accounts", alice, "", http.StatusOK, &accounts)
	if len(accounts) != 1 || !accounts[0].Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("unexpected accounts %+v", accounts)
	}
}

func TestP2PAndNotifications(t *testing.T) {
	h := newTestHandler(t)
	alice := tokenFor(t, "alice", "Alice")
	bob := tokenFor(t, "bob", "Bob")

	do(t, h, "POST", "/api/accounts", alice, `{"name":"Main"}`, http.StatusCreated, nil)
	do(t, h, "POST", "/api/accounts/ACC001/transactions", alice,
		`{"type":"CREDIT","amount":"100","description":"Salary","category":"Income"}`, http.StatusCreated, nil)
	do(t, h, "POST", "/api/accounts", bob, `{"name":"Main"}`, http.StatusCreated, nil)

	var contact struct {
		ContactID string `json:"contact_id"`
	}
	do(t, h, "POST", "/api/contacts", alice, `{"display_name":"Bob","target_account_id":"ACC002"}`, http.StatusCreated, &contact)

	var contacts []map[string]interface{}
	do(t, h, "GET", "/api/contacts?q=bo", alice, "", http.StatusOK, &contacts)
	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(contacts))
	}

	var p2p struct {
		P2PID    string          `json:"p2p_id"`
		ToUserID string          `json:"to_user_id"`
		Amount   decimal.Decimal `json:"amount"`
	}
	do(t, h, "POST", "/api/p2p/send", alice,
		`{"from_account_id":"ACC001","contact_id":"`+contact.ContactID+`","amount":"12.50"}`, http.StatusCreated, &p2p)
	if p2p.ToUserID != "bob" || !p2p.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("unexpected transfer %+v", p2p)
	}

	// На счете осталось 87.50
	do(t, h, "POST", "/api/p2p/send", alice,
		`{"from_account_id":"ACC001","contact_id":"`+contact.ContactID+`","amount":"87.51"}`, http.StatusUnprocessableEntity, nil)

	var unread map[string]int64
	do(t, h, "GET", "/api/notifications/unread-count", bob, "", http.StatusOK, &unread)
	if unread["unread"] != 1 {
		t.Fatalf("unread = %d, want 1", unread["unread"])
	}

	var list []struct {
		NotificationID string `json:"notification_id"`
		Body           string `json:"body"`
	}
	do(t, h, "GET", "/api/notifications", bob, "", http.StatusOK, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}

	do(t, h, "POST", "/api/notifications/"+list[0].NotificationID, bob, `{"status":"READ"}`, http.StatusOK, nil)
	do(t, h, "POST", "/api/notifications/"+list[0].NotificationID, bob, `{"status":"ARCHIVED"}`, http.StatusBadRequest, nil)
	do(t, h, "GET", "/api/notifications/unread-count", bob, "", http.StatusOK, &unread)
	if unread["unread"] != 0 {
		t.Errorf("unread = %d, want 0", unread["unread"])
	}
}

func TestSplitReturnsMultiStatusOnPartialFailure(t *testing.T) {
	h := newTestHandler(t)
	alice := tokenFor(t, "alice", "Alice")

	do(t, h, "POST", "/api/accounts", alice, `{"name":"Main"}`, http.StatusCreated, nil)
	do(t, h, "POST", "/api/accounts/ACC001/transactions", alice,
		`{"type":"CREDIT","amount":"100","description":"Salary","category":"Income"}`, http.StatusCreated, nil)
	do(t, h, "POST", "/api/accounts", tokenFor(t, "bob", "Bob"), `{"name":"Main"}`, http.StatusCreated, nil)
	do(t, h, "POST", "/api/accounts", tokenFor(t, "carol", "Carol"), `{"name":"Dollars","currency":"USD"}`, http.StatusCreated, nil)

	do(t, h, "POST", "/api/contacts", alice, `{"display_name":"Bob","target_account_id":"ACC002"}`, http.StatusCreated, nil)
	do(t, h, "POST", "/api/contacts", alice, `{"display_name":"Carol","target_account_id":"ACC003"}`, http.StatusCreated, nil)

	var group struct {
		GroupID string `json:"group_id"`
	}
	do(t, h, "POST", "/api/p2p/groups", alice, `{"name":"Dinner"}`, http.StatusCreated, &group)
	do(t, h, "POST", "/api/p2p/groups/"+group.GroupID+"/members", alice, `{"contact_id":"CON001"}`, http.StatusCreated, nil)
	do(t, h, "POST", "/api/p2p/groups/"+group.GroupID+"/members", alice, `{"contact_id":"CON002"}`, http.StatusCreated, nil)

	var result struct {
		Status  string `json:"status"`
		Results []struct {
			Status string `json:"status"`
		} `json:"results"`
	}
	do(t, h, "POST", "/api/p2p/groups/"+group.GroupID+"/split", alice,
		`{"amount":"20","mode":"send","from_account_id":"ACC001"}`, http.StatusMultiStatus, &result)
	if result.Status != "partial" || len(result.Results) != 2 {
		t.Fatalf("unexpected split result %+v", result)
	}

	do(t, h, "POST", "/api/p2p/groups/"+group.GroupID+"/split", alice,
		`{"amount":"20","mode":"request"}`, http.StatusOK, &result)
	if result.Status != "requested" {
		t.Errorf("status = %q, want requested", result.Status)
	}

	do(t, h, "POST", "/api/p2p/groups/"+group.GroupID+"/split", alice,
		`{"amount":"20","mode":"broadcast"}`, http.StatusBadRequest, nil)
	do(t, h, "DELETE", "/api/p2p/groups/"+group.GroupID, alice, "", http.StatusNoContent, nil)
	do(t, h, "DELETE", "/api/p2p/groups/"+group.GroupID, alice, "", http.StatusNotFound, nil)
}

func TestUnparsableAmountIsInvalidAmount(t *testing.T) {
	h := newTestHandler(t)
	alice := tokenFor(t, "alice", "Alice")

	var resp map[string]string
	do(t, h, "POST", "/api/piggy/transfer", alice, `{"piggy_id":"PIG001","account_id":"ACC001","amount":"abc","direction":"TO_PIGGY"}`, http.StatusBadRequest, &resp)
	if !strings.Contains(resp["error"], "неверная сумма") {
		t.Errorf("error = %q, want invalid amount", resp["error"])
	}

	resp = nil
	do(t, h, "POST", "/api/piggy", alice, `{"name":"Trip","target_amount":"lots"}`, http.StatusBadRequest, &resp)
	if !strings.Contains(resp["error"], "target_amount") {
		t.Errorf("error = %q, want target_amount to be named", resp["error"])
	}

	// битый JSON остается общей ошибкой тела
	resp = nil
	do(t, h, "POST", "/api/piggy/transfer", alice, `{"amount":`, http.StatusBadRequest, &resp)
	if resp["error"] != "Invalid request body" {
		t.Errorf("error = %q, want Invalid request body", resp["error"])
	}
}

func TestSettingsAndSummary(t *testing.T) {
	h := newTestHandler(t)
	alice := tokenFor(t, "alice", "Alice")

	var settings struct {
		DefaultCurrency string `json:"default_currency"`
	}
	do(t, h, "GET", "/api/settings", alice, "", http.StatusOK, &settings)
	if settings.DefaultCurrency != "EUR" {
		t.Errorf("default_currency = %q, want EUR", settings.DefaultCurrency)
	}
	do(t, h, "PUT", "/api/settings", alice, `{"default_currency":"GBP","decimal_places":2,"notify_threshold":"50"}`, http.StatusOK, &settings)
	if settings.DefaultCurrency != "GBP" {
		t.Errorf("default_currency = %q, want GBP", settings.DefaultCurrency)
	}

	var summary map[string]interface{}
	do(t, h, "GET", "/api/reports/summary?months=6", alice, "", http.StatusOK, &summary)
	if _, ok := summary["score"]; !ok {
		t.Errorf("summary without score: %v", summary)
	}
	do(t, h, "GET", "/api/reports/summary?months=six", alice, "", http.StatusBadRequest, nil)
}

func TestExportStatementIsSigned(t *testing.T) {
	h := newTestHandler(t)
	alice := tokenFor(t, "alice", "Alice")

	do(t, h, "POST", "/api/accounts", alice, `{"name":"Main"}`, http.StatusCreated, nil)
	today := time.Now().UTC().Format("2006-01-02")
	do(t, h, "POST", "/api/accounts/ACC001/transactions", alice,
		`{"type":"CREDIT","amount":"100","description":"Salary","category":"Income","date":"`+today+`"}`, http.StatusCreated, nil)

	rr := do(t, h, "GET", "/api/accounts/ACC001/statement", alice, "", http.StatusOK, nil)
	if ct := rr.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}
	if !utils.VerifySignature(rr.Body.Bytes(), rr.Header().Get("X-Statement-Signature"), testKey) {
		t.Error("statement signature does not verify")
	}

	do(t, h, "GET", "/api/accounts/ACC001/statement?from=yesterday", alice, "", http.StatusBadRequest, nil)
	do(t, h, "GET", "/api/accounts/ACC001/statement", tokenFor(t, "bob", "Bob"), "", http.StatusNotFound, nil)
}
