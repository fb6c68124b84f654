package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"piggybank/middleware"
	"piggybank/services"
	"piggybank/utils"
)

// statusFor сопоставляет ошибку домена с HTTP статусом
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidDirection),
		errors.Is(err, services.ErrInvalidMode),
		errors.Is(err, services.ErrMissingDrainTarget),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrSameAccount),
		errors.Is(err, services.ErrCurrencyMismatch),
		errors.Is(err, services.ErrEmptyGroup):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError отправляет {"error": "..."}; текст внутренних ошибок не раскрывается
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		utils.LogError("внутренняя ошибка: %v", err)
		utils.GetMetrics().RecordError(err)
		message = "Internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// amountFields поля тела запроса, которые содержат денежные суммы
var amountFields = []string{"amount", "target_amount"}

// decodeJSON разбирает тело запроса. Нечисловая сумма отдается как
// ErrInvalidAmount, остальные ошибки как "Invalid request body".
func decodeJSON(w http.ResponseWriter, r *http.Request, dto interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err == nil {
		err = json.Unmarshal(body, dto)
	}
	if err != nil {
		if field, ok := invalidAmount(body); ok {
			writeError(w, fmt.Errorf("%w: поле %s не является числом", services.ErrInvalidAmount, field))
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return false
	}
	return true
}

// invalidAmount находит поле суммы, которое не разбирается как число
func invalidAmount(body []byte) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false
	}
	for _, name := range amountFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var amount decimal.NullDecimal
		if err := amount.UnmarshalJSON(raw); err != nil {
			return name, true
		}
	}
	return "", false
}

// currentUser получает ID пользователя из контекста (установлен middleware)
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}

// queryInt целое из query string, пустое значение дает def
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: параметр %s должен быть числом", services.ErrInvalidInput, key)
	}
	return n, nil
}
