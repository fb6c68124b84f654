package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"piggybank/services"
)

// PiggyController обрабатывает запросы по копилкам
type PiggyController struct {
	piggies *services.PiggyService
}

// NewPiggyController создает новый экземпляр PiggyController
func NewPiggyController(piggies *services.PiggyService) *PiggyController {
	return &PiggyController{piggies: piggies}
}

// ListPiggies возвращает активные копилки пользователя
func (c *PiggyController) ListPiggies(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	piggies, err := c.piggies.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, piggies)
}

// CreatePiggy создает копилку
func (c *PiggyController) CreatePiggy(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.CreatePiggyRequest
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.UserID = userID

	piggy, err := c.piggies.Create(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, piggy)
}

// Transfer переводит средства между счетом и копилкой
func (c *PiggyController) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.PiggyTransferRequest
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.UserID = userID

	transfer, err := c.piggies.Transfer(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"transfer_id": transfer.TransferID})
}

// Balance возвращает баланс копилки, пересчитанный по истории переводов
func (c *PiggyController) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	piggyID := mux.Vars(r)["id"]
	balance, err := c.piggies.BalanceOf(r.Context(), userID, piggyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"piggy_id": piggyID,
		"balance":  balance.StringFixed(2),
	})
}

// DeletePiggy закрывает копилку; остаток возвращается на account_id из query
func (c *PiggyController) DeletePiggy(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	err := c.piggies.Delete(r.Context(), services.DeletePiggyRequest{
		UserID:         userID,
		PiggyID:        mux.Vars(r)["id"],
		DrainAccountID: r.URL.Query().Get("account_id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
