package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"piggybank/middleware"
	"piggybank/services"
)

// P2PController обрабатывает контакты, мгновенные переводы и группы разделения
type P2PController struct {
	contacts *services.ContactService
	p2p      *services.P2PService
	splits   *services.SplitService
}

// NewP2PController создает новый экземпляр P2PController
func NewP2PController(contacts *services.ContactService, p2p *services.P2PService, splits *services.SplitService) *P2PController {
	return &P2PController{
		contacts: contacts,
		p2p:      p2p,
		splits:   splits,
	}
}

// ListContacts возвращает контакты пользователя, ?q= фильтрует по имени
func (c *P2PController) ListContacts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	contacts, err := c.contacts.List(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// CreateContact добавляет контакт
func (c *P2PController) CreateContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.CreateContactRequest
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.OwnerUserID = userID

	contact, err := c.contacts.Create(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

// Send выполняет мгновенный перевод контакту
func (c *P2PController) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.SendRequest
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.UserID = userID
	dto.SenderName = middleware.UserNameFromContext(r.Context())

	p2p, err := c.p2p.Send(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p2p)
}

// ListGroups возвращает группы пользователя с участниками
func (c *P2PController) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	groups, err := c.splits.ListGroups(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// CreateGroup создает группу
func (c *P2PController) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &dto) {
		return
	}

	group, err := c.splits.CreateGroup(r.Context(), userID, dto.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// DeleteGroup удаляет группу
func (c *P2PController) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := c.splits.DeleteGroup(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMember добавляет контакт в группу
func (c *P2PController) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.AddMemberRequest
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.UserID = userID
	dto.GroupID = mux.Vars(r)["id"]

	member, err := c.splits.AddMember(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// RemoveMember удаляет участника из группы
func (c *P2PController) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	if err := c.splits.RemoveMember(r.Context(), userID, vars["id"], vars["member_id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Split делит сумму по группе. Частичный результат отправки
// возвращается со статусом 207.
func (c *P2PController) Split(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.SplitRequest
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.UserID = userID
	dto.GroupID = mux.Vars(r)["id"]
	dto.SenderName = middleware.UserNameFromContext(r.Context())

	result, err := c.splits.Execute(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == services.SplitStatusPartial || result.Status == services.SplitStatusFailed {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}
