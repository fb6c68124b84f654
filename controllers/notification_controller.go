package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"piggybank/services"
)

// NotificationController обрабатывает уведомления, настройки и отчеты пользователя
type NotificationController struct {
	notifications *services.NotificationService
	settings      *services.SettingsService
	reports       *services.ReportService
}

// NewNotificationController создает новый экземпляр NotificationController
func NewNotificationController(notifications *services.NotificationService, settings *services.SettingsService, reports *services.ReportService) *NotificationController {
	return &NotificationController{
		notifications: notifications,
		settings:      settings,
		reports:       reports,
	}
}

// ListNotifications возвращает последние уведомления (?limit=, ?status=)
func (c *NotificationController) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := c.notifications.List(r.Context(), userID, limit, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UnreadCount возвращает число непрочитанных уведомлений
func (c *NotificationController) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	count, err := c.notifications.CountUnread(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

// Mark меняет статус уведомления: {"status": "READ"|"UNREAD"}
func (c *NotificationController) Mark(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &dto) {
		return
	}

	id := mux.Vars(r)["id"]
	if err := c.notifications.Mark(r.Context(), userID, id, dto.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"notification_id": id, "status": dto.Status})
}

// GetSettings возвращает настройки пользователя
func (c *NotificationController) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	settings, err := c.settings.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings сохраняет настройки пользователя
func (c *NotificationController) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.UpdateSettingsRequest
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.UserID = userID

	settings, err := c.settings.Update(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Summary отчет о финансовом состоянии (?months=1..12)
func (c *NotificationController) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	months, err := queryInt(r, "months", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := c.reports.Summary(r.Context(), userID, months)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
