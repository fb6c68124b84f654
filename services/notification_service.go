package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"piggybank/models"
	"piggybank/utils"
)

// Mailer доставляет копию уведомления по email
type Mailer interface {
	SendNotification(to, title, body string) error
}

// RaiseRequest данные для создания или обновления уведомления
type RaiseRequest struct {
	UserID    string
	Type      string
	Title     string
	Body      *string
	DedupeKey *string
	Payload   models.Payload
}

// NotificationView уведомление с разобранным payload
type NotificationView struct {
	NotificationID string                    `json:"notification_id"`
	Type           string                    `json:"type"`
	Title          string                    `json:"title"`
	Body           *string                   `json:"body,omitempty"`
	Status         models.NotificationStatus `json:"status"`
	DedupeKey      *string                   `json:"dedupe_key,omitempty"`
	Payload        models.Payload            `json:"payload"`
	CreatedAt      time.Time                 `json:"created_at"`
	ReadAt         *time.Time                `json:"read_at,omitempty"`
}

// NotificationService управляет уведомлениями пользователей
type NotificationService struct {
	db       *gorm.DB
	settings *SettingsService
	mailer   Mailer
	pageSize int
	now      func() time.Time
}

// NewNotificationService создает новый экземпляр NotificationService.
// mailer может быть nil, тогда письма не отправляются.
func NewNotificationService(db *gorm.DB, settings *SettingsService, mailer Mailer, pageSize int) *NotificationService {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &NotificationService{
		db:       db,
		settings: settings,
		mailer:   mailer,
		pageSize: pageSize,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// errDedupeRace строка с тем же ключом появилась между поиском и вставкой
var errDedupeRace = errors.New("уведомление с этим ключом уже создано")

// Raise создает уведомление. Если для (пользователь, ключ) строка уже есть,
// она обновляется на месте: body и payload заменяются всегда, а created_at
// обновляется только пока уведомление не прочитано.
func (s *NotificationService) Raise(ctx context.Context, req RaiseRequest) (string, error) {
	if req.UserID == "" || req.Type == "" || req.Title == "" {
		return "", fmt.Errorf("%w: user_id, type и title обязательны", ErrInvalidInput)
	}
	if req.DedupeKey != nil && *req.DedupeKey == "" {
		req.DedupeKey = nil
	}

	id, created, err := s.raise(ctx, req)
	if errors.Is(err, errDedupeRace) {
		// повтор найдет строку конкурента и обновит ее
		id, created, err = s.raise(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("ошибка при сохранении уведомления: %w", err)
	}

	if created != nil {
		s.deliver(ctx, created, req.Payload)
	}
	return id, nil
}

func (s *NotificationService) raise(ctx context.Context, req RaiseRequest) (string, *models.Notification, error) {
	var created *models.Notification
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.DedupeKey != nil {
			var existing models.Notification
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ? AND dedupe_key = ?", req.UserID, *req.DedupeKey).
				First(&existing).Error
			if err == nil {
				updates := map[string]interface{}{
					"body":    req.Body,
					"payload": req.Payload.Encode(),
				}
				if existing.Status == models.NotificationUnread {
					updates["created_at"] = s.now()
				}
				id = existing.NotificationID
				return tx.Model(&existing).Updates(updates).Error
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		newID, err := NextID(tx, PrefixNotification)
		if err != nil {
			return err
		}
		n := &models.Notification{
			NotificationID: newID,
			UserID:         req.UserID,
			Type:           req.Type,
			Title:          req.Title,
			Body:           req.Body,
			Status:         models.NotificationUnread,
			DedupeKey:      req.DedupeKey,
			Payload:        req.Payload.Encode(),
			CreatedAt:      s.now(),
		}

		q := tx
		if req.DedupeKey != nil {
			q = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "dedupe_key"}},
				DoNothing: true,
			})
		}
		result := q.Create(n)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// откат возвращает и номер последовательности
			return errDedupeRace
		}
		id, created = newID, n
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return id, created, nil
}

// deliver отправляет письмо о новом уведомлении, если у пользователя указан
// email и сумма из payload не меньше его порога. Ошибки только логируются.
func (s *NotificationService) deliver(ctx context.Context, n *models.Notification, payload models.Payload) {
	if s.mailer == nil || s.settings == nil {
		return
	}
	settings, err := s.settings.Get(ctx, n.UserID)
	if err != nil {
		utils.LogError("не удалось получить настройки %s: %v", n.UserID, err)
		return
	}
	if settings.Email == "" {
		return
	}
	if amount, ok := payload.Amount(); ok && amount.Abs().LessThan(settings.NotifyThreshold) {
		return
	}

	body := ""
	if n.Body != nil {
		body = *n.Body
	}
	if err := s.mailer.SendNotification(settings.Email, n.Title, body); err != nil {
		utils.LogError("не удалось отправить уведомление %s: %v", n.NotificationID, err)
	}
}

// Clear помечает непрочитанное уведомление с ключом как прочитанное,
// когда вызвавшее его условие больше не выполняется
func (s *NotificationService) Clear(ctx context.Context, userID, dedupeKey string) error {
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND dedupe_key = ? AND status = ?", userID, dedupeKey, models.NotificationUnread).
		Updates(map[string]interface{}{
			"status":  models.NotificationRead,
			"read_at": s.now(),
		}).Error
	if err != nil {
		return fmt.Errorf("ошибка при сбросе уведомления: %w", err)
	}
	return nil
}

// Mark переводит уведомление пользователя в READ или UNREAD
func (s *NotificationService) Mark(ctx context.Context, userID, notificationID, status string) error {
	next, err := parseStatus(status)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{"status": next}
	if next == models.NotificationRead {
		updates["read_at"] = s.now()
	} else {
		updates["read_at"] = nil
	}

	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("ошибка при обновлении уведомления: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: уведомление %s", ErrNotFound, notificationID)
	}
	return nil
}

// List возвращает последние уведомления пользователя, новые первыми
func (s *NotificationService) List(ctx context.Context, userID string, limit int, status string) ([]NotificationView, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > 100 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		st, err := parseStatus(status)
		if err != nil {
			return nil, err
		}
		query = query.Where("status = ?", st)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC").Order("notification_id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении уведомлений: %w", err)
	}

	views := make([]NotificationView, 0, len(rows))
	for _, n := range rows {
		views = append(views, NotificationView{
			NotificationID: n.NotificationID,
			Type:           n.Type,
			Title:          n.Title,
			Body:           n.Body,
			Status:         n.Status,
			DedupeKey:      n.DedupeKey,
			Payload:        models.DecodePayload(n.Payload),
			CreatedAt:      n.CreatedAt,
			ReadAt:         n.ReadAt,
		})
	}
	return views, nil
}

// CountUnread количество непрочитанных уведомлений
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.NotificationUnread).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("ошибка при подсчете уведомлений: %w", err)
	}
	return count, nil
}

func parseStatus(status string) (models.NotificationStatus, error) {
	switch st := models.NotificationStatus(strings.ToUpper(strings.TrimSpace(status))); st {
	case models.NotificationRead, models.NotificationUnread:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}
