package models

import "time"

// NotificationStatus статус уведомления
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "UNREAD"
	NotificationRead   NotificationStatus = "READ"
)

// Типы уведомлений
const (
	NotificationTypePiggyTarget = "PIGGY_TARGET"
	NotificationTypeP2PSent     = "P2P_SENT"
	NotificationTypeP2PReceived = "P2P_RECEIVED"
	NotificationTypeP2PRequest  = "P2P_REQUEST"
)

// Notification уведомление пользователя. Для пары (UserID, DedupeKey)
// с непустым ключом существует не более одной строки.
// Payload хранится как JSON текст, см. DecodePayload.
type Notification struct {
	NotificationID string             `gorm:"column:notification_id;primaryKey;size:16"`
	UserID         string             `gorm:"column:user_id;not null;size:32;index;uniqueIndex:idx_notifications_user_dedupe,priority:1"`
	Type           string             `gorm:"column:type;not null;size:32"`
	Title          string             `gorm:"column:title;not null;size:200"`
	Body           *string            `gorm:"column:body;type:text"`
	Status         NotificationStatus `gorm:"column:status;not null;size:10;default:UNREAD;index"`
	DedupeKey      *string            `gorm:"column:dedupe_key;size:128;uniqueIndex:idx_notifications_user_dedupe,priority:2"`
	Payload        string             `gorm:"column:payload;type:text;not null;default:'{}'"`
	CreatedAt      time.Time          `gorm:"column:created_at;not null"`
	ReadAt         *time.Time         `gorm:"column:read_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
