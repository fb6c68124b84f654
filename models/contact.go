package models

import "time"

// Contact запись адресной книги. Внутренний контакт ссылается на
// пользователя и счет получателя.
type Contact struct {
	ContactID       string    `gorm:"column:contact_id;primaryKey;size:16" json:"contact_id"`
	OwnerUserID     string    `gorm:"column:owner_user_id;not null;size:32;index" json:"owner_user_id"`
	DisplayName     string    `gorm:"column:display_name;not null;size:100" json:"display_name"`
	TargetUserID    *string   `gorm:"column:target_user_id;size:32" json:"target_user_id,omitempty"`
	TargetAccountID *string   `gorm:"column:target_account_id;size:16" json:"target_account_id,omitempty"`
	IBAN            string    `gorm:"column:iban;size:34" json:"iban,omitempty"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`

	TargetAccount *Account `gorm:"foreignKey:TargetAccountID;references:AccountID" json:"-"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Internal true, если контакт можно использовать для P2P переводов
func (c Contact) Internal() bool {
	return c.TargetUserID != nil && *c.TargetUserID != "" &&
		c.TargetAccountID != nil && *c.TargetAccountID != ""
}
