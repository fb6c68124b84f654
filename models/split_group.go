package models

import "time"

// SplitGroup именованный список контактов для разделения счета
type SplitGroup struct {
	GroupID   string    `gorm:"column:group_id;primaryKey;size:16" json:"group_id"`
	UserID    string    `gorm:"column:user_id;not null;size:32;index" json:"user_id"`
	Name      string    `gorm:"column:name;not null;size:100" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SplitGroup) TableName() string {
	return "split_groups"
}

// SplitGroupMember участник группы, ссылается на контакт владельца группы
type SplitGroupMember struct {
	MemberID    string    `gorm:"column:member_id;primaryKey;size:16" json:"member_id"`
	GroupID     string    `gorm:"column:group_id;not null;size:16;uniqueIndex:idx_split_members_group_contact,priority:1" json:"group_id"`
	ContactID   string    `gorm:"column:contact_id;not null;size:16;uniqueIndex:idx_split_members_group_contact,priority:2" json:"contact_id"`
	DisplayName string    `gorm:"column:display_name;not null;size:100" json:"display_name"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`

	// при удалении группы участники удаляются вместе с ней
	Group   *SplitGroup `gorm:"foreignKey:GroupID;references:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	Contact *Contact    `gorm:"foreignKey:ContactID;references:ContactID" json:"-"`
}

func (SplitGroupMember) TableName() string {
	return "split_group_members"
}
