package models

// IDSequence счетчик идентификаторов для одного префикса (PIG, TRX, ...)
type IDSequence struct {
	Prefix    string `gorm:"column:prefix;primaryKey;size:8"`
	LastValue int64  `gorm:"column:last_value;not null;default:0"`
}

func (IDSequence) TableName() string {
	return "id_sequences"
}
