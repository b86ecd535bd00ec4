package models

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null"`
	Content   string
	System    bool `gorm:"default:false"`
	Edited    bool `gorm:"default:false"`
	Deleted   bool `gorm:"default:false"`
	CreatedAt time.Time

	// Связи
	Sender    User          `gorm:"foreignKey:SenderID"`
	Room      Room          `gorm:"foreignKey:RoomID"`
	Files     []MessageFile `gorm:"foreignKey:MessageID"`
	Reactions []Reaction    `gorm:"foreignKey:MessageID"`
}

// MessageFile - вложение сообщения, порядок сохраняется по ID
type MessageFile struct {
	ID        uint      `gorm:"primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string
	Size      int64
	Type      string
	Extension string
	URL       string
	Preview   string
	Audio     bool
	Duration  float64
}

// Reaction - одна строка на уникальную тройку (сообщение, пользователь, эмодзи)
type Reaction struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Emoji     string    `gorm:"primaryKey"`
	Unicode   string
	CreatedAt time.Time
}
