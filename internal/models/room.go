package models

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	AvatarURL string
	CreatedBy uuid.UUID
	CreatedAt time.Time

	// Денормализованная сводка последнего сообщения
	LastMessage string
	LastUpdated time.Time

	// Связи
	Members  []User    `gorm:"many2many:room_users"`
	Messages []Message `gorm:"foreignKey:RoomID"`
}

// RoomUser - запись участника комнаты (join-таблица many2many)
type RoomUser struct {
	RoomID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}
