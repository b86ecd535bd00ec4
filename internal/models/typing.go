package models

import (
	"time"

	"github.com/google/uuid"
)

// TypingState - эфемерная запись "пользователь печатает в комнате".
// Не является частью истории, живет пока активен индикатор.
type TypingState struct {
	RoomID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	StartedAt time.Time
}
