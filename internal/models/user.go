package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы присутствия пользователя
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type User struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username        string    `gorm:"uniqueIndex;not null"`
	Email           string    `gorm:"uniqueIndex"`
	PasswordHash    string
	AvatarURL       string
	Status          string `gorm:"default:'offline'"`
	StatusChangedAt time.Time
	CreatedAt       time.Time

	// Связи
	Rooms []Room `gorm:"many2many:room_users"`
}
