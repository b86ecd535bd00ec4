package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/relaychat/internal/models"
)

// Store - контракт хранилища, который потребляет координатор реального
// времени. Реализуется internal/database.
type Store interface {
	GetUser(id uuid.UUID) (*models.User, error)
	SetPresence(userID uuid.UUID, status string) error

	CreateRoom(room *models.Room, memberIDs []uuid.UUID) error
	GetRoom(id uuid.UUID) (*models.Room, error)
	ListRoomsForUser(userID uuid.UUID, limit, offset int) ([]models.Room, error)
	AddMember(roomID, userID uuid.UUID) error
	RemoveMember(roomID, userID uuid.UUID) error

	CreateMessage(message *models.Message) error
	GetMessage(id uuid.UUID) (*models.Message, error)
	GetRoomMessages(roomID uuid.UUID, limit int, before *time.Time) ([]models.Message, error)
	EditMessage(id uuid.UUID, content string) error
	SoftDeleteMessage(id uuid.UUID) error

	UpsertReaction(reaction *models.Reaction) error
	RemoveReaction(messageID, userID uuid.UUID, emoji string) error
	ListReactions(messageID uuid.UUID) ([]models.Reaction, error)

	SetTyping(roomID, userID uuid.UUID) error
	ClearTyping(roomID, userID uuid.UUID) error
	ListTyping(roomID uuid.UUID) ([]uuid.UUID, error)
}
