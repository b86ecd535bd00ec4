package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/relaychat/internal/models"
	"gorm.io/gorm/clause"
)

func (d *Database) SetTyping(roomID, userID uuid.UUID) error {
	state := models.TypingState{RoomID: roomID, UserID: userID, StartedAt: time.Now()}
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&state).Error
}

func (d *Database) ClearTyping(roomID, userID uuid.UUID) error {
	return d.db.
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.TypingState{}).Error
}

func (d *Database) ListTyping(roomID uuid.UUID) ([]uuid.UUID, error) {
	var states []models.TypingState
	if err := d.db.Where("room_id = ?", roomID).Find(&states).Error; err != nil {
		return nil, err
	}

	users := make([]uuid.UUID, 0, len(states))
	for _, s := range states {
		users = append(users, s.UserID)
	}
	return users, nil
}
