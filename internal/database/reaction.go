package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/relaychat/internal/models"
	"gorm.io/gorm/clause"
)

// UpsertReaction вставляет реакцию, повторная вставка заменяет существующую
func (d *Database) UpsertReaction(reaction *models.Reaction) error {
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now()
	}
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(reaction).Error
}

func (d *Database) RemoveReaction(messageID, userID uuid.UUID, emoji string) error {
	return d.db.
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.Reaction{}).Error
}

func (d *Database) ListReactions(messageID uuid.UUID) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := d.db.
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	return reactions, err
}
