package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/relaychat/internal/models"
	"gorm.io/gorm"
)

// CreateMessage сохраняет сообщение и обновляет сводку комнаты одной
// транзакцией. Конкурирующие записи в сводку разрешаются порядком коммитов.
func (d *Database) CreateMessage(message *models.Message) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Room{}).
			Where("id = ?", message.RoomID).
			Updates(map[string]interface{}{
				"last_message": message.Content,
				"last_updated": message.CreatedAt,
			}).Error
	})
}

func (d *Database) GetMessage(id uuid.UUID) (*models.Message, error) {
	var message models.Message
	err := d.db.
		Preload("Sender").
		Preload("Files").
		Preload("Reactions").
		First(&message, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// GetRoomMessages получает историю комнаты до указанного момента.
// Удаленные сообщения исключаются, результат в хронологическом порядке.
func (d *Database) GetRoomMessages(roomID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	query := d.db.Where("room_id = ? AND deleted = ?", roomID, false)

	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	var messages []models.Message
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Preload("Sender").
		Preload("Files").
		Preload("Reactions").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Разворачиваем, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (d *Database) EditMessage(id uuid.UUID, content string) error {
	res := d.db.Model(&models.Message{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]interface{}{
			"content": content,
			"edited":  true,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDeleteMessage ставит tombstone, строка физически остается
func (d *Database) SoftDeleteMessage(id uuid.UUID) error {
	res := d.db.Model(&models.Message{}).
		Where("id = ?", id).
		Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
