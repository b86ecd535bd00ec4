package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/relaychat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRoom создает комнату и сразу добавляет участников одной транзакцией.
// Комната не может быть создана без единого участника.
func (d *Database) CreateRoom(room *models.Room, memberIDs []uuid.UUID) error {
	if len(memberIDs) == 0 {
		return gorm.ErrInvalidData
	}

	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if room.LastUpdated.IsZero() {
		room.LastUpdated = time.Now()
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		for _, userID := range memberIDs {
			link := models.RoomUser{RoomID: room.ID, UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Database) GetRoom(id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.Preload("Members").First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRoomsForUser возвращает комнаты пользователя, свежие сверху
func (d *Database) ListRoomsForUser(userID uuid.UUID, limit, offset int) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.
		Joins("JOIN room_users ru ON ru.room_id = rooms.id").
		Where("ru.user_id = ?", userID).
		Order("rooms.last_updated DESC").
		Limit(limit).
		Offset(offset).
		Preload("Members").
		Find(&rooms).Error
	return rooms, err
}

// AddMember добавляет участника, повторное добавление - no-op
func (d *Database) AddMember(roomID, userID uuid.UUID) error {
	link := models.RoomUser{RoomID: roomID, UserID: userID}
	return d.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
}

func (d *Database) RemoveMember(roomID, userID uuid.UUID) error {
	return d.db.
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomUser{}).Error
}

// UpdateRoom обновляет редактируемые поля комнаты
func (d *Database) UpdateRoom(room *models.Room) error {
	res := d.db.Model(&models.Room{}).
		Where("id = ?", room.ID).
		Updates(map[string]interface{}{
			"name":       room.Name,
			"avatar_url": room.AvatarURL,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
