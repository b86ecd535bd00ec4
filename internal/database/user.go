package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/relaychat/internal/models"
	"gorm.io/gorm"
)

func (d *Database) CreateUser(user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Status == "" {
		user.Status = models.StatusOffline
	}
	return d.db.Create(user).Error
}

func (d *Database) GetUser(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := d.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := d.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) ListUsers() ([]models.User, error) {
	var users []models.User
	err := d.db.Order("username ASC").Find(&users).Error
	return users, err
}

func (d *Database) SearchUsersByUsername(query string) ([]models.User, error) {
	var users []models.User
	err := d.db.Where("username LIKE ?", "%"+query+"%").Limit(20).Find(&users).Error
	return users, err
}

// UpdateUser обновляет редактируемые поля профиля
func (d *Database) UpdateUser(user *models.User) error {
	res := d.db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"username":   user.Username,
			"avatar_url": user.AvatarURL,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetPresence меняет статус присутствия и время последней смены
func (d *Database) SetPresence(userID uuid.UUID, status string) error {
	res := d.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"status":            status,
			"status_changed_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
