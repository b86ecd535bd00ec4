package database

import (
	"github.com/thereayou/relaychat/internal/models"
	"github.com/thereayou/relaychat/internal/services"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

var _ services.Store = (*Database)(nil)

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Migrate создает таблицы и настраивает join-таблицу участников
func (d *Database) Migrate() error {
	if err := d.db.SetupJoinTable(&models.Room{}, "Members", &models.RoomUser{}); err != nil {
		return err
	}
	if err := d.db.SetupJoinTable(&models.User{}, "Rooms", &models.RoomUser{}); err != nil {
		return err
	}
	return d.db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomUser{},
		&models.Message{},
		&models.MessageFile{},
		&models.Reaction{},
		&models.TypingState{},
	)
}
