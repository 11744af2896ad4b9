package database

import (
	"errors"
	"time"

	"weatherbot/model"
	"weatherbot/state"
)

type User struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"` // Telegram chat ID
	Name      string
	MenuScale int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type City struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	NameEn string `gorm:"size:128;uniqueIndex"` // passed to the forecast source
	NameRu string `gorm:"size:128;index"`
}

type RequestLog struct {
	ID        uint  `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"index"`
	City      string
	IsError   bool
	Message   string
	CreatedAt time.Time `gorm:"index"`
}

func (u User) toModel() model.User {
	return model.User{
		ID:        u.ID,
		Name:      u.Name,
		MenuScale: u.MenuScale,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (c City) toModel() model.City {
	return model.City{ID: c.ID, CanonicalName: c.NameEn, LocalName: c.NameRu}
}

func (l RequestLog) toModel() model.RequestLog {
	return model.RequestLog{
		ID:        l.ID,
		UserID:    l.UserID,
		City:      l.City,
		IsError:   l.IsError,
		Message:   l.Message,
		CreatedAt: l.CreatedAt,
	}
}

func AutoMigrate() error {
	db := state.State.Database
	autoMigrateError := db.AutoMigrate(
		&User{},
		&City{},
		&RequestLog{},
	)
	if autoMigrateError != nil {
		return autoMigrateError
	}

	migrateError := MigrateDatabase(db, state.State.Config.Database["type"])
	return errors.Join(autoMigrateError, migrateError)
}
