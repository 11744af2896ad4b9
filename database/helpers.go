package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"weatherbot/model"
	"weatherbot/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage serves the flows from a gorm database.
type Storage struct {
	db *gorm.DB
}

func NewStorage(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) GetUserProfile(ctx context.Context, userID int64) (*model.User, error) {
	var user User
	res := s.db.WithContext(ctx).Where("id = ?", userID).Limit(1).Find(&user)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	profile := user.toModel()
	return &profile, nil
}

func (s *Storage) UpsertUserProfile(ctx context.Context, profile model.User) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "menu_scale", "updated_at"}),
	}).Create(&User{
		ID:        profile.ID,
		Name:      profile.Name,
		MenuScale: profile.MenuScale,
	})
	return res.Error
}

// MenuScale returns the stored menu scale of a user, zero for strangers.
func (s *Storage) MenuScale(ctx context.Context, userID int64) (int, error) {
	profile, err := s.GetUserProfile(ctx, userID)
	if err != nil || profile == nil {
		return 0, err
	}
	return profile.MenuScale, nil
}

func (s *Storage) RecentLogs(ctx context.Context, limit int) ([]model.RequestLog, error) {
	var entries []RequestLog
	res := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&entries)
	if res.Error != nil {
		return nil, res.Error
	}

	logs := make([]model.RequestLog, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, entry.toModel())
	}
	return logs, nil
}

func (s *Storage) LogRequest(ctx context.Context, entry model.RequestLog) error {
	res := s.db.WithContext(ctx).Create(&RequestLog{
		UserID:    entry.UserID,
		City:      entry.City,
		IsError:   entry.IsError,
		Message:   entry.Message,
		CreatedAt: entry.CreatedAt,
	})
	return res.Error
}

// UserCityHistory returns the directory cities the user successfully asked a
// forecast for, most recent first.
func (s *Storage) UserCityHistory(ctx context.Context, userID int64) ([]model.City, error) {
	var names []string
	res := s.db.WithContext(ctx).Model(&RequestLog{}).
		Select("city").
		Where("user_id = ? AND is_error = ?", userID, false).
		Group("city").
		Order("MAX(created_at) DESC").
		Pluck("city", &names)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(names) == 0 {
		return nil, nil
	}

	var cities []City
	res = s.db.WithContext(ctx).Where("name_en IN ?", names).Find(&cities)
	if res.Error != nil {
		return nil, res.Error
	}

	byName := make(map[string]City, len(cities))
	for _, city := range cities {
		byName[city.NameEn] = city
	}

	history := make([]model.City, 0, len(names))
	for _, name := range names {
		if city, found := byName[name]; found {
			history = append(history, city.toModel())
		}
	}
	return history, nil
}

func (s *Storage) ListCities(ctx context.Context) ([]model.City, error) {
	var cities []City
	res := s.db.WithContext(ctx).Order("name_ru").Find(&cities)
	if res.Error != nil {
		return nil, res.Error
	}
	return toModelCities(cities), nil
}

// SearchCities matches prefix against the start of either city name. When
// nothing starts with prefix, the directory is searched fuzzily instead.
func (s *Storage) SearchCities(ctx context.Context, prefix string) ([]model.City, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, nil
	}

	var cities []City
	pattern := escapeLike(prefix) + "%"
	res := s.db.WithContext(ctx).
		Where("LOWER(name_ru) LIKE ? ESCAPE '!' OR LOWER(name_en) LIKE ? ESCAPE '!'", pattern, pattern).
		Order("name_ru").
		Find(&cities)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(cities) > 0 {
		return toModelCities(cities), nil
	}

	all, err := s.ListCities(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FuzzyFindCities(prefix, all), nil
}

// CityGet looks a city up by its canonical name. An unknown city is nil.
func (s *Storage) CityGet(ctx context.Context, name string) (*model.City, error) {
	var city City
	res := s.db.WithContext(ctx).Where("name_en = ?", strings.ToLower(strings.TrimSpace(name))).Take(&city)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get city %q: %w", name, res.Error)
	}
	found := city.toModel()
	return &found, nil
}

func toModelCities(cities []City) []model.City {
	out := make([]model.City, 0, len(cities))
	for _, city := range cities {
		out = append(out, city.toModel())
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
