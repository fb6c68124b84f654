package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"piggybank/models"
)

// Значения настроек по умолчанию
const (
	DefaultSettingsCurrency = "EUR"
	DefaultDecimalPlaces    = 2
)

var (
	defaultNotifyThreshold = decimal.NewFromInt(1)
	supportedCurrencies    = map[string]bool{"EUR": true, "USD": true, "GBP": true}
)

// UpdateSettingsRequest данные для обновления настроек пользователя
type UpdateSettingsRequest struct {
	UserID          string          `json:"-" validate:"required"`
	DefaultCurrency string          `json:"default_currency"`
	DecimalPlaces   int             `json:"decimal_places"`
	NotifyThreshold decimal.Decimal `json:"notify_threshold"`
	Email           string          `json:"email" validate:"omitempty,email,max=100"`
}

// SettingsService хранит персональные настройки пользователей
type SettingsService struct {
	db        *gorm.DB
	validator *validator.Validate
}

// NewSettingsService создает новый экземпляр SettingsService
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{
		db:        db,
		validator: newValidator(),
	}
}

// Get возвращает настройки пользователя, создавая строку со значениями
// по умолчанию при первом обращении
func (s *SettingsService) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: пользователь не указан", ErrInvalidInput)
	}

	var settings models.UserSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ошибка при чтении настроек: %w", err)
	}

	settings = models.UserSettings{
		UserID:          userID,
		DefaultCurrency: DefaultSettingsCurrency,
		DecimalPlaces:   DefaultDecimalPlaces,
		NotifyThreshold: defaultNotifyThreshold,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&settings).Error; err != nil {
		return nil, fmt.Errorf("ошибка при создании настроек: %w", err)
	}
	// повторное чтение на случай, если строку вставил параллельный запрос
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error; err != nil {
		return nil, fmt.Errorf("ошибка при чтении настроек: %w", err)
	}
	return &settings, nil
}

// Update нормализует и сохраняет настройки (upsert)
func (s *SettingsService) Update(ctx context.Context, req UpdateSettingsRequest) (*models.UserSettings, error) {
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}

	currency, places, threshold := normalizeSettings(req.DefaultCurrency, req.DecimalPlaces, req.NotifyThreshold)
	settings := models.UserSettings{
		UserID:          req.UserID,
		DefaultCurrency: currency,
		DecimalPlaces:   places,
		NotifyThreshold: threshold,
		Email:           strings.TrimSpace(req.Email),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"default_currency", "decimal_places", "notify_threshold", "email", "updated_at"}),
	}).Create(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при сохранении настроек: %w", err)
	}

	return s.Get(ctx, req.UserID)
}

// normalizeSettings приводит значения к допустимым: неизвестная валюта
// заменяется на EUR, точность ограничивается [0,4], порог <= 0 становится 1
func normalizeSettings(currency string, places int, threshold decimal.Decimal) (string, int, decimal.Decimal) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !supportedCurrencies[currency] {
		currency = DefaultSettingsCurrency
	}
	if places < 0 {
		places = 0
	}
	if places > 4 {
		places = 4
	}
	threshold = threshold.Round(2)
	if !threshold.IsPositive() {
		threshold = defaultNotifyThreshold
	}
	return currency, places, threshold
}
