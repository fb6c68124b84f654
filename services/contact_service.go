package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"piggybank/models"
)

// CreateContactRequest данные для создания контакта
type CreateContactRequest struct {
	OwnerUserID     string  `json:"-" validate:"required"`
	DisplayName     string  `json:"display_name" validate:"required,min=1,max=100"`
	TargetUserID    *string `json:"target_user_id" validate:"omitempty,max=32"`
	TargetAccountID *string `json:"target_account_id" validate:"omitempty,max=16"`
	IBAN            string  `json:"iban" validate:"omitempty,max=34"`
}

// ContactService адресная книга пользователя. Внутренний контакт
// разрешается в пару (пользователь, счет) получателя.
type ContactService struct {
	db        *gorm.DB
	validator *validator.Validate
}

// NewContactService создает новый экземпляр ContactService
func NewContactService(db *gorm.DB) *ContactService {
	return &ContactService{
		db:        db,
		validator: newValidator(),
	}
}

// Create добавляет контакт. Если указан счет получателя, пользователь
// берется из счета и должен совпадать с переданным.
func (s *ContactService) Create(ctx context.Context, req CreateContactRequest) (*models.Contact, error) {
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}

	contact := &models.Contact{
		OwnerUserID: req.OwnerUserID,
		DisplayName: strings.TrimSpace(req.DisplayName),
		IBAN:        req.IBAN,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.TargetAccountID != nil && *req.TargetAccountID != "" {
			var account models.Account
			if err := tx.Where("account_id = ?", *req.TargetAccountID).First(&account).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: счет %s", ErrNotFound, *req.TargetAccountID)
				}
				return err
			}
			if req.TargetUserID != nil && *req.TargetUserID != "" && *req.TargetUserID != account.UserID {
				return fmt.Errorf("%w: счет %s не принадлежит пользователю %s", ErrInvalidInput, account.AccountID, *req.TargetUserID)
			}
			contact.TargetAccountID = &account.AccountID
			contact.TargetUserID = &account.UserID
			if contact.IBAN == "" {
				contact.IBAN = account.IBAN
			}
		} else if req.TargetUserID != nil && *req.TargetUserID != "" {
			contact.TargetUserID = req.TargetUserID
		}

		id, err := NextID(tx, PrefixContact)
		if err != nil {
			return err
		}
		contact.ContactID = id
		return tx.Create(contact).Error
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать контакт: %w", err)
	}
	return contact, nil
}

// List возвращает контакты пользователя, q фильтрует по имени
func (s *ContactService) List(ctx context.Context, ownerUserID, q string) ([]models.Contact, error) {
	query := s.db.WithContext(ctx).Where("owner_user_id = ?", ownerUserID)
	if q = strings.TrimSpace(q); q != "" {
		query = query.Where("LOWER(display_name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	var contacts []models.Contact
	if err := query.Order("display_name ASC").Order("contact_id ASC").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении контактов: %w", err)
	}
	return contacts, nil
}

// Get возвращает контакт пользователя
func (s *ContactService) Get(ctx context.Context, ownerUserID, contactID string) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.WithContext(ctx).
		Where("owner_user_id = ? AND contact_id = ?", ownerUserID, contactID).
		First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: контакт %s", ErrNotFound, contactID)
		}
		return nil, fmt.Errorf("ошибка при поиске контакта: %w", err)
	}
	return &contact, nil
}
