package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"piggybank/models"
	"piggybank/utils"
)

// Режимы разделения счета
const (
	SplitModeSend    = "send"
	SplitModeRequest = "request"
)

// Статусы результата разделения
const (
	SplitStatusSent      = "sent"
	SplitStatusRequested = "requested"
	SplitStatusFailed    = "failed"
	SplitStatusSkipped   = "skipped"
	SplitStatusPartial   = "partial"
)

// SplitRequest данные для разделения суммы по группе
type SplitRequest struct {
	UserID        string          `json:"-" validate:"required"`
	SenderName    string          `json:"-"`
	GroupID       string          `json:"-" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Mode          string          `json:"mode" validate:"required,oneof=send request"`
	FromAccountID string          `json:"from_account_id"`
	Message       *string         `json:"message" validate:"omitempty,max=255"`
}

// AddMemberRequest данные для добавления участника в группу
type AddMemberRequest struct {
	UserID      string `json:"-" validate:"required"`
	GroupID     string `json:"-" validate:"required"`
	ContactID   string `json:"contact_id" validate:"required"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// SplitMember участник группы вместе с получателем из контакта
type SplitMember struct {
	MemberID        string `json:"member_id"`
	GroupID         string `json:"-"`
	ContactID       string `json:"contact_id"`
	DisplayName     string `json:"display_name"`
	TargetUserID    string `json:"target_user_id"`
	TargetAccountID string `json:"target_account_id"`
}

// SplitGroupView группа со списком участников
type SplitGroupView struct {
	GroupID   string        `json:"group_id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Members   []SplitMember `json:"members"`
}

// SplitMemberResult результат для одного участника
type SplitMemberResult struct {
	MemberID       string          `json:"member_id"`
	ContactID      string          `json:"contact_id"`
	DisplayName    string          `json:"display_name"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	P2PID          string          `json:"p2p_id,omitempty"`
	NotificationID string          `json:"notification_id,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// SplitResult итог разделения. Status равен partial или failed, если
// отправка остановилась на одном из участников.
type SplitResult struct {
	GroupID string              `json:"group_id"`
	Mode    string              `json:"mode"`
	Status  string              `json:"status"`
	Results []SplitMemberResult `json:"results"`
}

// SplitService управляет группами и разделением счетов
type SplitService struct {
	db            *gorm.DB
	validator     *validator.Validate
	contacts      *ContactService
	p2p           *P2PService
	notifications *NotificationService
	settings      *SettingsService
}

// NewSplitService создает новый экземпляр SplitService
func NewSplitService(db *gorm.DB, contacts *ContactService, p2p *P2PService, notifications *NotificationService, settings *SettingsService) *SplitService {
	return &SplitService{
		db:            db,
		validator:     newValidator(),
		contacts:      contacts,
		p2p:           p2p,
		notifications: notifications,
		settings:      settings,
	}
}

// SplitEven делит сумму на n долей в целых центах. Остаток распределяется
// по одному центу первым участникам, сумма долей всегда равна total.
func SplitEven(total decimal.Decimal, n int, currency string) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, ErrEmptyGroup
	}
	cents, err := toCents(total)
	if err != nil {
		return nil, err
	}
	if cents <= 0 {
		return nil, fmt.Errorf("%w: сумма должна быть больше 0", ErrInvalidAmount)
	}
	if currency == "" {
		currency = money.EUR
	}

	parts, err := money.New(cents, currency).Split(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	shares := make([]decimal.Decimal, len(parts))
	for i, part := range parts {
		shares[i] = fromCents(part.Amount())
	}
	return shares, nil
}

// CreateGroup создает группу пользователя
func (s *SplitService) CreateGroup(ctx context.Context, userID, name string) (*models.SplitGroup, error) {
	name = strings.TrimSpace(name)
	if userID == "" || name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: поле Name обязательно (до 100 символов)", ErrInvalidInput)
	}

	group := &models.SplitGroup{UserID: userID, Name: name}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := NextID(tx, PrefixSplitGroup)
		if err != nil {
			return err
		}
		group.GroupID = id
		return tx.Create(group).Error
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать группу: %w", err)
	}
	return group, nil
}

// ListGroups возвращает группы пользователя с участниками, новые первыми
func (s *SplitService) ListGroups(ctx context.Context, userID string) ([]SplitGroupView, error) {
	var groups []models.SplitGroup
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("group_id DESC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении групп: %w", err)
	}
	if len(groups) == 0 {
		return []SplitGroupView{}, nil
	}

	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.GroupID)
	}
	members, err := s.members(s.db.WithContext(ctx), userID, ids...)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[string][]SplitMember, len(groups))
	for _, m := range members {
		byGroup[m.GroupID] = append(byGroup[m.GroupID], m)
	}

	views := make([]SplitGroupView, 0, len(groups))
	for _, g := range groups {
		list := byGroup[g.GroupID]
		if list == nil {
			list = []SplitMember{}
		}
		views = append(views, SplitGroupView{GroupID: g.GroupID, Name: g.Name, CreatedAt: g.CreatedAt, Members: list})
	}
	return views, nil
}

// DeleteGroup удаляет группу вместе с участниками
func (s *SplitService) DeleteGroup(ctx context.Context, userID, groupID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getGroup(tx, userID, groupID); err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.SplitGroupMember{}).Error; err != nil {
			return fmt.Errorf("ошибка при удалении участников: %w", err)
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.SplitGroup{}).Error; err != nil {
			return fmt.Errorf("ошибка при удалении группы: %w", err)
		}
		return nil
	})
}

// AddMember добавляет внутренний контакт в группу
func (s *SplitService) AddMember(ctx context.Context, req AddMemberRequest) (*models.SplitGroupMember, error) {
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}

	var member *models.SplitGroupMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getGroup(tx, req.UserID, req.GroupID); err != nil {
			return err
		}

		var contact models.Contact
		err := tx.Where("owner_user_id = ? AND contact_id = ?", req.UserID, req.ContactID).First(&contact).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: контакт %s", ErrNotFound, req.ContactID)
			}
			return err
		}
		if !contact.Internal() {
			return fmt.Errorf("%w: контакт %s не является внутренним", ErrInvalidInput, contact.ContactID)
		}

		var existing int64
		if err := tx.Model(&models.SplitGroupMember{}).
			Where("group_id = ? AND contact_id = ?", req.GroupID, req.ContactID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: контакт %s уже в группе", ErrConflict, req.ContactID)
		}

		id, err := NextID(tx, PrefixSplitMember)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(req.DisplayName)
		if name == "" {
			name = contact.DisplayName
		}
		member = &models.SplitGroupMember{
			MemberID:    id,
			GroupID:     req.GroupID,
			ContactID:   contact.ContactID,
			DisplayName: name,
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember удаляет участника из группы пользователя
func (s *SplitService) RemoveMember(ctx context.Context, userID, groupID, memberID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getGroup(tx, userID, groupID); err != nil {
			return err
		}
		result := tx.Where("group_id = ? AND member_id = ?", groupID, memberID).Delete(&models.SplitGroupMember{})
		if result.Error != nil {
			return fmt.Errorf("ошибка при удалении участника: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: участник %s", ErrNotFound, memberID)
		}
		return nil
	})
}

// Execute делит сумму между участниками группы.
// send: каждый перевод выполняется отдельной транзакцией, при ошибке
// уже выполненные переводы остаются, остальные участники пропускаются.
// request: деньги не двигаются, участники получают запросы на оплату.
func (s *SplitService) Execute(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}

	group, err := getGroup(s.db.WithContext(ctx), req.UserID, req.GroupID)
	if err != nil {
		return nil, err
	}
	members, err := s.members(s.db.WithContext(ctx), req.UserID, group.GroupID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrEmptyGroup
	}

	if req.Mode == SplitModeSend {
		return s.send(ctx, req, group, members)
	}
	return s.request(ctx, req, group, members)
}

func (s *SplitService) send(ctx context.Context, req SplitRequest, group *models.SplitGroup, members []SplitMember) (*SplitResult, error) {
	if req.FromAccountID == "" {
		return nil, fmt.Errorf("%w: from_account_id обязателен для режима send", ErrInvalidInput)
	}

	var account models.Account
	err := s.db.WithContext(ctx).Where("account_id = ? AND user_id = ?", req.FromAccountID, req.UserID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: счет %s", ErrNotFound, req.FromAccountID)
		}
		return nil, fmt.Errorf("ошибка при поиске счета: %w", err)
	}

	shares, err := SplitEven(req.Amount, len(members), account.Currency)
	if err != nil {
		return nil, err
	}
	total := decimal.Sum(decimal.Zero, shares...)
	if account.Balance.LessThan(total) {
		return nil, fmt.Errorf("%w: на счете %s, требуется %s", ErrInsufficientFunds, account.Balance.StringFixed(2), total.StringFixed(2))
	}

	result := &SplitResult{GroupID: group.GroupID, Mode: SplitModeSend, Status: SplitStatusSent}
	failed := false
	for i, m := range members {
		row := SplitMemberResult{
			MemberID:    m.MemberID,
			ContactID:   m.ContactID,
			DisplayName: m.DisplayName,
			Amount:      shares[i],
		}
		if failed {
			row.Status = SplitStatusSkipped
			result.Results = append(result.Results, row)
			continue
		}

		p2p, err := s.p2p.instant(ctx, instantTransfer{
			fromUserID:    req.UserID,
			toUserID:      m.TargetUserID,
			fromAccountID: account.AccountID,
			toAccountID:   m.TargetAccountID,
			amount:        shares[i],
			message:       req.Message,
			fromName:      req.SenderName,
			toName:        m.DisplayName,
		})
		if err != nil {
			utils.LogError("разделение %s остановлено на участнике %s: %v", group.GroupID, m.MemberID, err)
			row.Status = SplitStatusFailed
			row.Error = err.Error()
			result.Results = append(result.Results, row)
			failed = true
			if i == 0 {
				result.Status = SplitStatusFailed
			} else {
				result.Status = SplitStatusPartial
			}
			continue
		}

		s.p2p.notifyTransfer(ctx, p2p, "p2p:split:sent:", "p2p:split:recv:",
			" for "+group.Name, m.DisplayName, nameOrUser(req.SenderName, req.UserID),
			models.Payload{
				"group_id":  models.String(group.GroupID),
				"member_id": models.String(m.MemberID),
			})

		row.Status = SplitStatusSent
		row.P2PID = p2p.P2PID
		result.Results = append(result.Results, row)
	}
	return result, nil
}

func (s *SplitService) request(ctx context.Context, req SplitRequest, group *models.SplitGroup, members []SplitMember) (*SplitResult, error) {
	currency := DefaultSettingsCurrency
	if settings, err := s.settings.Get(ctx, req.UserID); err == nil {
		currency = settings.DefaultCurrency
	}

	shares, err := SplitEven(req.Amount, len(members), currency)
	if err != nil {
		return nil, err
	}

	requester := nameOrUser(req.SenderName, req.UserID)
	message := models.Null()
	if req.Message != nil && *req.Message != "" {
		message = models.String(*req.Message)
	}

	result := &SplitResult{GroupID: group.GroupID, Mode: SplitModeRequest, Status: SplitStatusRequested}
	for i, m := range members {
		if _, err := s.settings.Get(ctx, m.TargetUserID); err != nil {
			return nil, err
		}
		body := fmt.Sprintf("%s asks you for %s for a shared expense.", requester, displayAmount(shares[i], currency))
		id, err := s.notifications.Raise(ctx, RaiseRequest{
			UserID: m.TargetUserID,
			Type:   models.NotificationTypeP2PRequest,
			Title:  "Payment request for " + group.Name,
			Body:   &body,
			Payload: models.Payload{
				"group_id":    models.String(group.GroupID),
				"origin_user": models.String(req.UserID),
				"amount":      models.Number(shares[i]),
				"message":     message,
			},
		})
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, SplitMemberResult{
			MemberID:       m.MemberID,
			ContactID:      m.ContactID,
			DisplayName:    m.DisplayName,
			Amount:         shares[i],
			Status:         SplitStatusRequested,
			NotificationID: id,
		})
	}

	summary := fmt.Sprintf("You requested %s from %d people.", displayAmount(req.Amount.Round(2), currency), len(members))
	if _, err := s.notifications.Raise(ctx, RaiseRequest{
		UserID: req.UserID,
		Type:   models.NotificationTypeP2PRequest,
		Title:  "Requests sent for " + group.Name,
		Body:   &summary,
		Payload: models.Payload{
			"group_id": models.String(group.GroupID),
			"amount":   models.Number(req.Amount.Round(2)),
		},
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// members участники групп в порядке добавления. Этот порядок определяет,
// кто получает лишний цент при разделении.
func (s *SplitService) members(db *gorm.DB, userID string, groupIDs ...string) ([]SplitMember, error) {
	var rows []SplitMember
	err := db.Table("split_group_members AS m").
		Select("m.member_id, m.group_id, m.contact_id, m.display_name, " +
			"COALESCE(c.target_user_id, '') AS target_user_id, COALESCE(c.target_account_id, '') AS target_account_id").
		Joins("JOIN contacts c ON c.contact_id = m.contact_id").
		Where("m.group_id IN ? AND c.owner_user_id = ?", groupIDs, userID).
		Order("m.created_at ASC").Order("m.member_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении участников: %w", err)
	}
	return rows, nil
}

func getGroup(db *gorm.DB, userID, groupID string) (*models.SplitGroup, error) {
	var group models.SplitGroup
	err := db.Where("group_id = ? AND user_id = ?", groupID, userID).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: группа %s", ErrNotFound, groupID)
		}
		return nil, fmt.Errorf("ошибка при поиске группы: %w", err)
	}
	return &group, nil
}
