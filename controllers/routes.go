package controllers

import (
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"piggybank/config"
	"piggybank/middleware"
	"piggybank/services"
)

// Services набор сервисов приложения
type Services struct {
	Settings      *services.SettingsService
	Notifications *services.NotificationService
	Accounts      *services.AccountService
	Piggies       *services.PiggyService
	Contacts      *services.ContactService
	P2P           *services.P2PService
	Splits        *services.SplitService
	Reports       *services.ReportService
	Statements    *services.StatementService
}

// NewServices собирает сервисы поверх одного подключения.
// mailer может быть nil, тогда письма не отправляются.
func NewServices(db *gorm.DB, cfg *config.Config, mailer services.Mailer) *Services {
	s := &Services{}
	s.Settings = services.NewSettingsService(db)
	s.Notifications = services.NewNotificationService(db, s.Settings, mailer, cfg.Ledger.NotificationPageSize)
	s.Accounts = services.NewAccountService(db, cfg.Ledger.DefaultCurrency)
	s.Piggies = services.NewPiggyService(db, s.Notifications)
	s.Contacts = services.NewContactService(db)
	s.P2P = services.NewP2PService(db, s.Contacts, s.Notifications)
	s.Splits = services.NewSplitService(db, s.Contacts, s.P2P, s.Notifications, s.Settings)
	s.Reports = services.NewReportService(db, cfg.Ledger.DefaultReportMonths)
	s.Statements = services.NewStatementService(db, s.Accounts)
	return s
}

// API все HTTP контроллеры
type API struct {
	jwtKey        []byte
	accounts      *AccountController
	piggies       *PiggyController
	p2p           *P2PController
	notifications *NotificationController
}

// NewAPI создает контроллеры. Ключ JWT также подписывает выписки.
func NewAPI(s *Services, jwtKey []byte) *API {
	return &API{
		jwtKey:        jwtKey,
		accounts:      NewAccountController(s.Accounts, s.Statements, jwtKey),
		piggies:       NewPiggyController(s.Piggies),
		p2p:           NewP2PController(s.Contacts, s.P2P, s.Splits),
		notifications: NewNotificationController(s.Notifications, s.Settings, s.Reports),
	}
}

// Register регистрирует защищенные маршруты /api
func (a *API) Register(router *mux.Router) {
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware(a.jwtKey))

	// Счета и транзакции
	protected.HandleFunc("/accounts", a.accounts.CreateAccount).Methods("POST")
	protected.HandleFunc("/accounts", a.accounts.GetAccounts).Methods("GET")
	protected.HandleFunc("/accounts/{id}/transactions", a.accounts.RecordTransaction).Methods("POST")
	protected.HandleFunc("/accounts/{id}/statement", a.accounts.ExportStatement).Methods("GET")
	protected.HandleFunc("/transactions", a.accounts.ListTransactions).Methods("GET")

	// Копилки
	protected.HandleFunc("/piggy-banks", a.piggies.ListPiggies).Methods("GET")
	protected.HandleFunc("/piggy", a.piggies.CreatePiggy).Methods("POST")
	protected.HandleFunc("/piggy/transfer", a.piggies.Transfer).Methods("POST")
	protected.HandleFunc("/piggy/{id}/balance", a.piggies.Balance).Methods("GET")
	protected.HandleFunc("/piggy/{id}", a.piggies.DeletePiggy).Methods("DELETE")

	// Контакты и переводы
	protected.HandleFunc("/contacts", a.p2p.ListContacts).Methods("GET")
	protected.HandleFunc("/contacts", a.p2p.CreateContact).Methods("POST")
	protected.HandleFunc("/p2p/send", a.p2p.Send).Methods("POST")
	protected.HandleFunc("/p2p/groups", a.p2p.ListGroups).Methods("GET")
	protected.HandleFunc("/p2p/groups", a.p2p.CreateGroup).Methods("POST")
	protected.HandleFunc("/p2p/groups/{id}", a.p2p.DeleteGroup).Methods("DELETE")
	protected.HandleFunc("/p2p/groups/{id}/members", a.p2p.AddMember).Methods("POST")
	protected.HandleFunc("/p2p/groups/{id}/members/{member_id}", a.p2p.RemoveMember).Methods("DELETE")
	protected.HandleFunc("/p2p/groups/{id}/split", a.p2p.Split).Methods("POST")

	// Уведомления, настройки, отчеты
	protected.HandleFunc("/notifications", a.notifications.ListNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", a.notifications.UnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/{id}", a.notifications.Mark).Methods("POST")
	protected.HandleFunc("/settings", a.notifications.GetSettings).Methods("GET")
	protected.HandleFunc("/settings", a.notifications.UpdateSettings).Methods("PUT")
	protected.HandleFunc("/reports/summary", a.notifications.Summary).Methods("GET")
}

// Handler роутер с зарегистрированными маршрутами
func (a *API) Handler() http.Handler {
	router := mux.NewRouter()
	a.Register(router)
	return router
}
