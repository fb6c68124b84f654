package services

import (
	"fmt"
	"html"
	"time"

	"gopkg.in/gomail.v2"

	"piggybank/config"
)

// EmailService предоставляет методы для отправки email
type EmailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
	}
}

// SendEmail отправляет email
func (s *EmailService) SendEmail(to, subject, body string) error {
	if err := s.dialer.DialAndSend(s.newMessage(to, subject, body)); err != nil {
		return fmt.Errorf("ошибка отправки email: %v", err)
	}

	return nil
}

// SendNotification отправляет копию уведомления на почту пользователя
func (s *EmailService) SendNotification(to, title, body string) error {
	return s.SendEmail(to, title, notificationBody(title, body, time.Now()))
}

func (s *EmailService) newMessage(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

func notificationBody(title, body string, at time.Time) string {
	return fmt.Sprintf(`
		<h2>%s</h2>
		<p>%s</p>
		<p>Дата: %s</p>
	`, html.EscapeString(title), html.EscapeString(body), at.Format("02.01.2006 15:04:05"))
}
