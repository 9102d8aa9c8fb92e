package email

import (
	"fmt"
	"net/smtp"

	"github.com/example/storefront/internal/domain/order"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	auth     smtp.Auth
	sendMail SendFunc
}

type Option func(*Service)

// WithAuth enables PLAIN authentication.
func WithAuth(username, password string) Option {
	return func(s *Service) {
		if username != "" {
			s.auth = smtp.PlainAuth("", username, password, s.host)
		}
	}
}

// WithSendFunc replaces the SMTP transport.
func WithSendFunc(fn SendFunc) Option {
	return func(s *Service) { s.sendMail = fn }
}

func NewService(host, port, from string, opts ...Option) *Service {
	s := &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// SendOrderConfirmation mails the confirmation to the order's shipping address.
func (s *Service) SendOrderConfirmation(o order.Order) error {
	to := o.ShippingAddress.Email
	if to == "" {
		return fmt.Errorf("order %s has no shipping email", o.ID)
	}
	body, err := BuildOrderConfirmationBody(NewConfirmation(o))
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	subject := fmt.Sprintf("Order confirmation #%s", shortID(o.ID))
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, s.auth, s.from, []string{to}, []byte(msg))
}
