package services

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
)

// Sender delivers a single email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender delivers through a plain-auth SMTP relay.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

func (s *SMTPSender) Send(to, subject, body string) error {
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.from, to, subject, body))
	return smtp.SendMail(s.addr, s.auth, s.from, []string{to}, msg)
}

// LogSender is the fallback when no SMTP host is configured: it only
// logs, which keeps local development working without a relay.
type LogSender struct{}

func (s *LogSender) Send(to, subject, body string) error {
	log.Printf("📧 [EMAIL] to=%s subject=%q body=%q", to, subject, body)
	return nil
}

// NewSenderFromEnv picks SMTP when configured, the logging sender
// otherwise.
func NewSenderFromEnv() Sender {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		log.Println("⚠️  SMTP_HOST not set, using logging email sender")
		return &LogSender{}
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	user := os.Getenv("SMTP_USERNAME")
	pass := os.Getenv("SMTP_PASSWORD")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		auth: smtp.PlainAuth("", user, pass, host),
		from: from,
	}
}

// EmailService wraps a Sender with the platform's outbound messages.
// All sends are fire-and-forget: delivery failure is logged, never
// propagated into the caller's response.
type EmailService struct {
	sender Sender
}

func NewEmailService(sender Sender) *EmailService {
	return &EmailService{sender: sender}
}

// SendCode dispatches a verification code asynchronously.
func (s *EmailService) SendCode(email, code, purpose string) {
	subject := "Your verification code"
	if purpose == "password_reset" {
		subject = "Your password reset code"
	}
	body := fmt.Sprintf("Your one-time code is %s. It expires in 15 minutes.", code)
	go func() {
		if err := s.sender.Send(email, subject, body); err != nil {
			log.Printf("❌ [EMAIL] failed to send %s code to %s: %v", purpose, email, err)
		}
	}()
}

// SendInvitation notifies a slot-pool participant. Called from the
// invitation worker, which handles retries, so this one is synchronous.
func (s *EmailService) SendInvitation(email, name, sponsorName string) error {
	subject := "You have been invited to register"
	body := fmt.Sprintf("Hi %s, %s has reserved a competition slot for you. Use this email address to complete your registration.", name, sponsorName)
	return s.sender.Send(email, subject, body)
}
