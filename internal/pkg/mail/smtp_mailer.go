package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
)

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailerFromEnv reads SMTP_*. It returns nil when SMTP_HOST is unset.
func NewSMTPMailerFromEnv() *SMTPMailer {
	host := env.GetEnv("SMTP_HOST", "")
	if host == "" {
		return nil
	}
	sender := env.GetEnv("SMTP_SENDER", "")
	if sender == "" {
		sender = "no-reply@localhost"
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", sender)
	}
	return &SMTPMailer{
		Host:     host,
		Port:     env.GetEnv("SMTP_PORT", "587"),
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		Sender:   sender,
		send:     smtp.SendMail,
	}
}

func (m *SMTPMailer) SendMail(to, subject, body string) error {
	var auth smtp.Auth
	if m.Username != "" && m.Password != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.Sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	send := m.send
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(addr, auth, m.Sender, []string{to}, msg); err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return err
	}
	log.Infof("[Mail] Email sent to %s via %s", to, addr)
	return nil
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<p>Thanks for your purchase!</p>
<p>You are now enrolled in course #{{ .CourseID }}.</p>
<p>Payment reference: <code>{{ .Reference }}</code></p>
<p><a href="{{ .CourseURL }}">Start learning</a></p>`))

// EnrollmentReceipt is the data rendered into a receipt email.
type EnrollmentReceipt struct {
	To        string
	CourseID  uint
	Reference string
	CourseURL string
}

// SendEnrollmentReceipt renders and sends the purchase confirmation.
func (m *SMTPMailer) SendEnrollmentReceipt(r EnrollmentReceipt) error {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, r); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return m.SendMail(r.To, "Your CourseFox enrollment", buf.String())
}
