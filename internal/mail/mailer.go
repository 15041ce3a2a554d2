package mail

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

type Mailer interface {
	SendPasswordReset(to, resetURL string) error
	SendEscalationAlert(to, ticketSubject string, ticketID int64) error
}

type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
}

func (m SMTPMailer) SendPasswordReset(to, resetURL string) error {
	body := fmt.Sprintf("A password reset was requested for your account.\r\n\r\nReset link: %s\r\n\r\nThe link expires in one hour. If you did not request this, ignore this message.", resetURL)
	return m.send(to, "Password reset", body)
}

func (m SMTPMailer) SendEscalationAlert(to, ticketSubject string, ticketID int64) error {
	body := fmt.Sprintf("Ticket #%d has been escalated and needs admin attention.\r\n\r\nSubject: %s", ticketID, ticketSubject)
	return m.send(to, fmt.Sprintf("Ticket #%d escalated", ticketID), body)
}

func (m SMTPMailer) send(to, subject, body string) error {
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.Username, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)
	return smtp.SendMail(addr, auth, m.Username, []string{to}, []byte(message))
}

// LogMailer stands in when SMTP is not configured; it records what would
// have been sent so dev environments work end to end.
type LogMailer struct {
	Logger zerolog.Logger
}

func (m LogMailer) SendPasswordReset(to, resetURL string) error {
	m.Logger.Info().Str("to", to).Str("reset_url", resetURL).Msg("password reset mail (not sent: smtp disabled)")
	return nil
}

func (m LogMailer) SendEscalationAlert(to, ticketSubject string, ticketID int64) error {
	m.Logger.Info().Str("to", to).Int64("ticket_id", ticketID).Str("subject", ticketSubject).Msg("escalation mail (not sent: smtp disabled)")
	return nil
}
