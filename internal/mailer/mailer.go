package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/ericogbekene/Bakery-projectBE/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sender delivers a single email. Delivery is at-least-once and
// fire-and-forget from the core's perspective; the worker consuming
// notification events is the only caller.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail through a plain SMTP relay
type SMTPMailer struct {
	addr   string
	from   string
	auth   smtp.Auth
	logger *zap.Logger
}

// NewSMTPMailer creates a mailer. Username may be empty for relays that
// accept unauthenticated mail (local dev).
func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr:   fmt.Sprintf("%s:%s", host, port),
		from:   from,
		auth:   auth,
		logger: util.GetLogger(),
	}
}

// Send delivers one message
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, to, subject, body)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	m.logger.Info("Email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// OrderConfirmation builds the order-created notification
func OrderConfirmation(orderNumber string, total decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("Order %s received", orderNumber)
	body = fmt.Sprintf(
		"Dear customer,\n\n"+
			"We have received your order %s for a total of NGN %s.\n"+
			"You will get a confirmation as soon as your payment settles.\n\n"+
			"Thank you for your purchase!\n\n"+
			"Best regards,\nBakery Shop",
		orderNumber, total.StringFixed(2))
	return subject, body
}

// PaymentConfirmation builds the successful-payment notification
func PaymentConfirmation(reference string, amount decimal.Decimal) (subject, body string) {
	subject = "Payment Confirmation"
	body = fmt.Sprintf(
		"Dear customer,\n\n"+
			"Your payment of NGN %s was successful.\n"+
			"Reference: %s\n\n"+
			"Thank you for your purchase!\n\n"+
			"Best regards,\nBakery Shop",
		amount.StringFixed(2), reference)
	return subject, body
}

// PaymentFailure builds the failed-payment notification
func PaymentFailure(reference string, amount decimal.Decimal) (subject, body string) {
	subject = "Payment Failed"
	body = fmt.Sprintf(
		"Dear customer,\n\n"+
			"Unfortunately, your payment of NGN %s failed.\n"+
			"Reference: %s\n\n"+
			"Please try again or contact support.\n\n"+
			"Regards,\nBakery Shop",
		amount.StringFixed(2), reference)
	return subject, body
}
