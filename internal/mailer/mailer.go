package mailer

import (
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"storefront/internal/models"
)

//go:generate mockgen -destination=sender_mock.go -package=mailer . Sender

// Sender is the part of the SendGrid client the mailer needs.
type Sender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type Mailer struct {
	sender    Sender
	from      *mail.Email
	clientURL string
}

func New(apiKey, fromAddress, fromName, clientURL string) *Mailer {
	return NewWithSender(sendgrid.NewSendClient(apiKey), fromAddress, fromName, clientURL)
}

func NewWithSender(sender Sender, fromAddress, fromName, clientURL string) *Mailer {
	return &Mailer{
		sender:    sender,
		from:      mail.NewEmail(fromName, fromAddress),
		clientURL: strings.TrimRight(clientURL, "/"),
	}
}

func (m *Mailer) SendVerification(name, email, rawToken string) error {
	link := fmt.Sprintf("%s/verify-email/%s", m.clientURL, rawToken)
	text := fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening %s\n\nThe link expires in 24 hours.", name, link)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Confirm your email address:</p><p><a href=\"%s\">Verify email</a></p><p>The link expires in 24 hours.</p>",
		html.EscapeString(name), link)
	return m.send(name, email, "Verify your email", text, body)
}

func (m *Mailer) SendPasswordReset(name, email, rawToken string) error {
	link := fmt.Sprintf("%s/reset-password/%s", m.clientURL, rawToken)
	text := fmt.Sprintf("Hi %s,\n\nReset your password by opening %s\n\nThe link expires in 1 hour. Ignore this email if you did not ask for it.", name, link)
	body := fmt.Sprintf("<p>Hi %s,</p><p><a href=\"%s\">Reset your password</a></p><p>The link expires in 1 hour. Ignore this email if you did not ask for it.</p>",
		html.EscapeString(name), link)
	return m.send(name, email, "Reset your password", text, body)
}

func (m *Mailer) SendOrderConfirmation(name, email string, order models.Order) error {
	var text, rows strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&text, "- %s x%d: %.2f\n", item.Name, item.Quantity, item.Subtotal)
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%d</td><td>%.2f</td></tr>", html.EscapeString(item.Name), item.Quantity, item.Subtotal)
	}
	fmt.Fprintf(&text, "\nTotal: %.2f", order.TotalAmount)

	subject := fmt.Sprintf("Order %s confirmed", order.OrderNumber)
	plain := fmt.Sprintf("Hi %s,\n\nThanks for your order %s.\n\n%s", name, order.OrderNumber, text.String())
	body := fmt.Sprintf("<p>Hi %s,</p><p>Thanks for your order <strong>%s</strong>.</p><table>%s</table><p>Total: %.2f</p>",
		html.EscapeString(name), order.OrderNumber, rows.String(), order.TotalAmount)
	return m.send(name, email, subject, plain, body)
}

func (m *Mailer) send(toName, toEmail, subject, text, htmlContent string) error {
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(m.from, subject, to, text, htmlContent)

	resp, err := m.sender.Send(message)
	if err != nil {
		log.Printf("[MAIL] [ERROR] sending %q to %s: %v", subject, toEmail, err)
		return err
	}
	if resp.StatusCode >= 400 {
		log.Printf("[MAIL] [ERROR] SendGrid status %d: %s", resp.StatusCode, resp.Body)
		return fmt.Errorf("failed to send email, status code: %d", resp.StatusCode)
	}

	log.Printf("[MAIL] [INFO] %q sent to %s", subject, toEmail)
	return nil
}
