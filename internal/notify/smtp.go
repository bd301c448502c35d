package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"github.com/skip2/go-qrcode"
	"github.com/upgrade-events/Upgrade-Events/pkg/config"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const qrSize = 256

var ticketTemplate = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif">
  <h2>{{.EventName}}</h2>
  <p>{{.EventStartsAt.Format "02/01/2006 15:04"}}{{if .Location}} &middot; {{.Location}}{{end}}</p>
  <p>Table: <strong>{{.TableName}}</strong>{{if .HasBus}} &middot; shuttle bus included{{end}}</p>
  {{if .Restrictions}}<p>Dietary notes: {{.Restrictions}}</p>{{end}}
  <p>Show the attached QR code at the entrance. Validation code:</p>
  <p style="font-size: 20px; letter-spacing: 2px"><strong>{{.ValidationCode}}</strong></p>
  {{if .DownloadURL}}<p><a href="{{.DownloadURL}}">Download your ticket as PDF</a></p>{{end}}
</body>
</html>`))

// QRCodePNG renders content as a PNG QR code
func QRCodePNG(content string, size int) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, size)
}

// SMTPMailer implements TicketMailer with gomail
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates an SMTPMailer from the SMTP config
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func renderTicketBody(email TicketEmail) (string, error) {
	var body bytes.Buffer
	if err := ticketTemplate.Execute(&body, email); err != nil {
		return "", fmt.Errorf("render ticket email: %w", err)
	}
	return body.String(), nil
}

// BuildMessage renders the ticket e-mail with its QR code attached
func (m *SMTPMailer) BuildMessage(email TicketEmail) (*gomail.Message, error) {
	body, err := renderTicketBody(email)
	if err != nil {
		return nil, err
	}

	qr, err := QRCodePNG(email.ValidationCode, qrSize)
	if err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", fmt.Sprintf("Your ticket for %s", email.EventName))
	msg.SetBody("text/html", body)

	filename := fmt.Sprintf("ticket-%d.png", email.TicketID)
	msg.Attach(filename, gomail.Rename(filename), gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(qr)
		return err
	}))
	return msg, nil
}

// SendTicketEmail sends one ticket synchronously so the caller can collect failures
func (m *SMTPMailer) SendTicketEmail(ctx context.Context, email TicketEmail) error {
	msg, err := m.BuildMessage(email)
	if err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send ticket email: %w", err)
	}

	logger.Get().InfoContext(ctx, "ticket email sent",
		logger.TicketID(email.TicketID), zap.String("to", email.To))
	return nil
}
