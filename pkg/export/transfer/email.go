package transfer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"strconv"
	"strings"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Email providers.
const (
	ProviderSMTP     = "smtp"
	ProviderMailgun  = "mailgun"
	ProviderSendGrid = "sendgrid"
)

// EmailConfig configures the email method.
type EmailConfig struct {
	// Provider is "smtp", "mailgun" or "sendgrid".
	Provider string
	From     string
	To       []string

	// Subject and Body accept {file_name}, {record_type}, {job_id} and {date}.
	// Defaults: "Export {file_name}" and a one-line body.
	Subject string
	Body    string

	SMTP     SMTPConfig
	Mailgun  MailgunConfig
	SendGrid SendGridConfig
}

// SMTPConfig holds the settings of a plain SMTP server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// ImplicitTLS connects with TLS from the start (port 465). Otherwise
	// STARTTLS is used when the server offers it.
	ImplicitTLS bool
}

// MailgunConfig holds the Mailgun API settings.
type MailgunConfig struct {
	Domain string
	APIKey string
	EU     bool
}

// SendGridConfig holds the SendGrid API settings.
type SendGridConfig struct {
	APIKey string
}

// EmailMessage is one message with the export attached.
type EmailMessage struct {
	From       string
	To         []string
	Subject    string
	Body       string
	Attachment string
	Content    []byte
}

// EmailSender sends a message through one provider.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailStrategy mails the export as a CSV attachment.
type EmailStrategy struct {
	cfg    EmailConfig
	sender EmailSender
	err    error
}

// NewEmailStrategy creates an EmailStrategy for the configured provider.
// Configuration errors surface on Perform, before anything is sent.
func NewEmailStrategy(cfg EmailConfig) *EmailStrategy {
	if cfg.Subject == "" {
		cfg.Subject = "Export {file_name}"
	}
	if cfg.Body == "" {
		cfg.Body = "The {record_type} export {file_name} is attached."
	}
	s := &EmailStrategy{cfg: cfg}
	s.sender, s.err = newEmailSender(cfg)
	return s
}

// NewEmailStrategyWithSender creates an EmailStrategy around a custom sender.
func NewEmailStrategyWithSender(cfg EmailConfig, sender EmailSender) *EmailStrategy {
	s := NewEmailStrategy(cfg)
	s.sender, s.err = sender, nil
	return s
}

func newEmailSender(cfg EmailConfig) (EmailSender, error) {
	switch cfg.Provider {
	case ProviderSMTP:
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("%w: smtp host is empty", ErrNotConfigured)
		}
		return &smtpSender{cfg: cfg.SMTP}, nil
	case ProviderMailgun:
		if cfg.Mailgun.Domain == "" || cfg.Mailgun.APIKey == "" {
			return nil, fmt.Errorf("%w: mailgun domain and api key are required", ErrNotConfigured)
		}
		mg := mailgun.NewMailgun(cfg.Mailgun.Domain, cfg.Mailgun.APIKey)
		if cfg.Mailgun.EU {
			mg.SetAPIBase(mailgun.APIBaseEU)
		}
		return &mailgunSender{mg: mg}, nil
	case ProviderSendGrid:
		if cfg.SendGrid.APIKey == "" {
			return nil, fmt.Errorf("%w: sendgrid api key is empty", ErrNotConfigured)
		}
		return &sendgridSender{client: sendgrid.NewSendClient(cfg.SendGrid.APIKey)}, nil
	case "":
		return nil, fmt.Errorf("%w: email provider is empty", ErrNotConfigured)
	default:
		return nil, fmt.Errorf("%w: unknown email provider %q", ErrNotConfigured, cfg.Provider)
	}
}

// Target implements Strategy.
func (s *EmailStrategy) Target() string {
	return strings.Join(s.cfg.To, ", ")
}

// Perform implements Strategy.
func (s *EmailStrategy) Perform(ctx context.Context, f File) error {
	if s.err != nil {
		return s.err
	}
	if s.cfg.From == "" || len(s.cfg.To) == 0 {
		return fmt.Errorf("%w: email from and to are required", ErrNotConfigured)
	}
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, EmailMessage{
		From:       s.cfg.From,
		To:         s.cfg.To,
		Subject:    expand(s.cfg.Subject, f),
		Body:       expand(s.cfg.Body, f),
		Attachment: f.Name,
		Content:    content,
	})
}

type mailgunSender struct {
	mg *mailgun.MailgunImpl
}

func (s *mailgunSender) Send(ctx context.Context, msg EmailMessage) error {
	m := s.mg.NewMessage(msg.From, msg.Subject, msg.Body, msg.To...)
	m.AddBufferAttachment(msg.Attachment, msg.Content)
	if _, _, err := s.mg.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun: %w", err)
	}
	return nil
}

type sendgridSender struct {
	client *sendgrid.Client
}

func (s *sendgridSender) Send(ctx context.Context, msg EmailMessage) error {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail("", msg.From))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(mail.NewEmail("", to))
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", msg.Body))

	a := mail.NewAttachment()
	a.SetContent(base64.StdEncoding.EncodeToString(msg.Content))
	a.SetType("text/csv")
	a.SetFilename(msg.Attachment)
	a.SetDisposition("attachment")
	m.AddAttachment(a)

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type smtpSender struct {
	cfg SMTPConfig
}

func (s *smtpSender) Send(ctx context.Context, msg EmailMessage) error {
	port := s.cfg.Port
	if port == 0 {
		port = 587
		if s.cfg.ImplicitTLS {
			port = 465
		}
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	body, err := buildMIME(msg)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}
	if s.cfg.ImplicitTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if !s.cfg.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(msg.From); err != nil {
		return err
	}
	for _, to := range msg.To {
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("rcpt %s: %w", to, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// buildMIME renders a multipart/mixed message with a text part and the
// base64 CSV attachment.
func buildMIME(msg EmailMessage) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("no recipients")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	text.Write([]byte(msg.Body + "\r\n"))

	att, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/csv; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", msg.Attachment)},
	})
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(msg.Content)
	for len(encoded) > 76 {
		att.Write([]byte(encoded[:76] + "\r\n"))
		encoded = encoded[76:]
	}
	att.Write([]byte(encoded + "\r\n"))

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
