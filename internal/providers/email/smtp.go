package email

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg       Config
	templates *template.Template
}

func NewSMTP(cfg Config) (*SMTPProvider, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &SMTPProvider{cfg: cfg, templates: templates}, nil
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	var msg bytes.Buffer
	writeHeaders(&msg, p.cfg.From, to, subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	return p.sendMail(to, msg.Bytes())
}

func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	var body bytes.Buffer
	if err := p.templates.ExecuteTemplate(&body, templateName+".html", data); err != nil {
		return fmt.Errorf("execute email template: %w", err)
	}

	subject, _ := data["subject"].(string)
	if subject == "" {
		subject = "Notificación de Facturio"
	}

	return p.Send(ctx, to, subject, body.String())
}

// SendWithAttachment sends a multipart message carrying one binary
// attachment, typically the invoice PDF. An empty from falls back to
// the configured sender; envelope sender is always the configured one
// so SPF keeps passing.
func (p *SMTPProvider) SendWithAttachment(ctx context.Context, from string, to []string, subject string, htmlBody string, attachment Attachment) error {
	headerFrom := p.cfg.From
	if from != "" {
		headerFrom = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", from), p.cfg.From)
	}

	const boundary = "facturio-mime-boundary"

	var msg bytes.Buffer
	writeHeaders(&msg, headerFrom, to, subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: multipart/mixed; boundary=\"" + boundary + "\"\r\n")
	msg.WriteString("\r\n")

	msg.WriteString("--" + boundary + "\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	msg.WriteString("\r\n")

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	msg.WriteString("--" + boundary + "\r\n")
	msg.WriteString("Content-Type: " + contentType + "\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString("Content-Disposition: attachment; filename=\"" + attachment.Filename + "\"\r\n")
	msg.WriteString("\r\n")
	writeBase64(&msg, attachment.Content)
	msg.WriteString("\r\n--" + boundary + "--\r\n")

	return p.sendMail(to, msg.Bytes())
}

func (p *SMTPProvider) sendMail(to []string, msg []byte) error {
	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	return smtp.SendMail(addr, auth, p.cfg.From, to, msg)
}

func writeHeaders(msg *bytes.Buffer, from string, to []string, subject string) {
	fmt.Fprintf(msg, "From: %s\r\n", from)
	fmt.Fprintf(msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
}

// writeBase64 wraps encoded content at 76 columns per RFC 2045.
func writeBase64(msg *bytes.Buffer, content []byte) {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 76 {
		msg.WriteString(encoded[:76])
		msg.WriteString("\r\n")
		encoded = encoded[76:]
	}
	msg.WriteString(encoded)
}
