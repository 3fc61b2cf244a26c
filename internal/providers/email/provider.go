// Package email delivers transactional mail over SMTP.
package email

import "context"

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error
	SendWithAttachment(ctx context.Context, from string, to []string, subject string, htmlBody string, attachment Attachment) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	return nil
}

func (p *NoOpProvider) SendWithAttachment(ctx context.Context, from string, to []string, subject string, htmlBody string, attachment Attachment) error {
	return nil
}
