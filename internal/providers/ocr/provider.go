// Package ocr integrates the external text recognition service that
// reads scanned purchase tickets.
package ocr

import "context"

type Provider interface {
	// ExtractText uploads the ticket image and returns the recognized
	// plain text.
	ExtractText(ctx context.Context, image []byte, filename string) (string, error)
}

// NoOpProvider is used in tests and when no API key is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) ExtractText(ctx context.Context, image []byte, filename string) (string, error) {
	return "", nil
}
