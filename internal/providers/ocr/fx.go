package ocr

import (
	"github.com/facturio/facturio/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.ocr",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.OCRAPIKey == "" {
		return &NoOpProvider{}
	}
	return NewOCRSpace(Config{
		Endpoint: cfg.OCREndpoint,
		APIKey:   cfg.OCRAPIKey,
		Language: cfg.OCRLanguage,
	})
}
