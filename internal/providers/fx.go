package providers

import (
	"go.uber.org/fx"

	"github.com/facturio/facturio/internal/providers/email"
	"github.com/facturio/facturio/internal/providers/ocr"
	"github.com/facturio/facturio/internal/providers/pdf"
)

var Module = fx.Module("providers",
	email.Module,
	ocr.Module,
	pdf.Module,
)
