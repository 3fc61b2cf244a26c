// Package ocr turns raw ticket text from the OCR provider into
// structured purchase data.
//
// Ticket text is noisy: amounts use a decimal comma as often as a
// point, dates show up in half a dozen separators, and line items are
// best-effort. Parse never fails; every field it cannot find is nil
// and the caller decides which fields are mandatory.
package ocr

import (
	"regexp"
	"strconv"
	"strings"
)

// Item is a purchase line recovered from the ticket body.
type Item struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// Result is the structured view of a scanned ticket. Pointer fields
// distinguish "absent" from zero values.
type Result struct {
	Amount      *float64 `json:"amount"`
	Date        *string  `json:"date"`
	CompanyName *string  `json:"company_name"`
	NIF         *string  `json:"nif"`
	Items       []Item   `json:"items"`
	RawText     string   `json:"raw_text"`
}

var (
	totalPattern  = regexp.MustCompile(`(?i)total[:\s]*([0-9]+[,.]?[0-9]*)\s*€?`)
	amountPattern = regexp.MustCompile(`([0-9]+[,.]?[0-9]*)\s*€`)
	numberPattern = regexp.MustCompile(`[0-9]+[,.]?[0-9]*`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})`),
		regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2})`),
	}

	itemPattern = regexp.MustCompile(`(.+?)\s+(\d+[,.]?\d*)\s*x?\s*([0-9]+[,.]?[0-9]*)\s*€?`)

	nifPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Z]\d{8}\b`),      // CIF
		regexp.MustCompile(`\b\d{8}[A-Z]\b`),      // NIF
		regexp.MustCompile(`\b[A-Z]\d{7}[A-Z]\b`), // NIE
	}
)

// Parse extracts the purchase fields from raw OCR text.
func Parse(rawText string) Result {
	return Result{
		Amount:      extractAmount(rawText),
		Date:        extractDate(rawText),
		CompanyName: extractCompanyName(rawText),
		NIF:         extractNIF(rawText),
		Items:       extractItems(rawText),
		RawText:     rawText,
	}
}

// extractAmount prefers an explicit total label, then the last
// euro-suffixed amount, then the largest bare number on the ticket.
func extractAmount(text string) *float64 {
	if m := totalPattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseDecimal(m[1]); ok {
			return &v
		}
	}

	if matches := amountPattern.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		if v, ok := parseDecimal(matches[len(matches)-1][1]); ok {
			return &v
		}
	}

	var max float64
	found := false
	for _, token := range numberPattern.FindAllString(text, -1) {
		v, ok := parseDecimal(token)
		if !ok {
			continue
		}
		if !found || v > max {
			max = v
			found = true
		}
	}
	if found {
		return &max
	}
	return nil
}

// extractDate accepts D/M/YYYY with /, - or . separators. Two-digit
// years belong to this century.
func extractDate(text string) *string {
	for _, pattern := range datePatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		day, month, year := m[1], m[2], m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		formatted := year + "-" + pad2(month) + "-" + pad2(day)
		return &formatted
	}
	return nil
}

// extractCompanyName takes the first non-blank line. Tickets almost
// always open with the merchant name.
func extractCompanyName(text string) *string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return &trimmed
		}
	}
	return nil
}

// extractNIF matches Spanish CIF, NIF and NIE formats in that order.
func extractNIF(text string) *string {
	for _, pattern := range nifPatterns {
		if m := pattern.FindString(text); m != "" {
			return &m
		}
	}
	return nil
}

// extractItems recovers "description quantity x price" lines.
// Best effort only; review happens before approval.
func extractItems(text string) []Item {
	var items []Item
	for _, line := range strings.Split(text, "\n") {
		m := itemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		quantity, okQty := parseDecimal(m[2])
		unitPrice, okPrice := parseDecimal(m[3])
		if !okQty || !okPrice {
			continue
		}

		items = append(items, Item{
			Description: strings.TrimSpace(m[1]),
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  quantity * unitPrice,
		})
	}
	return items
}

func parseDecimal(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
