// Package tax computes invoice amount breakdowns.
//
// All rates are percentages (21.0 means 21%). Amounts keep full float
// precision; rounding to two decimals happens only at render time.
package tax

// DefaultRate is the standard Spanish VAT percentage applied when the
// caller does not supply one.
const DefaultRate = 21.0

// Breakdown is an invoice amount split into its taxable parts.
type Breakdown struct {
	Base  float64
	Rate  float64
	Tax   float64
	Total float64
}

// FromGross derives the breakdown from a tax-inclusive gross amount,
// as extracted from a purchase ticket.
func FromGross(gross, rate float64) Breakdown {
	if rate <= 0 {
		rate = DefaultRate
	}
	base := gross / (1 + rate/100)
	return Breakdown{
		Base:  base,
		Rate:  rate,
		Tax:   gross - base,
		Total: gross,
	}
}

// FromBase derives the breakdown from a tax-exclusive base amount,
// as entered on a directly created invoice.
func FromBase(base, rate float64) Breakdown {
	if rate <= 0 {
		rate = DefaultRate
	}
	taxAmount := base * rate / 100
	return Breakdown{
		Base:  base,
		Rate:  rate,
		Tax:   taxAmount,
		Total: base + taxAmount,
	}
}
