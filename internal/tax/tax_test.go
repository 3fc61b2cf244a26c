package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromGrossSplitsStandardRate(t *testing.T) {
	b := FromGross(24.20, DefaultRate)

	assert.InDelta(t, 20.0, b.Base, 0.001)
	assert.InDelta(t, 4.20, b.Tax, 0.001)
	assert.InDelta(t, 24.20, b.Total, 1e-9)
}

func TestFromGrossRoundTrips(t *testing.T) {
	for _, gross := range []float64{0, 0.01, 1, 24.20, 99.99, 1234.56, 100000} {
		b := FromGross(gross, DefaultRate)
		assert.InDelta(t, gross, b.Base+b.Tax, 1e-9, "gross=%v", gross)
	}
}

func TestFromBaseAddsTax(t *testing.T) {
	b := FromBase(100, 21)

	assert.InDelta(t, 21.0, b.Tax, 1e-9)
	assert.InDelta(t, 121.0, b.Total, 1e-9)
}

func TestBothEntryPointsAgree(t *testing.T) {
	// A gross split and a base markup at the same rate must describe
	// the same invoice.
	fromGross := FromGross(121.0, 21)
	fromBase := FromBase(fromGross.Base, 21)

	assert.InDelta(t, fromGross.Tax, fromBase.Tax, 1e-9)
	assert.InDelta(t, fromGross.Total, fromBase.Total, 1e-9)
}

func TestZeroRateFallsBackToDefault(t *testing.T) {
	b := FromBase(100, 0)
	assert.Equal(t, DefaultRate, b.Rate)
}
