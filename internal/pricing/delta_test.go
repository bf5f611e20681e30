package pricing

import (
	"math"
	"testing"

	"shoonya-screener/internal/models"
)

func TestNormalCDF(t *testing.T) {
	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0.5},
		{1.0, 0.8413},
		{-1.0, 0.1587},
		{1.96, 0.9750},
		{-1.96, 0.0250},
		{3.5, 0.9998},
	}

	// The approximation is good to about 1.5e-7; the table values are
	// rounded to four places.
	for _, tt := range tests {
		if got := NormalCDF(tt.x); math.Abs(got-tt.want) > 5e-4 {
			t.Errorf("NormalCDF(%v) = %f, want %f", tt.x, got, tt.want)
		}
	}
}

func TestNormalCDFSymmetry(t *testing.T) {
	for _, x := range []float64{0.1, 0.5, 1.3, 2.7} {
		sum := NormalCDF(x) + NormalCDF(-x)
		if math.Abs(sum-1) > 1e-7 {
			t.Errorf("NormalCDF(%v) + NormalCDF(-%v) = %f, want 1", x, x, sum)
		}
	}
}

func TestDeltaDegenerateInputs(t *testing.T) {
	cases := []struct {
		name                           string
		spot, strike, vol, years, rate float64
	}{
		{"zero years", 100, 100, 0.3, 0, 0.07},
		{"negative years", 100, 100, 0.3, -0.1, 0.07},
		{"zero vol", 100, 100, 0, 0.25, 0.07},
		{"zero spot", 0, 100, 0.3, 0.25, 0.07},
		{"zero strike", 100, 0, 0.3, 0.25, 0.07},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			for _, side := range []models.OptionSide{models.OptionCall, models.OptionPut} {
				if got := Delta(tt.spot, tt.strike, tt.vol, tt.years, tt.rate, side); got != 0 {
					t.Errorf("Delta(%s) = %f, want 0", side, got)
				}
			}
		})
	}
}

func TestDeltaATM(t *testing.T) {
	// At the money with modest vol and rate, the call delta sits a bit
	// above 0.5 and the put a bit above -0.5.
	call := Delta(1000, 1000, 0.3, 0.25, 0.07, models.OptionCall)
	put := Delta(1000, 1000, 0.3, 0.25, 0.07, models.OptionPut)

	if call < 0.5 || call > 0.65 {
		t.Errorf("ATM call delta = %f, want roughly 0.55", call)
	}
	if math.Abs((call-1)-put) > 1e-9 {
		t.Errorf("put delta %f should equal call delta - 1 (%f)", put, call-1)
	}
}

func TestDeltaMoneyness(t *testing.T) {
	deep := Delta(1000, 500, 0.3, 0.25, 0.07, models.OptionCall)
	far := Delta(1000, 2000, 0.3, 0.25, 0.07, models.OptionCall)

	if deep < 0.99 {
		t.Errorf("deep ITM call delta = %f, want ~1", deep)
	}
	if far > 0.01 {
		t.Errorf("far OTM call delta = %f, want ~0", far)
	}
}
