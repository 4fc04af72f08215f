package screen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kmorwood/sieve/internal/models"
)

func result(mut func(*models.ScreenResult)) *models.ScreenResult {
	r := &models.ScreenResult{
		Symbol:       "AAPL",
		Sector:       "Technology",
		Price:        95.0,
		DMIComposite: 35.5,
		ADX:          22.0,
		PPOSlopePct:  1.2,
		PPOHook:      models.HookNone,
	}
	if mut != nil {
		mut(r)
	}
	return r
}

func TestNilSpecAdmitsEverything(t *testing.T) {
	assert.True(t, Match(result(nil), nil))
}

func TestPriceUnder(t *testing.T) {
	spec := &models.FilterSpec{Price: &models.PriceFilter{Type: models.PriceFilterUnder, Under: 100}}

	tests := []struct {
		name  string
		price float64
		want  bool
	}{
		{"well under", 95.0, true},
		{"exactly at threshold excluded", 100.0, false},
		{"over", 150.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := result(func(r *models.ScreenResult) { r.Price = tt.price })
			assert.Equal(t, tt.want, Match(r, spec))
		})
	}
}

func TestPriceRange(t *testing.T) {
	spec := &models.FilterSpec{Price: &models.PriceFilter{Type: models.PriceFilterRange, Min: 50, Max: 100}}

	tests := []struct {
		price float64
		want  bool
	}{
		{49.99, false},
		{50.0, true},
		{75.0, true},
		{100.0, true},
		{100.01, false},
	}
	for _, tt := range tests {
		r := result(func(r *models.ScreenResult) { r.Price = tt.price })
		assert.Equal(t, tt.want, Match(r, spec), "price %v", tt.price)
	}
}

func TestDMIClosedInterval(t *testing.T) {
	spec := &models.FilterSpec{DMI: &models.DMIFilter{Min: 20, Max: 60}}

	tests := []struct {
		composite float64
		want      bool
	}{
		{19.99, false},
		{20.0, true},
		{35.5, true},
		{60.0, true},
		{60.01, false},
	}
	for _, tt := range tests {
		r := result(func(r *models.ScreenResult) { r.DMIComposite = tt.composite })
		assert.Equal(t, tt.want, Match(r, spec), "composite %v", tt.composite)
	}
}

func TestDMIUsesCompositeNotADX(t *testing.T) {
	spec := &models.FilterSpec{DMI: &models.DMIFilter{Min: 20, Max: 60}}

	// ADX inside the band, composite outside: must be rejected.
	r := result(func(r *models.ScreenResult) {
		r.ADX = 40.0
		r.DMIComposite = 75.0
	})
	assert.False(t, Match(r, spec))
}

func TestPPOSlopeSignedThreshold(t *testing.T) {
	tests := []struct {
		name  string
		min   float64
		slope float64
		want  bool
	}{
		{"positive min met", 1.0, 1.5, true},
		{"positive min missed", 1.0, 0.5, false},
		{"negative min admits decliners", -2.0, -1.5, true},
		{"negative min floor", -2.0, -2.5, false},
		{"exact threshold passes", 1.0, 1.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &models.FilterSpec{PPOSlope: &models.PPOSlopeFilter{MinSlopePct: tt.min}}
			r := result(func(r *models.ScreenResult) { r.PPOSlopePct = tt.slope })
			assert.Equal(t, tt.want, Match(r, spec))
		})
	}
}

func TestHookModes(t *testing.T) {
	tests := []struct {
		mode models.HookFilterMode
		hook models.HookType
		want bool
	}{
		{models.HookFilterAll, models.HookNone, true},
		{models.HookFilterAll, models.HookPositive, true},
		{"", models.HookNegative, true},
		{models.HookFilterPositive, models.HookPositive, true},
		{models.HookFilterPositive, models.HookNegative, false},
		{models.HookFilterPositive, models.HookNone, false},
		{models.HookFilterNegative, models.HookNegative, true},
		{models.HookFilterNegative, models.HookPositive, false},
		{models.HookFilterBoth, models.HookPositive, true},
		{models.HookFilterBoth, models.HookNegative, true},
		{models.HookFilterBoth, models.HookNone, false},
	}
	for _, tt := range tests {
		spec := &models.FilterSpec{Hook: tt.mode}
		r := result(func(r *models.ScreenResult) { r.PPOHook = tt.hook })
		assert.Equal(t, tt.want, Match(r, spec), "mode %q hook %q", tt.mode, tt.hook)
	}
}

func TestSectorCaseInsensitive(t *testing.T) {
	spec := &models.FilterSpec{Sector: "technology"}
	assert.True(t, Match(result(nil), spec))

	spec.Sector = "Energy"
	assert.False(t, Match(result(nil), spec))
}

func TestFiltersANDCombined(t *testing.T) {
	spec := &models.FilterSpec{
		Price: &models.PriceFilter{Type: models.PriceFilterUnder, Under: 100},
		DMI:   &models.DMIFilter{Min: 20, Max: 60},
	}

	assert.True(t, Match(result(nil), spec))

	// One failing sub-filter rejects the whole result.
	r := result(func(r *models.ScreenResult) { r.Price = 150.0 })
	assert.False(t, Match(r, spec))
}

func TestApplyPreservesOrder(t *testing.T) {
	spec := &models.FilterSpec{Price: &models.PriceFilter{Type: models.PriceFilterUnder, Under: 100}}
	in := []*models.ScreenResult{
		result(func(r *models.ScreenResult) { r.Symbol = "A"; r.Price = 10 }),
		result(func(r *models.ScreenResult) { r.Symbol = "B"; r.Price = 200 }),
		result(func(r *models.ScreenResult) { r.Symbol = "C"; r.Price = 50 }),
	}

	out := Apply(in, spec)
	assert.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Symbol)
	assert.Equal(t, "C", out[1].Symbol)
}

func TestValidateRejectsMalformedSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec *models.FilterSpec
		ok   bool
	}{
		{"nil spec", nil, true},
		{"empty spec", &models.FilterSpec{}, true},
		{"under zero", &models.FilterSpec{Price: &models.PriceFilter{Type: models.PriceFilterUnder}}, false},
		{"inverted range", &models.FilterSpec{Price: &models.PriceFilter{Type: models.PriceFilterRange, Min: 100, Max: 50}}, false},
		{"unknown price type", &models.FilterSpec{Price: &models.PriceFilter{Type: "between"}}, false},
		{"inverted dmi", &models.FilterSpec{DMI: &models.DMIFilter{Min: 60, Max: 20}}, false},
		{"unknown hook mode", &models.FilterSpec{Hook: "sideways"}, false},
		{"valid combined", &models.FilterSpec{
			Price: &models.PriceFilter{Type: models.PriceFilterRange, Min: 10, Max: 50},
			DMI:   &models.DMIFilter{Min: 20, Max: 60},
			Hook:  models.HookFilterBoth,
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
