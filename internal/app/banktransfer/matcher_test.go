package banktransfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOrderNumber(t *testing.T) {
	tests := []struct {
		name      string
		fields    []string
		candidate string
		rule      string
		ok        bool
	}{
		{
			name:      "order prefix in memo",
			fields:    []string{"CHUYEN TIEN ORD251100012 THANH TOAN", "", ""},
			candidate: "ORD251100012",
			rule:      "order_prefix",
			ok:        true,
		},
		{
			name:      "legacy prefix in memo",
			fields:    []string{"thanh toan DH2511000034", "", ""},
			candidate: "DH2511000034",
			rule:      "legacy_prefix",
			ok:        true,
		},
		{
			name:      "bare digit run as last resort",
			fields:    []string{"ck don 251100012 cam on shop", "", ""},
			candidate: "251100012",
			rule:      "digit_run",
			ok:        true,
		},
		{
			name:      "order prefix beats digit run within one field",
			fields:    []string{"123456789 ORD251100012", "", ""},
			candidate: "ORD251100012",
			rule:      "order_prefix",
			ok:        true,
		},
		{
			name:      "earlier field beats later field",
			fields:    []string{"ck don 999999 cam on", "ORD251100012", ""},
			candidate: "999999",
			rule:      "digit_run",
			ok:        true,
		},
		{
			name:      "empty memo falls through to code",
			fields:    []string{"", "ORD251100012", ""},
			candidate: "ORD251100012",
			rule:      "order_prefix",
			ok:        true,
		},
		{
			name:      "reference code as final fallback",
			fields:    []string{"", "", "FT25310ORD251100012"},
			candidate: "",
			rule:      "",
			ok:        false,
		},
		{
			name:      "reference code token match",
			fields:    []string{"", "", "ORD251100012 FT99"},
			candidate: "ORD251100012",
			rule:      "order_prefix",
			ok:        true,
		},
		{
			name:   "too short digit run is not a candidate",
			fields: []string{"don 12345", "", ""},
			ok:     false,
		},
		{
			name:   "no candidate anywhere",
			fields: []string{"tien an trua", "", ""},
			ok:     false,
		},
		{
			name:   "ORD prefix needs six trailing characters",
			fields: []string{"ORD12 xin chao", "", ""},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, rule, ok := extractOrderNumber(tt.fields...)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.candidate, candidate)
				assert.Equal(t, tt.rule, rule)
			}
		})
	}
}

func TestExtractOrderNumberDeterministic(t *testing.T) {
	fields := []string{"ORD111111 then DH222222 then 333333", "", ""}
	first, rule, ok := extractOrderNumber(fields...)
	assert.True(t, ok)
	for i := 0; i < 100; i++ {
		got, gotRule, gotOK := extractOrderNumber(fields...)
		assert.Equal(t, first, got)
		assert.Equal(t, rule, gotRule)
		assert.True(t, gotOK)
	}
}

func TestNumberVariants(t *testing.T) {
	assert.Equal(t,
		[]string{"ORD251100012", "ORD-251100012"},
		numberVariants("ORD251100012"))

	assert.Equal(t,
		[]string{"ORD-251100012", "ORD251100012"},
		numberVariants("ORD-251100012"))

	// All digits: nothing to normalize.
	assert.Equal(t, []string{"251100012"}, numberVariants("251100012"))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "251100012", digitsOnly("ORD-2511.00012"))
	assert.Equal(t, "", digitsOnly("ORDABC"))
}
