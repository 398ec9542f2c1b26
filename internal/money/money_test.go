package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"plain", "6930.00", 693000},
		{"dollar sign", "$6,930.00", 693000},
		{"commas only", "1,234,567.89", 123456789},
		{"no fraction", "$1,234", 123400},
		{"one fraction digit", "12.5", 1250},
		{"surrounding noise", " $ 770.00 ]", 77000},
		{"zero", "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCents(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCents_Malformed(t *testing.T) {
	for _, input := range []string{"", "abc", "$", "1.2.3", "1.234"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseCents(input)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "6,930.00", FormatCents(693000))
	assert.Equal(t, "770.00", FormatCents(77000))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "1,234,567.89", FormatCents(123456789))
	assert.Equal(t, "$6,930.00", FormatUSD(693000))
}

func TestRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 5, 100, 77000, 693000, 123456789} {
		got, err := ParseCents(FormatUSD(cents))
		require.NoError(t, err)
		assert.Equal(t, cents, got)
	}
}
