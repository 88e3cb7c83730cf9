package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWeek(t *testing.T) {
	tests := []struct {
		week, year int
		code       string
	}{
		{1, 2000, ""},
		{53, 2100, ""},
		{0, 2024, "invalid_week"},
		{54, 2024, "invalid_week"},
		{10, 1999, "invalid_year"},
		{10, 2101, "invalid_year"},
	}
	for _, tt := range tests {
		err := ValidateWeek(tt.week, tt.year)
		if tt.code == "" {
			assert.NoError(t, err, "week %d year %d", tt.week, tt.year)
			continue
		}
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Equal(t, tt.code, CodeOf(err), "week %d year %d", tt.week, tt.year)
	}
}

func TestValidateHousehold(t *testing.T) {
	assert.NoError(t, ValidateHousehold(7))
	assert.Equal(t, "invalid_household", CodeOf(ValidateHousehold(0)))
	assert.Equal(t, "invalid_household", CodeOf(ValidateHousehold(-3)))
}
