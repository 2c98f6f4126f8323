package models

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{}
	assert.NoError(t, errs.Err())

	errs.Add("price", "too low")
	errs.Merge(ValidationErrors{"name": {"required"}, "price": {"too precise"}})

	assert.Equal(t, "too low", errs.First("price"))
	assert.Empty(t, errs.First("category"))
	assert.EqualError(t, errs.Err(), "validation failed: name: required; price: too low too precise")

	wrapped := fmt.Errorf("create product: %w", errs)
	got, ok := AsValidation(wrapped)
	assert.True(t, ok)
	assert.Len(t, got, 2)

	_, ok = AsValidation(ErrProductNotFound)
	assert.False(t, ok)
}

func TestValidatePrice(t *testing.T) {
	testCases := []struct {
		price string
		ok    bool
	}{
		{"0", true},
		{"999.99", true},
		{"12345678.99", true},
		{"1.50000", true},
		{"-0.01", false},
		{"1.999", false},
		{"123456789", false},
		{"0.010", true},
		{"0.001", false},
		{"0e2000000000", true},
		{"1e2000000000", false},
		{"1e-2000000000", false},
	}
	for _, tc := range testCases {
		t.Run(tc.price, func(t *testing.T) {
			msgs := ValidatePrice(decimal.RequireFromString(tc.price))
			assert.Equal(t, tc.ok, len(msgs) == 0, msgs)
		})
	}
}
