package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	CategoryNameMaxLength = 100
	ProductNameMaxLength  = 200

	PriceMaxDigits   = 10
	PriceDecimals    = 2
	MinRating        = 1
	MaxRating        = 5
	requiredMessage  = "This field is required."
	invalidChoiceMsg = "Select a valid choice. That choice is not one of the available choices."
)

func maxLengthMessage(limit, got int) string {
	return fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", limit, got)
}

func validateName(errs ValidationErrors, name string, limit int) {
	if strings.TrimSpace(name) == "" {
		errs.Add("name", requiredMessage)
		return
	}
	if n := utf8.RuneCountInString(name); n > limit {
		errs.Add("name", maxLengthMessage(limit, n))
	}
}

// ValidatePrice checks that price fits a non-negative decimal(10,2) column.
// Digits are counted from the exponent so that values like 1e2000000000
// are rejected without being expanded.
func ValidatePrice(price decimal.Decimal) []string {
	var msgs []string
	if price.IsNegative() {
		msgs = append(msgs, "Ensure this value is greater than or equal to 0.")
	}
	if price.IsZero() {
		return msgs
	}
	exp, digits := int(price.Exponent()), price.NumDigits()
	// extra fractional digits must all be zeros; a coefficient shorter
	// than extra cannot end in that many zeros
	if extra := -exp - PriceDecimals; extra > 0 && (extra >= digits || !price.Equal(price.Round(PriceDecimals))) {
		msgs = append(msgs, fmt.Sprintf("Ensure that there are no more than %d decimal places.", PriceDecimals))
	}
	if whole := digits + exp; whole+PriceDecimals > PriceMaxDigits {
		msgs = append(msgs, fmt.Sprintf("Ensure that there are no more than %d digits in total.", PriceMaxDigits))
	}
	return msgs
}

func (c *Category) Validate() error {
	errs := ValidationErrors{}
	c.Name = strings.TrimSpace(c.Name)
	validateName(errs, c.Name, CategoryNameMaxLength)
	return errs.Err()
}

func (p *Product) Validate() error {
	errs := ValidationErrors{}
	p.Name = strings.TrimSpace(p.Name)
	validateName(errs, p.Name, ProductNameMaxLength)
	for _, msg := range ValidatePrice(p.Price) {
		errs.Add("price", msg)
	}
	if p.CategoryID == 0 {
		errs.Add("category", requiredMessage)
	}
	return errs.Err()
}

func (r *Review) Validate() error {
	errs := ValidationErrors{}
	if r.ProductID == 0 {
		errs.Add("product", requiredMessage)
	}
	if r.UserID == 0 {
		errs.Add("user", requiredMessage)
	}
	if r.Rating < MinRating {
		errs.Add("rating", fmt.Sprintf("Ensure this value is greater than or equal to %d.", MinRating))
	} else if r.Rating > MaxRating {
		errs.Add("rating", fmt.Sprintf("Ensure this value is less than or equal to %d.", MaxRating))
	}
	return errs.Err()
}
