package utils

import (
	"fmt"
	"math"
)

type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

var SupportedCurrencies = map[string]Currency{
	"INR": {Code: "INR", Symbol: "₹", Name: "Indian Rupee"},
	"USD": {Code: "USD", Symbol: "$", Name: "US Dollar"},
	"EUR": {Code: "EUR", Symbol: "€", Name: "Euro"},
	"GBP": {Code: "GBP", Symbol: "£", Name: "British Pound"},
}

func FormatCurrency(amount float64, currencyCode string) string {
	currency, exists := SupportedCurrencies[currencyCode]
	if !exists {
		currency = SupportedCurrencies[DefaultCurrency]
	}

	return fmt.Sprintf("%s%.2f", currency.Symbol, roundCurrency(amount))
}

func ValidateCurrencyCode(code string) bool {
	_, exists := SupportedCurrencies[code]
	return exists
}

// roundCurrency rounds to the minor unit. Every supported currency has two
// decimal places.
func roundCurrency(amount float64) float64 {
	return math.Round(amount*100) / 100
}
