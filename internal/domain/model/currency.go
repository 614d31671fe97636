package model

import "math"

// currencyExponents lists the currencies whose minor unit is not the usual
// two decimals. The provider expects amounts multiplied by 10^exponent.
var currencyExponents = map[string]int{
	"BHD": 3,
	"CVE": 0,
	"DJF": 0,
	"GNF": 0,
	"IDR": 0,
	"JOD": 3,
	"JPY": 0,
	"KMF": 0,
	"KRW": 0,
	"KWD": 3,
	"LYD": 3,
	"OMR": 3,
	"PYG": 0,
	"RWF": 0,
	"TND": 3,
	"UGX": 0,
	"VND": 0,
	"VUV": 0,
	"XAF": 0,
	"XOF": 0,
	"XPF": 0,
}

// CurrencyExponent returns the minor-unit exponent for a currency code,
// defaulting to 2.
func CurrencyExponent(currency string) int {
	if k, ok := currencyExponents[currency]; ok {
		return k
	}
	return 2
}

// MinorUnits converts a major-unit amount to the provider's minor-unit
// integer representation for the given currency.
func MinorUnits(amount float64, currency string) int64 {
	k := CurrencyExponent(currency)
	return int64(math.Round(amount * math.Pow10(k)))
}

// MajorUnits undoes MinorUnits.
func MajorUnits(minor int64, currency string) float64 {
	k := CurrencyExponent(currency)
	return float64(minor) / math.Pow10(k)
}
