// Package currency renders decimal amounts for display in the currency of an
// account's region.
package currency

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// regionCurrencies maps ISO 3166 alpha-2 region codes to ISO 4217 codes.
var regionCurrencies = map[string]string{
	"US": money.USD, "CA": money.CAD, "MX": money.MXN, "BR": money.BRL,
	"GB": money.GBP, "CH": money.CHF, "SE": money.SEK, "NO": money.NOK,
	"DK": money.DKK, "PL": money.PLN, "CZ": money.CZK, "HU": money.HUF,
	"FR": money.EUR, "DE": money.EUR, "ES": money.EUR, "IT": money.EUR,
	"NL": money.EUR, "BE": money.EUR, "AT": money.EUR, "IE": money.EUR,
	"PT": money.EUR, "FI": money.EUR, "GR": money.EUR, "LU": money.EUR,
	"JP": money.JPY, "CN": money.CNY, "KR": money.KRW, "IN": money.INR,
	"AU": money.AUD, "NZ": money.NZD, "SG": money.SGD, "HK": money.HKD,
	"ZA": money.ZAR, "NG": money.NGN, "TZ": money.TZS, "KE": money.KES,
}

// Code returns the ISO 4217 currency code used for region. Unknown regions
// are returned unchanged so that callers can pass a currency code directly.
func Code(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if code, ok := regionCurrencies[region]; ok {
		return code
	}
	return region
}

// lookup returns a never nil currency for region.
func lookup(region string) money.Currency {
	return *money.New(0, Code(region)).Currency()
}

// Format renders d in the currency of region, e.g. "$1,000.00" for "US".
// Codes without a known symbol are rendered as the code, a space and the
// number.
// The value is rounded to the currency's fraction digits and grouped without
// converting to a machine integer, so magnitude is unbounded.
func Format(region string, d decimal.Decimal) string {
	cur := lookup(region)

	neg := d.IsNegative()
	text := d.Abs().Round(int32(cur.Fraction)).StringFixed(int32(cur.Fraction))

	intPart, fracPart, _ := strings.Cut(text, ".")
	number := group(intPart, cur.Thousand)
	if cur.Fraction > 0 {
		number += cur.Decimal + fracPart
	}

	var out string
	if money.GetCurrency(cur.Code) == nil {
		// No symbol known: lead with the code, e.g. "XX 12.50".
		out = cur.Code + " " + number
	} else {
		out = strings.Replace(cur.Template, "1", number, 1)
		out = strings.Replace(out, "$", cur.Grapheme, 1)
	}
	if neg {
		out = "-" + out
	}
	return out
}

// group inserts sep every three digits from the right.
func group(digits, sep string) string {
	if len(digits) <= 3 || sep == "" {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
