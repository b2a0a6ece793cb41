package textnorm

import (
	"strconv"
	"strings"

	"github.com/torobtools/offercatalog/models"
)

var (
	priceSeparators    = []string{",", "،", ".", " "}
	currencyIndicators = []string{"تومان", "ریال", "ﺗﻮﻣﺎﻥ", "ﺭﯾﺎﻝ", "تومن", "ریل"}
	tomanIndicators    = []string{"تومان", "تومن", "ﺗﻮﻣﺎﻥ"}
	rialIndicators     = []string{"ریال", "ریل", "ﺭﯾﺎﻝ"}
)

// ExtractPrice pulls a price out of free-form text and returns it in the
// smallest currency subunit. Listings often mix the price with counts or
// model numbers; the largest numeric run wins. Returns 0 when no price
// is present.
func ExtractPrice(text string) int64 {
	if text == "" {
		return 0
	}

	text = NormalizeDigits(text)
	for _, indicator := range currencyIndicators {
		text = strings.ReplaceAll(text, indicator, "")
	}

	var best int64
	for _, run := range numericRuns(text) {
		for _, sep := range priceSeparators {
			run = strings.ReplaceAll(run, sep, "")
		}
		price, err := strconv.ParseInt(run, 10, 64)
		if err != nil || price <= 0 {
			continue
		}
		if price > best {
			best = price
		}
	}
	return best
}

// numericRuns extracts maximal digit sequences, keeping separator
// characters that join digit groups (1,234,567 stays one run).
func numericRuns(text string) []string {
	var runs []string
	var current strings.Builder
	runes := []rune(text)

	flush := func() {
		if current.Len() > 0 {
			runs = append(runs, strings.Trim(current.String(), ",،. "))
			current.Reset()
		}
	}

	for i, r := range runes {
		switch {
		case r >= '0' && r <= '9':
			current.WriteRune(r)
		case (r == ',' || r == '،' || r == '.') && current.Len() > 0 &&
			i+1 < len(runes) && runes[i+1] >= '0' && runes[i+1] <= '9':
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return runs
}

// DetectCurrencyUnit reports whether text quotes a price in toman or
// rial. Toman indicators take precedence when both appear.
func DetectCurrencyUnit(text string) string {
	lower := strings.ToLower(text)
	for _, indicator := range tomanIndicators {
		if strings.Contains(lower, indicator) {
			return models.CurrencyToman
		}
	}
	for _, indicator := range rialIndicators {
		if strings.Contains(lower, indicator) {
			return models.CurrencyRial
		}
	}
	return models.CurrencyUnknown
}

// RialToToman converts an amount in rial to toman.
func RialToToman(rial int64) int64 {
	return rial / 10
}

// TomanToRial converts an amount in toman to rial.
func TomanToRial(toman int64) int64 {
	return toman * 10
}

// FormatPrice renders a price with thousand separators and a currency
// suffix for human-readable output.
func FormatPrice(price int64, currency string) string {
	formatted := groupThousands(price)
	switch currency {
	case models.CurrencyToman:
		formatted += " تومان"
	case models.CurrencyRial:
		formatted += " ریال"
	}
	return formatted
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}
