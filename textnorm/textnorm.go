// Package textnorm normalizes bilingual (Persian/English) marketplace
// text: digits, whitespace, seller names, and part titles.
package textnorm

import (
	"regexp"
	"strings"
)

var persianDigits = map[rune]rune{
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

var arabicDigits = map[rune]rune{
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// Seller names carry store-type affixes that differ between listings of
// the same shop.
var (
	sellerPrefixes = []string{"فروشگاه", "شرکت", "گروه", "مجموعه"}
	sellerSuffixes = []string{"store", "shop", "group", "co"}
)

// Filler words that do not distinguish one part title from another.
var titleNoiseWords = map[string]struct{}{
	"اصل":      {},
	"اصلی":     {},
	"یدکی":     {},
	"قطعه":     {},
	"پارت":     {},
	"part":     {},
	"oem":      {},
	"original": {},
}

// NormalizeDigits maps Persian and Arabic numeral glyphs to ASCII
// digits, leaving every other rune untouched. Idempotent.
func NormalizeDigits(text string) string {
	if text == "" {
		return text
	}
	return strings.Map(func(r rune) rune {
		if d, ok := persianDigits[r]; ok {
			return d
		}
		if d, ok := arabicDigits[r]; ok {
			return d
		}
		return r
	}, text)
}

// CleanWhitespace collapses whitespace runs (including tabs and
// newlines) to single spaces and trims both ends. Idempotent.
func CleanWhitespace(text string) string {
	if text == "" {
		return text
	}
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}

// Normalize applies digit and whitespace normalization. The composition
// is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	return CleanWhitespace(NormalizeDigits(text))
}

// NormalizeSellerName lowercases a seller name and strips store-type
// affixes so listings from the same shop compare equal.
func NormalizeSellerName(name string) string {
	if name == "" {
		return ""
	}
	name = CleanWhitespace(strings.ToLower(name))
	for _, prefix := range sellerPrefixes {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
		}
	}
	for _, suffix := range sellerSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSpace(name[:len(name)-len(suffix)])
		}
	}
	return name
}

// NormalizePartTitle lowercases a part title, collapses whitespace, and
// drops filler words, for comparison and dedup signatures.
func NormalizePartTitle(title string) string {
	if title == "" {
		return ""
	}
	title = strings.ToLower(CleanWhitespace(title))
	words := strings.Fields(title)
	kept := words[:0]
	for _, w := range words {
		if _, noise := titleNoiseWords[w]; noise {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
