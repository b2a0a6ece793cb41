package dedup

import (
	"testing"

	"github.com/torobtools/offercatalog/models"
)

func TestNormalizeSeller(t *testing.T) {
	d := New(DefaultOptions())

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips store prefix",
			input:    "فروشگاه یدک پارت",
			expected: "یدک پارت",
		},
		{
			name:     "empty name",
			input:    "",
			expected: UnknownSeller,
		},
		{
			name:     "plain name",
			input:    "یدک پارت",
			expected: "یدک پارت",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.NormalizeSeller(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeSeller(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestAddSellerMapping(t *testing.T) {
	d := New(DefaultOptions())
	d.AddSellerMapping([]string{"یدک پارت چری", "فروشگاه یدک پارت چری"}, "یدک پارت")

	if got := d.NormalizeSeller("یدک پارت چری"); got != "یدک پارت" {
		t.Errorf("alias did not resolve: got %q", got)
	}
	if got := d.NormalizeSeller("فروشگاه یدک پارت چری"); got != "یدک پارت" {
		t.Errorf("prefixed alias did not resolve: got %q", got)
	}
}

func TestNormalizeOffers(t *testing.T) {
	d := New(DefaultOptions())
	offers := []models.Offer{
		{
			TitleRaw:     "  سپر جلو   اصلی تیگو 8 ",
			SellerName:   "فروشگاه یدک پارت",
			Availability: " موجود ",
		},
	}

	got := d.NormalizeOffers(offers)
	if len(got) != len(offers) {
		t.Fatalf("NormalizeOffers() removed records: %d != %d", len(got), len(offers))
	}
	if got[0].TitleNorm != "سپر جلو تیگو 8" {
		t.Errorf("TitleNorm = %q, want %q", got[0].TitleNorm, "سپر جلو تیگو 8")
	}
	if got[0].SellerNameNorm != "یدک پارت" {
		t.Errorf("SellerNameNorm = %q, want %q", got[0].SellerNameNorm, "یدک پارت")
	}
	if got[0].TitleRaw != "سپر جلو اصلی تیگو 8" {
		t.Errorf("TitleRaw = %q, want whitespace cleaned", got[0].TitleRaw)
	}
	if got[0].Availability != "موجود" {
		t.Errorf("Availability = %q, want %q", got[0].Availability, "موجود")
	}
	if offers[0].TitleNorm != "" {
		t.Error("input slice was modified")
	}
}

func TestSignature(t *testing.T) {
	d := New(DefaultOptions())

	a := models.Offer{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000}
	b := models.Offer{PartID: 1, SellerName: "فروشگاه یدک پارت", TitleRaw: "سپر جلو اصلی تیگو 8", Price: 1000}
	if d.Signature(a) != d.Signature(b) {
		t.Error("normalized-equal offers should share a signature")
	}

	c := models.Offer{PartID: 2, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000}
	if d.Signature(a) == d.Signature(c) {
		t.Error("different parts must not share a signature")
	}
}

func TestDeduplicate(t *testing.T) {
	tests := []struct {
		name   string
		offers []models.Offer
		want   int
	}{
		{
			name:   "empty input",
			offers: nil,
			want:   0,
		},
		{
			name: "exact duplicates collapse",
			offers: []models.Offer{
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
			},
			want: 1,
		},
		{
			name: "filler words collapse",
			offers: []models.Offer{
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
				{PartID: 1, SellerName: "فروشگاه یدک پارت", TitleRaw: "سپر جلو اصلی تیگو 8", Price: 1000000},
			},
			want: 1,
		},
		{
			name: "near price near title merges",
			offers: []models.Offer{
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8 چری", Price: 1020000},
			},
			want: 1,
		},
		{
			name: "price divergence keeps both",
			offers: []models.Offer{
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1100000},
			},
			want: 2,
		},
		{
			name: "different sellers keep both",
			offers: []models.Offer{
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
				{PartID: 1, SellerName: "آریا یدک", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
			},
			want: 2,
		},
		{
			name: "different parts keep both",
			offers: []models.Offer{
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
				{PartID: 2, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
			},
			want: 2,
		},
		{
			name: "missing price does not block merge",
			offers: []models.Offer{
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8"},
				{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(DefaultOptions())
			got := d.Deduplicate(tt.offers)
			if len(got) != tt.want {
				t.Errorf("Deduplicate() kept %d offers, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDeduplicateDigitVariantTitles(t *testing.T) {
	// The same listing posted with an ASCII digit, a Persian digit, and
	// a filler word is one record: equal lengths, word overlap 6 of 8,
	// equal prices.
	d := New(DefaultOptions())
	offers := []models.Offer{
		{PartID: 1, SellerName: "یدک پارت", TitleRaw: "چراغ جلو چپ تیگو 8 پرو مکس", Price: 2000000},
		{PartID: 1, SellerName: "یدک پارت", TitleRaw: "چراغ جلو چپ تیگو ۸ پرو مکس اصل", Price: 2000000},
	}

	got := d.Deduplicate(offers)
	if len(got) != 1 {
		t.Fatalf("Deduplicate() kept %d offers, want 1: %+v", len(got), got)
	}
	if got[0].TitleRaw != offers[0].TitleRaw {
		t.Errorf("representative = %q, want the first-established offer", got[0].TitleRaw)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	d := New(DefaultOptions())
	offers := []models.Offer{
		{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
		{PartID: 1, SellerName: "فروشگاه یدک پارت", TitleRaw: "سپر جلو اصلی تیگو 8", Price: 1000000},
		{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8 چری", Price: 1020000},
		{PartID: 1, SellerName: "آریا یدک", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
		{PartID: 2, SellerName: "یدک پارت", TitleRaw: "کاپوت تیگو 8", Price: 500000},
	}

	once := d.Deduplicate(offers)
	twice := d.Deduplicate(once)
	if len(twice) != len(once) {
		t.Fatalf("second pass changed the record count: %d != %d", len(twice), len(once))
	}
	for i := range once {
		if twice[i] != once[i] {
			t.Errorf("second pass changed record %d: %+v != %+v", i, twice[i], once[i])
		}
	}
}

func TestDeduplicateKeepsMostComplete(t *testing.T) {
	d := New(DefaultOptions())
	offers := []models.Offer{
		{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8"},
		{PartID: 2, SellerName: "آریا یدک", TitleRaw: "کاپوت تیگو 8", Price: 500000},
		{
			PartID:     1,
			SellerName: "یدک پارت",
			TitleRaw:   "سپر جلو تیگو 8",
			Price:      1000000,
			ProductURL: "https://example.com/p/1",
		},
	}

	got := d.Deduplicate(offers)
	if len(got) != 2 {
		t.Fatalf("Deduplicate() kept %d offers, want 2", len(got))
	}
	// The richer duplicate replaces the first representative in place.
	if got[0].PartID != 1 || got[0].Price != 1000000 || got[0].ProductURL == "" {
		t.Errorf("representative for part 1 = %+v, want the complete offer", got[0])
	}
	if got[1].PartID != 2 {
		t.Errorf("second representative = %+v, want part 2", got[1])
	}
}

func TestDeduplicateAcrossAliasedSellers(t *testing.T) {
	d := New(DefaultOptions())
	d.AddSellerMapping([]string{"یدک پارت چری"}, "یدک پارت")

	offers := []models.Offer{
		{PartID: 1, SellerName: "یدک پارت", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
		{PartID: 1, SellerName: "یدک پارت چری", TitleRaw: "سپر جلو تیگو 8", Price: 1000000},
	}
	if got := d.Deduplicate(offers); len(got) != 1 {
		t.Errorf("aliased sellers should merge, kept %d", len(got))
	}
}

func TestCompleteness(t *testing.T) {
	bare := models.Offer{TitleRaw: "سپر جلو"}
	if got := Completeness(bare); got != 2 {
		t.Errorf("Completeness(title only) = %d, want 2", got)
	}

	full := models.Offer{
		TitleRaw:     "سپر جلو",
		Price:        1000000,
		SellerName:   "یدک پارت",
		ProductURL:   "https://example.com/p",
		SellerURL:    "https://example.com/s",
		Availability: "موجود",
		CurrencyUnit: models.CurrencyToman,
	}
	if got := Completeness(full); got != 11 {
		t.Errorf("Completeness(full) = %d, want 11", got)
	}

	unknownCurrency := full
	unknownCurrency.CurrencyUnit = models.CurrencyUnknown
	if got := Completeness(unknownCurrency); got != 10 {
		t.Errorf("Completeness(unknown currency) = %d, want 10", got)
	}
}
