package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torobtools/offercatalog/models"
)

func sampleOffers() []models.Offer {
	return []models.Offer{
		{
			PartID:         1,
			TitleRaw:       "سپر جلو تیگو 8",
			PriceText:      "۱,۲۰۰,۰۰۰ تومان",
			Price:          1200000,
			PriceToman:     1200000,
			CurrencyUnit:   models.CurrencyToman,
			SellerName:     "فروشگاه یدک پارت",
			SellerNameNorm: "یدک پارت",
			TitleNorm:      "سپر جلو تیگو 8",
			PartKey:        "BODY:BUMPER:FRONT:UNKNOWN",
			PartNameNorm:   "Tiggo8 Bumper FRONT",
			Relevance:      0.8,
			ProductURL:     "https://example.com/p/1",
			Availability:   "موجود",
			SnapshotAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			PartID:     2,
			TitleRaw:   "کاپوت تیگو 8",
			SellerName: "آریا یدک",
		},
	}
}

func TestCSVWriter(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "offers.csv")
	w, err := NewCSVWriter(filename)
	if err != nil {
		t.Fatalf("NewCSVWriter() error = %v", err)
	}

	if err := w.Write(sampleOffers()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header plus 2 records", len(records))
	}
	if records[0][0] != "part_id" || records[0][len(records[0])-1] != "snapshot_ts" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][0] != "1" || records[1][1] != "سپر جلو تیگو 8" {
		t.Errorf("first record = %v", records[1])
	}
	if records[1][4] != "1200000" {
		t.Errorf("price_toman column = %q, want 1200000", records[1][4])
	}
	if records[1][11] != "0.800" {
		t.Errorf("relevance column = %q, want 0.800", records[1][11])
	}
	if records[2][0] != "2" {
		t.Errorf("second record = %v", records[2])
	}
}

func TestJSONWriter(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "offers.json")
	w, err := NewJSONWriter(filename)
	if err != nil {
		t.Fatalf("NewJSONWriter() error = %v", err)
	}

	if err := w.Write(sampleOffers()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d JSONL lines, want 2", len(lines))
	}

	var offer models.Offer
	if err := json.Unmarshal([]byte(lines[0]), &offer); err != nil {
		t.Fatalf("decoding first line: %v", err)
	}
	if offer.PartID != 1 || offer.PartKey != "BODY:BUMPER:FRONT:UNKNOWN" {
		t.Errorf("first offer = %+v", offer)
	}
	if offer.Identity != (models.PartIdentity{}) {
		// Identity serializes under the attributes key.
		t.Errorf("Identity = %+v, want zero for a zero input", offer.Identity)
	}
}

func TestJSONWriterEmptyValidateFails(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "offers.json")
	w, err := NewJSONWriter(filename)
	if err != nil {
		t.Fatalf("NewJSONWriter() error = %v", err)
	}
	defer w.Close()

	if err := w.Validate(); err == nil {
		t.Error("Validate() on empty output expected error, got nil")
	}
}

func TestDualWriter(t *testing.T) {
	dir := t.TempDir()
	csvFile := filepath.Join(dir, "offers.csv")
	jsonFile := filepath.Join(dir, "offers.json")

	w, err := NewDualWriter(csvFile, jsonFile)
	if err != nil {
		t.Fatalf("NewDualWriter() error = %v", err)
	}

	if err := w.Write(sampleOffers()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, f := range []string{csvFile, jsonFile} {
		info, err := os.Stat(f)
		if err != nil {
			t.Errorf("missing output %s: %v", f, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("output %s is empty", f)
		}
	}
}

func TestWriterCreatesDirectories(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nested", "out", "offers.csv")
	w, err := NewCSVWriter(filename)
	if err != nil {
		t.Fatalf("NewCSVWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(filename); err != nil {
		t.Errorf("output file not created: %v", err)
	}
}
