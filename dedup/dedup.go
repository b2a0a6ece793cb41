// Package dedup collapses near-duplicate offers into one representative
// per real-world seller listing.
package dedup

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"github.com/torobtools/offercatalog/models"
	"github.com/torobtools/offercatalog/textnorm"
)

// UnknownSeller is the seller bucket for offers with no seller name.
const UnknownSeller = "UNKNOWN_SELLER"

// Options holds the similarity thresholds. The defaults are hand-tuned
// against marketplace data; they are fields, not literals, so callers
// can recalibrate.
type Options struct {
	// TitleLengthRatio is the minimum min/max title length ratio for
	// two titles to be comparable.
	TitleLengthRatio float64
	// TitleJaccard is the minimum word-overlap (intersection over
	// union) between two titles.
	TitleJaccard float64
	// PriceTolerance is the maximum relative price difference.
	PriceTolerance float64
}

// DefaultOptions returns the calibrated thresholds.
func DefaultOptions() Options {
	return Options{
		TitleLengthRatio: 0.7,
		TitleJaccard:     0.6,
		PriceTolerance:   0.05,
	}
}

// Deduplicator merges duplicate offers. It carries the caller-extendable
// seller alias table; the dedup scan itself is stateless between calls.
type Deduplicator struct {
	opts    Options
	aliases map[string]string
}

// New builds a deduplicator with the given thresholds.
func New(opts Options) *Deduplicator {
	return &Deduplicator{
		opts:    opts,
		aliases: make(map[string]string),
	}
}

// AddSellerMapping registers alias variants for a canonical seller
// name. Later lookups of any variant resolve to the canonical form.
func (d *Deduplicator) AddSellerMapping(variations []string, canonical string) {
	canonicalNorm := textnorm.NormalizeSellerName(canonical)
	for _, v := range variations {
		d.aliases[textnorm.NormalizeSellerName(v)] = canonicalNorm
	}
}

// NormalizeSeller resolves a raw seller name through the alias table,
// falling back to generic normalization.
func (d *Deduplicator) NormalizeSeller(name string) string {
	if name == "" {
		return UnknownSeller
	}
	normalized := textnorm.NormalizeSellerName(name)
	if canonical, ok := d.aliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// NormalizeOffers attaches the normalized seller name and title to a
// copy of every offer. No record is removed; this must run before
// Deduplicate so signatures see normalized fields.
func (d *Deduplicator) NormalizeOffers(offers []models.Offer) []models.Offer {
	out := make([]models.Offer, len(offers))
	for i, offer := range offers {
		offer.SellerNameNorm = d.NormalizeSeller(offer.SellerName)
		offer.TitleNorm = textnorm.NormalizePartTitle(offer.TitleRaw)
		offer.TitleRaw = textnorm.CleanWhitespace(offer.TitleRaw)
		offer.Availability = textnorm.CleanWhitespace(offer.Availability)
		out[i] = offer
	}
	return out
}

// Signature hashes the identity-bearing fields of an offer. Two offers
// with equal signatures are definite duplicates.
func (d *Deduplicator) Signature(offer models.Offer) uint64 {
	seller := offer.SellerNameNorm
	if seller == "" {
		seller = d.NormalizeSeller(offer.SellerName)
	}
	title := offer.TitleNorm
	if title == "" {
		title = textnorm.NormalizePartTitle(offer.TitleRaw)
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s:%s:%d", offer.PartID, seller, title, offer.Price)
	return h.Sum64()
}

// isSimilar reports whether two offers with different signatures still
// describe the same listing. Conditions on absent fields (empty titles,
// unknown prices) are skipped, not treated as mismatches.
func (d *Deduplicator) isSimilar(a, b models.Offer) bool {
	if a.PartID != b.PartID {
		return false
	}
	if d.NormalizeSeller(a.SellerName) != d.NormalizeSeller(b.SellerName) {
		return false
	}

	titleA := textnorm.NormalizePartTitle(a.TitleRaw)
	titleB := textnorm.NormalizePartTitle(b.TitleRaw)
	if titleA != "" && titleB != "" {
		lenA := utf8.RuneCountInString(titleA)
		lenB := utf8.RuneCountInString(titleB)
		shorter, longer := lenA, lenB
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		if float64(shorter)/float64(longer) < d.opts.TitleLengthRatio {
			return false
		}
		if jaccard(titleA, titleB) < d.opts.TitleJaccard {
			return false
		}
	}

	if a.Price > 0 && b.Price > 0 {
		diff := a.Price - b.Price
		if diff < 0 {
			diff = -diff
		}
		max := a.Price
		if b.Price > max {
			max = b.Price
		}
		if float64(diff)/float64(max) > d.opts.PriceTolerance {
			return false
		}
	}

	return true
}

func jaccard(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 1
	}

	setA := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// Completeness ranks how much useful information an offer carries. It is
// a total order used to pick the representative of an equivalence class.
func Completeness(offer models.Offer) int {
	score := 0
	if offer.TitleRaw != "" {
		score += 2
	}
	if offer.Price > 0 {
		score += 3
	}
	if offer.SellerName != "" {
		score += 2
	}
	if offer.ProductURL != "" {
		score++
	}
	if offer.SellerURL != "" {
		score++
	}
	if offer.Availability != "" {
		score++
	}
	if offer.CurrencyUnit != "" && offer.CurrencyUnit != models.CurrencyUnknown {
		score++
	}
	return score
}

type slot struct {
	offer models.Offer
	sig   uint64
}

// Deduplicate collapses duplicates, keeping the most complete member of
// each equivalence class. Membership is pairwise against the current
// representatives only, never transitively re-chained, so each insertion
// costs one index lookup plus at most one scan of the kept set. Output
// order is the order representatives were first established; a
// superseding offer replaces its predecessor in place.
func (d *Deduplicator) Deduplicate(offers []models.Offer) []models.Offer {
	if len(offers) == 0 {
		return nil
	}

	kept := make([]slot, 0, len(offers))
	index := make(map[uint64]int, len(offers))

	for _, offer := range offers {
		sig := d.Signature(offer)

		if pos, ok := index[sig]; ok {
			if Completeness(offer) > Completeness(kept[pos].offer) {
				kept[pos].offer = offer
			}
			continue
		}

		matched := false
		for pos := range kept {
			if !d.isSimilar(offer, kept[pos].offer) {
				continue
			}
			if Completeness(offer) > Completeness(kept[pos].offer) {
				delete(index, kept[pos].sig)
				kept[pos] = slot{offer: offer, sig: sig}
				index[sig] = pos
			}
			matched = true
			break
		}
		if !matched {
			index[sig] = len(kept)
			kept = append(kept, slot{offer: offer, sig: sig})
		}
	}

	out := make([]models.Offer, len(kept))
	for i, s := range kept {
		out[i] = s.offer
	}
	return out
}
