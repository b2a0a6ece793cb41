package dedup

import "github.com/torobtools/offercatalog/models"

const maxSampleURLs = 3

// SellerStatistics aggregates offers per normalized seller: offer
// count, mean/min/max price, up to three sample URLs, and the number of
// distinct parts offered. Offers without a price are counted but
// excluded from the price aggregates. Pure aggregation, no dedup side
// effects.
func (d *Deduplicator) SellerStatistics(offers []models.Offer) map[string]models.SellerStats {
	type bucket struct {
		count    int
		prices   []int64
		urls     []string
		urlSeen  map[string]struct{}
		partSeen map[int]struct{}
	}

	buckets := make(map[string]*bucket)
	for _, offer := range offers {
		seller := offer.SellerNameNorm
		if seller == "" {
			seller = d.NormalizeSeller(offer.SellerName)
		}

		b, ok := buckets[seller]
		if !ok {
			b = &bucket{
				urlSeen:  make(map[string]struct{}),
				partSeen: make(map[int]struct{}),
			}
			buckets[seller] = b
		}

		b.count++
		if price := priceToman(offer); price > 0 {
			b.prices = append(b.prices, price)
		}
		if offer.ProductURL != "" {
			if _, seen := b.urlSeen[offer.ProductURL]; !seen {
				b.urlSeen[offer.ProductURL] = struct{}{}
				b.urls = append(b.urls, offer.ProductURL)
			}
		}
		b.partSeen[offer.PartID] = struct{}{}
	}

	stats := make(map[string]models.SellerStats, len(buckets))
	for seller, b := range buckets {
		s := models.SellerStats{
			Seller:     seller,
			OfferCount: b.count,
			PartsCount: len(b.partSeen),
		}
		if len(b.prices) > 0 {
			var sum int64
			s.MinPriceToman = b.prices[0]
			s.MaxPriceToman = b.prices[0]
			for _, p := range b.prices {
				sum += p
				if p < s.MinPriceToman {
					s.MinPriceToman = p
				}
				if p > s.MaxPriceToman {
					s.MaxPriceToman = p
				}
			}
			s.AvgPriceToman = sum / int64(len(b.prices))
		}
		if len(b.urls) > maxSampleURLs {
			s.SampleURLs = b.urls[:maxSampleURLs]
		} else {
			s.SampleURLs = b.urls
		}
		stats[seller] = s
	}
	return stats
}

func priceToman(offer models.Offer) int64 {
	if offer.PriceToman > 0 {
		return offer.PriceToman
	}
	return offer.Price
}
