// Package pipeline reduces raw marketplace listings into a clean,
// deduplicated, relevance-scored catalog of seller offers.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/torobtools/offercatalog/cache"
	"github.com/torobtools/offercatalog/config"
	"github.com/torobtools/offercatalog/dedup"
	"github.com/torobtools/offercatalog/models"
	"github.com/torobtools/offercatalog/relevance"
	"github.com/torobtools/offercatalog/scheduler"
	"github.com/torobtools/offercatalog/taxonomy"
	"github.com/torobtools/offercatalog/textnorm"
)

// Fetcher is the external scraping collaborator. Implementations own
// all page I/O, timeouts, and retries; the pipeline only consumes the
// extracted records.
type Fetcher interface {
	// SearchParts returns the raw candidate offers for a keyword query.
	SearchParts(ctx context.Context, keywords string) ([]models.Offer, error)
	// ProductDetails drills down into one product page and returns its
	// per-seller offers. A nil result with nil error means the page had
	// no offer data.
	ProductDetails(ctx context.Context, productURL string) (*models.ProductDetails, error)
}

// QueryResult is the reduced offer set for one part query.
type QueryResult struct {
	Query  models.PartQuery
	Offers []models.Offer
}

// RunStats summarizes a ProcessAll run.
type RunStats struct {
	PartsProcessed int
	PartsFailed    int
	TotalOffers    int
	UniqueSellers  int
	AvgRelevance   float64
	Elapsed        time.Duration
}

// Catalog wires the normalization, filtering, deduplication, cache, and
// scheduling components into one query pipeline. All collaborators are
// injected; the catalog holds no process-wide state.
type Catalog struct {
	cfg     *config.Config
	fetcher Fetcher
	filter  *relevance.Filter
	dedup   *dedup.Deduplicator
	store   *cache.Store
	runner  *scheduler.Runner
	Metrics *Metrics
}

// New builds a catalog from validated configuration. The store may be
// a disabled instance; the fetcher must not be nil.
func New(cfg *config.Config, fetcher Fetcher, store *cache.Store) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	filter, err := relevance.NewFilter(cfg.MinRelevance, cfg.NegativeKeywords)
	if err != nil {
		return nil, fmt.Errorf("build relevance filter: %w", err)
	}

	return &Catalog{
		cfg:     cfg,
		fetcher: fetcher,
		filter:  filter,
		dedup:   dedup.New(dedup.DefaultOptions()),
		store:   store,
		runner: scheduler.New(scheduler.Options{
			Enabled:    cfg.SchedulerEnabled,
			BatchSize:  cfg.BatchSize,
			MaxWorkers: cfg.MaxWorkers,
		}),
		Metrics: NewMetrics(),
	}, nil
}

// Deduplicator exposes the seller alias table so callers can register
// known seller name variants before a run.
func (c *Catalog) Deduplicator() *dedup.Deduplicator {
	return c.dedup
}

// SchedulerStats returns the live scheduling counters.
func (c *Catalog) SchedulerStats() scheduler.Stats {
	return c.runner.Stats()
}

// ProcessQuery runs the full reduction for one part query: fetch
// through the cache, filter and score, enrich, drill down, deduplicate.
func (c *Catalog) ProcessQuery(ctx context.Context, query models.PartQuery) (*QueryResult, error) {
	start := time.Now()
	defer func() {
		c.Metrics.ObserveQueryDuration(time.Since(start))
	}()

	raw, err := c.searchThroughCache(ctx, query.Keywords)
	if err != nil {
		c.Metrics.IncQueryFailure()
		return nil, fmt.Errorf("search %q: %w", query.Keywords, err)
	}
	c.Metrics.AddOffersSeen(len(raw))

	if valid, issues := taxonomy.Validate(query.PartName, query.PartCode); !valid {
		slog.Warn("part query resolved poorly",
			slog.Int("part_id", query.PartID),
			slog.String("part_name", query.PartName),
			slog.Any("issues", issues),
		)
	}

	annotated := c.annotate(raw, query)
	filtered := c.filter.FilterSearchResults(annotated, query.Keywords)
	expanded := c.drillDown(ctx, filtered)

	normalized := c.dedup.NormalizeOffers(expanded)
	deduped := c.dedup.Deduplicate(normalized)

	c.Metrics.AddDuplicates(len(normalized) - len(deduped))
	c.Metrics.AddOffersKept(len(deduped))

	slog.Debug("query processed",
		slog.Int("part_id", query.PartID),
		slog.Int("candidates", len(raw)),
		slog.Int("relevant", len(filtered)),
		slog.Int("kept", len(deduped)),
	)

	return &QueryResult{Query: query, Offers: deduped}, nil
}

// ProcessAll fans part queries out through the batch scheduler. The
// result slice preserves query order; a failed query leaves a nil slot
// and is reflected in the run statistics.
func (c *Catalog) ProcessAll(ctx context.Context, queries []models.PartQuery) ([]*QueryResult, RunStats) {
	start := time.Now()

	results := scheduler.Run(ctx, c.runner, queries, func(ctx context.Context, q models.PartQuery) (*QueryResult, error) {
		return c.ProcessQuery(ctx, q)
	})

	out := make([]*QueryResult, len(results))
	stats := RunStats{Elapsed: time.Since(start)}
	sellers := make(map[string]struct{})
	relevanceSum := 0.0
	scored := 0

	for i, res := range results {
		if res.Err != nil {
			stats.PartsFailed++
			slog.Error("part query failed",
				slog.Int("part_id", queries[i].PartID),
				slog.Any("error", res.Err),
			)
			continue
		}
		out[i] = res.Value
		stats.PartsProcessed++
		stats.TotalOffers += len(res.Value.Offers)
		for _, offer := range res.Value.Offers {
			sellers[offer.SellerNameNorm] = struct{}{}
			if offer.Relevance > 0 {
				relevanceSum += offer.Relevance
				scored++
			}
		}
	}

	stats.UniqueSellers = len(sellers)
	if scored > 0 {
		stats.AvgRelevance = relevanceSum / float64(scored)
	}
	return out, stats
}

func (c *Catalog) searchThroughCache(ctx context.Context, keywords string) ([]models.Offer, error) {
	if offers, ok := c.store.GetSearchResults(keywords); ok {
		c.Metrics.IncCacheLookup(cache.NamespaceSearch, "hit")
		return offers, nil
	}
	c.Metrics.IncCacheLookup(cache.NamespaceSearch, "miss")

	offers, err := c.fetcher.SearchParts(ctx, keywords)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetSearchResults(keywords, offers); err != nil {
		slog.Warn("caching search results failed",
			slog.String("keywords", keywords),
			slog.Any("error", err),
		)
	}
	return offers, nil
}

// annotate stamps query identity and parsed price fields onto copies of
// the raw offers. Offers with unparseable prices are kept with a zero
// price rather than rejected.
func (c *Catalog) annotate(offers []models.Offer, query models.PartQuery) []models.Offer {
	now := time.Now()
	out := make([]models.Offer, len(offers))
	for i, offer := range offers {
		offer.PartID = query.PartID
		if offer.Price == 0 && offer.PriceText != "" {
			offer.Price = textnorm.ExtractPrice(offer.PriceText)
		}
		if offer.CurrencyUnit == "" || offer.CurrencyUnit == models.CurrencyUnknown {
			offer.CurrencyUnit = textnorm.DetectCurrencyUnit(offer.PriceText)
		}
		if offer.CurrencyUnit == models.CurrencyRial && offer.Price > 0 {
			offer.PriceToman = textnorm.RialToToman(offer.Price)
		} else {
			offer.PriceToman = offer.Price
		}
		if offer.SnapshotAt.IsZero() {
			offer.SnapshotAt = now
		}
		out[i] = offer
	}
	return out
}

// drillDown replaces the top-scored card offers with the per-seller
// offers found on their product pages, fetched through the product
// cache. A card whose page cannot be fetched stays in the output as-is.
func (c *Catalog) drillDown(ctx context.Context, offers []models.Offer) []models.Offer {
	limit := c.cfg.MaxDrillDown
	if limit == 0 {
		return offers
	}
	if limit > len(offers) {
		limit = len(offers)
	}

	out := make([]models.Offer, 0, len(offers))
	for i, offer := range offers {
		if i >= limit || offer.ProductURL == "" {
			out = append(out, offer)
			continue
		}

		details, err := c.productDetailsThroughCache(ctx, offer.ProductURL)
		if err != nil {
			slog.Warn("product drill-down failed",
				slog.String("url", offer.ProductURL),
				slog.Any("error", err),
			)
			out = append(out, offer)
			continue
		}
		if details == nil || len(details.Offers) == 0 {
			out = append(out, offer)
			continue
		}

		for _, sellerOffer := range details.Offers {
			merged := offer
			merged.SellerName = sellerOffer.SellerName
			merged.SellerURL = sellerOffer.SellerURL
			merged.Availability = sellerOffer.Availability
			merged.PriceText = sellerOffer.PriceText
			merged.Price = sellerOffer.Price
			merged.CurrencyUnit = sellerOffer.CurrencyUnit
			if merged.Price == 0 && merged.PriceText != "" {
				merged.Price = textnorm.ExtractPrice(merged.PriceText)
			}
			if merged.CurrencyUnit == "" || merged.CurrencyUnit == models.CurrencyUnknown {
				merged.CurrencyUnit = textnorm.DetectCurrencyUnit(merged.PriceText)
			}
			if merged.CurrencyUnit == models.CurrencyRial && merged.Price > 0 {
				merged.PriceToman = textnorm.RialToToman(merged.Price)
			} else {
				merged.PriceToman = merged.Price
			}
			out = append(out, merged)
		}
	}
	return out
}

func (c *Catalog) productDetailsThroughCache(ctx context.Context, productURL string) (*models.ProductDetails, error) {
	if details, ok := c.store.GetProductDetails(productURL); ok {
		c.Metrics.IncCacheLookup(cache.NamespaceProduct, "hit")
		return details, nil
	}
	c.Metrics.IncCacheLookup(cache.NamespaceProduct, "miss")

	details, err := c.fetcher.ProductDetails(ctx, productURL)
	if err != nil {
		return nil, err
	}
	if details != nil {
		if err := c.store.SetProductDetails(productURL, details); err != nil {
			slog.Warn("caching product details failed",
				slog.String("url", productURL),
				slog.Any("error", err),
			)
		}
	}
	return details, nil
}

// SellerStatistics aggregates the final offer sets per seller.
func (c *Catalog) SellerStatistics(results []*QueryResult) map[string]models.SellerStats {
	var all []models.Offer
	for _, res := range results {
		if res != nil {
			all = append(all, res.Offers...)
		}
	}
	return c.dedup.SellerStatistics(all)
}
