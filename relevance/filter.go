// Package relevance classifies marketplace listings against negative
// and positive part-category taxonomies and scores them against the
// search query.
package relevance

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/torobtools/offercatalog/models"
	"github.com/torobtools/offercatalog/taxonomy"
	"github.com/torobtools/offercatalog/textnorm"
)

// DefaultMinScore is the acceptance threshold used when the caller does
// not configure one.
const DefaultMinScore = 0.3

// Attribute weights for the relevance score. Word overlap with the
// query contributes up to overlapWeight on top; the total is clamped
// to 1.
const (
	partTypeWeight = 0.3
	carModelWeight = 0.2
	sideWeight     = 0.1
	trimWeight     = 0.1
	variantWeight  = 0.1
	overlapWeight  = 0.2
)

type categoryPatterns struct {
	name     string
	patterns []*regexp.Regexp
}

func compileCategories(raw map[string][]string, order []string) []categoryPatterns {
	out := make([]categoryPatterns, 0, len(order))
	for _, name := range order {
		patterns := make([]*regexp.Regexp, 0, len(raw[name]))
		for _, p := range raw[name] {
			patterns = append(patterns, regexp.MustCompile(p))
		}
		out = append(out, categoryPatterns{name: name, patterns: patterns})
	}
	return out
}

// Categories the catalog must never include: everything that is not a
// front body part.
var negativeCategories = compileCategories(map[string][]string{
	"rear_lights": {
		`چراغ عقب`, `چراغ پشت`, `tail light`, `taillight`, `rear light`,
		`چراغ ترمز`, `brake light`, `stop light`,
	},
	"fog_lights": {
		`مه‌شکن`, `مه شکن`, `fog light`, `foglamp`, `چراغ مه`,
	},
	"drl_lights": {
		`چراغ روز`, `چراغ روشنایی روز`, `daylight`, `drl`, `day running`,
		`چراغ روشنایی`, `led strip`,
	},
	"indicators": {
		`راهنما`, `چراغ راهنما`, `indicator`, `turn signal`, `blinker`,
		`چراغ چشمک زن`, `چراغ هشدار`,
	},
	"side_mirrors": {
		`آینه`, `آیینه`, `mirror`, `side mirror`, `wing mirror`,
	},
	"interior_parts": {
		`داخل`, `interior`, `کابین`, `cabin`, `صندلی`, `seat`,
		`داشبورد`, `dashboard`, `کنسول`, `console`,
	},
}, []string{"rear_lights", "fog_lights", "drl_lights", "indicators", "side_mirrors", "interior_parts"})

// Front body part categories a listing must match to be admissible.
var positiveCategories = compileCategories(map[string][]string{
	"front_bumper": {`سپر جلو`, `بامپر جلو`, `front bumper`, `bumper front`},
	"headlamp":     {`چراغ جلو`, `headlight`, `headlamp`, `چراغ اصلی`, `main light`},
	"front_fender": {`گلگیر جلو`, `fender front`, `front fender`, `wing front`, `فندر جلو`},
	"hood":         {`کاپوت`, `hood`, `bonnet`},
	"grille":       {`جلوپنجره`, `grille`, `گریل`, `جلو پنجره`, `radiator grille`, `شبکه جلو`},
}, []string{"front_bumper", "headlamp", "front_fender", "hood", "grille"})

// Filter scores listings against a query and rejects inadmissible ones.
// Pure and reentrant: safe for concurrent use without locking.
type Filter struct {
	minScore      float64
	extraNegative []*regexp.Regexp
}

// NewFilter builds a filter with the given acceptance threshold.
// negativeKeywords extends the built-in negative taxonomy with
// literal caller-configured terms.
func NewFilter(minScore float64, negativeKeywords []string) (*Filter, error) {
	if minScore < 0 || minScore > 1 {
		return nil, fmt.Errorf("min score must be in [0, 1], got %v", minScore)
	}
	extra := make([]*regexp.Regexp, 0, len(negativeKeywords))
	for _, kw := range negativeKeywords {
		kw = textnorm.Normalize(strings.ToLower(kw))
		if kw == "" {
			continue
		}
		extra = append(extra, regexp.MustCompile(regexp.QuoteMeta(kw)))
	}
	return &Filter{minScore: minScore, extraNegative: extra}, nil
}

func normalizeText(text string) string {
	return textnorm.Normalize(strings.ToLower(text))
}

// NegativeMatches returns the negative categories matched by text.
// Configured negative keywords report as "configured".
func (f *Filter) NegativeMatches(text string) []string {
	normalized := normalizeText(text)
	var matched []string
	for _, cat := range negativeCategories {
		for _, p := range cat.patterns {
			if p.MatchString(normalized) {
				matched = append(matched, cat.name)
				break
			}
		}
	}
	for _, p := range f.extraNegative {
		if p.MatchString(normalized) {
			matched = append(matched, "configured")
			break
		}
	}
	return matched
}

func positiveMatches(text string) []string {
	normalized := normalizeText(text)
	var matched []string
	for _, cat := range positiveCategories {
		for _, p := range cat.patterns {
			if p.MatchString(normalized) {
				matched = append(matched, cat.name)
				break
			}
		}
	}
	return matched
}

func score(title, query string, id models.PartIdentity) float64 {
	s := 0.0
	if id.PartType != models.Unknown {
		s += partTypeWeight
	}
	if id.CarModel != models.Unknown {
		s += carModelWeight
	}
	if id.Side != models.Unknown {
		s += sideWeight
	}
	if id.Trim != models.Unknown {
		s += trimWeight
	}
	if id.Variant != models.Unknown {
		s += variantWeight
	}

	queryWords := wordSet(normalizeText(query))
	if len(queryWords) > 0 {
		titleWords := wordSet(normalizeText(title))
		overlap := 0
		for w := range queryWords {
			if _, ok := titleWords[w]; ok {
				overlap++
			}
		}
		s += float64(overlap) / float64(len(queryWords)) * overlapWeight
	}

	if s > 1 {
		s = 1
	}
	return s
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(text)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// FilterAndScore classifies a single listing title against a query.
// Negative patterns always win: any negative match rejects with score 0
// regardless of the query. Listings matching no positive category are
// rejected the same way. Otherwise the score is returned together with
// the extracted attributes, and the listing is accepted iff the score
// reaches the threshold.
func (f *Filter) FilterAndScore(title, query string) (bool, float64, models.PartIdentity) {
	if len(f.NegativeMatches(title)) > 0 {
		return false, 0, models.PartIdentity{}
	}
	if len(positiveMatches(title)) == 0 {
		return false, 0, models.PartIdentity{}
	}

	id := taxonomy.Extract(title, "")
	s := score(title, query, id)
	return s >= f.minScore, s, id
}

// FilterSearchResults applies FilterAndScore to every candidate offer,
// attaches the derived relevance, attributes, part key, and normalized
// name to accepted copies, and returns them sorted by descending
// relevance. The sort is stable: ties keep their original order. The
// input slice is not modified.
func (f *Filter) FilterSearchResults(offers []models.Offer, query string) []models.Offer {
	accepted := make([]models.Offer, 0, len(offers))
	for _, offer := range offers {
		ok, s, id := f.FilterAndScore(offer.TitleRaw, query)
		if !ok {
			continue
		}
		offer.Relevance = s
		offer.Identity = id
		offer.PartKey = id.Key()
		offer.PartNameNorm = taxonomy.DisplayName(id)
		if offer.PartNameNorm == "" {
			offer.PartNameNorm = normalizeText(offer.TitleRaw)
		}
		accepted = append(accepted, offer)
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Relevance > accepted[j].Relevance
	})
	return accepted
}
