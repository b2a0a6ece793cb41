// Package taxonomy maps free-form bilingual part text onto a fixed
// automotive-part taxonomy and derives canonical part keys.
//
// Lookup is first-match-wins in declaration order: the first taxonomy
// entry whose any synonym appears as a substring of the normalized text
// is taken, regardless of match length. Downstream signatures and
// existing data depend on this tie-break, so the tables below are
// ordered slices rather than maps.
package taxonomy

import (
	"strings"

	"github.com/torobtools/offercatalog/models"
	"github.com/torobtools/offercatalog/textnorm"
)

type entry struct {
	tag   string
	terms []string
}

var partTypes = []entry{
	{"BUMPER", []string{"سپر", "bumper", "بامپر"}},
	{"HEADLAMP", []string{"چراغ", "چراغ جلو", "headlight", "headlamp", "lamp"}},
	{"FENDER", []string{"گلگیر", "fender", "wing"}},
	{"HOOD", []string{"کاپوت", "hood", "bonnet"}},
	{"GRILLE", []string{"جلوپنجره", "grille", "گریل", "جلو پنجره"}},
	{"MIRROR", []string{"آینه", "mirror", "آیینه"}},
	{"DOOR", []string{"درب", "door", "در"}},
	{"TAILLIGHT", []string{"چراغ عقب", "taillight", "tail light", "rear light"}},
	{"SPOILER", []string{"اسپویلر", "spoiler", "بال عقب"}},
	{"RUNNING_BOARD", []string{"رکاب", "running board", "side step"}},
}

var trims = []entry{
	{"CLASSIC", []string{"کلاسیک", "classic"}},
	{"PRO", []string{"پرو", "pro"}},
	{"PRO_MAX", []string{"پرو مکس", "pro max", "promax", "پروماکس"}},
	{"EPLUS", []string{"e+", "ای پلاس", "eplus", "e plus"}},
}

var sides = []entry{
	{"LEFT", []string{"چپ", "left", "lh", "l"}},
	{"RIGHT", []string{"راست", "right", "rh", "r"}},
	{"FRONT", []string{"جلو", "front", "f"}},
	// "r" is listed for rear as well, but RIGHT is checked first, so it
	// can only ever resolve RIGHT.
	{"REAR", []string{"عقب", "rear", "back", "r"}},
	{"CENTER", []string{"وسط", "center", "middle", "c"}},
}

var variants = []entry{
	{"LED", []string{"led", "ال ای دی", "ال‌ای‌دی"}},
	{"HALOGEN", []string{"halogen", "هالوژن"}},
	{"MATRIX", []string{"matrix", "مکس"}},
	{"XENON", []string{"xenon", "زنون", "کسنون"}},
	{"STANDARD", []string{"استاندارد", "standard", "معمولی"}},
	{"OEM", []string{"oem", "اصل", "اصلی", "اورجینال", "original"}},
	{"AFTERMARKET", []string{"aftermarket", "am", "یدکی", "جایگزین"}},
}

var carModels = []entry{
	{"TIGGO8", []string{"تیگو 8", "tiggo 8", "tiggo8", "tigo 8"}},
	{"TIGGO7", []string{"تیگو 7", "tiggo 7", "tiggo7", "tigo 7"}},
	{"TIGGO5", []string{"تیگو 5", "tiggo 5", "tiggo5", "tigo 5"}},
	{"ARRIZO6", []string{"آریزو 6", "arrizo 6", "arrizo6"}},
	{"ARRIZO5", []string{"آریزو 5", "arrizo 5", "arrizo5"}},
}

func lookup(normalized string, table []entry) string {
	for _, e := range table {
		for _, term := range e.terms {
			term = textnorm.NormalizeDigits(strings.ToLower(term))
			if strings.Contains(normalized, term) {
				return e.tag
			}
		}
	}
	return models.Unknown
}

func normalizeInput(partName, partCode string) string {
	combined := partName
	if partCode != "" {
		combined += " " + partCode
	}
	return textnorm.Normalize(strings.ToLower(combined))
}

// Extract derives the structured part identity from a part name plus an
// optional part code. Pure: identical input always yields an identical
// identity.
func Extract(partName, partCode string) models.PartIdentity {
	if partName == "" {
		return models.PartIdentity{
			CarModel: models.Unknown,
			PartType: models.Unknown,
			Side:     models.Unknown,
			Trim:     models.Unknown,
			Variant:  models.Unknown,
		}
	}

	normalized := normalizeInput(partName, partCode)
	return models.PartIdentity{
		CarModel: lookup(normalized, carModels),
		PartType: lookup(normalized, partTypes),
		Side:     lookup(normalized, sides),
		Trim:     lookup(normalized, trims),
		Variant:  lookup(normalized, variants),
	}
}

// PartKey derives the canonical key for a part name, see
// models.PartIdentity.Key for the format.
func PartKey(partName, partCode string) string {
	return Extract(partName, partCode).Key()
}

// NormalizedName builds a human-readable label from the resolved
// categories. Falls back to the normalized input text when nothing
// resolved.
func NormalizedName(partName, partCode string) string {
	if partName == "" {
		return ""
	}
	id := Extract(partName, partCode)
	label := DisplayName(id)
	if label == "" {
		return normalizeInput(partName, partCode)
	}
	return label
}

// DisplayName renders the resolved categories of an identity, skipping
// unknown ones.
func DisplayName(id models.PartIdentity) string {
	parts := make([]string, 0, 5)
	if id.CarModel != models.Unknown && id.CarModel != "" {
		parts = append(parts, titleCase(id.CarModel))
	}
	if id.PartType != models.Unknown && id.PartType != "" {
		parts = append(parts, titleCase(id.PartType))
	}
	if id.Side != models.Unknown && id.Side != "" {
		parts = append(parts, id.Side)
	}
	if id.Trim != models.Unknown && id.Trim != "" {
		parts = append(parts, titleCase(id.Trim))
	}
	if id.Variant != models.Unknown && id.Variant != "" {
		parts = append(parts, id.Variant)
	}
	return strings.Join(parts, " ")
}

// Validate checks extraction quality for a part name. More than two
// unresolved categories makes the extraction invalid; the issue list
// explains what is missing. This is a warning-level gate, not a hard
// failure.
func Validate(partName, partCode string) (bool, []string) {
	id := Extract(partName, partCode)

	var issues []string
	if id.PartType == models.Unknown {
		issues = append(issues, "could not identify part type")
	}
	if id.CarModel == models.Unknown {
		issues = append(issues, "could not identify car model")
	}
	if id.Side == models.Unknown {
		issues = append(issues, "could not identify side")
	}
	if id.Trim == models.Unknown {
		issues = append(issues, "could not identify trim level")
	}
	if id.Variant == models.Unknown {
		issues = append(issues, "could not identify variant")
	}

	return id.UnknownCount() <= 2, issues
}

func titleCase(tag string) string {
	lower := strings.ToLower(tag)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
