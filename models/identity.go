package models

import "strings"

// Unknown is the sentinel tag for taxonomy categories that could not be
// resolved from the input text.
const Unknown = "UNKNOWN"

// PartIdentity is the structured identity derived from free-form part
// text. All tags are uppercase taxonomy keys or Unknown.
type PartIdentity struct {
	CarModel string `json:"car_model"`
	PartType string `json:"part_type"`
	Side     string `json:"side"`
	Trim     string `json:"trim"`
	Variant  string `json:"variant"`
}

// Key builds the canonical part key BODY:<type>:<side[:variant]>:<trim>.
// When neither side nor variant resolved, the middle segment is Unknown.
func (id PartIdentity) Key() string {
	sideVariant := make([]string, 0, 2)
	if id.Side != Unknown && id.Side != "" {
		sideVariant = append(sideVariant, id.Side)
	}
	if id.Variant != Unknown && id.Variant != "" {
		sideVariant = append(sideVariant, id.Variant)
	}
	middle := Unknown
	if len(sideVariant) > 0 {
		middle = strings.Join(sideVariant, ":")
	}
	return "BODY:" + orUnknown(id.PartType) + ":" + middle + ":" + orUnknown(id.Trim)
}

// UnknownCount reports how many of the five categories are unresolved.
func (id PartIdentity) UnknownCount() int {
	n := 0
	for _, tag := range []string{id.CarModel, id.PartType, id.Side, id.Trim, id.Variant} {
		if tag == Unknown || tag == "" {
			n++
		}
	}
	return n
}

func orUnknown(tag string) string {
	if tag == "" {
		return Unknown
	}
	return tag
}
