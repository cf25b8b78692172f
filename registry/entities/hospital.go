package entities

import "strings"

// Hospital is an immutable reference entry loaded from the external
// facility dataset. It is read-only everywhere outside the directory
// loader.
type Hospital struct {
	ProviderNumber    string `json:"provider_number"`
	Name              string `json:"name"`
	Address           string `json:"address"`
	City              string `json:"city"`
	State             string `json:"state"` // 2-letter region code
	ZipCode           string `json:"zip_code"`
	County            string `json:"county,omitempty"`
	Phone             string `json:"phone,omitempty"`
	FacilityType      string `json:"facility_type,omitempty"`
	EmergencyServices string `json:"emergency_services,omitempty"` // "Yes", "No" or "" when the source does not say

	// Searchable is the precomputed lower-cased haystack used by
	// directory search. The loader fills it; it is never serialized.
	Searchable string `json:"-"`
}

// BuildSearchable returns the lower-cased search haystack for h:
// name, city, state and county.
func (h *Hospital) BuildSearchable() string {
	return strings.ToLower(h.Name + " " + h.City + " " + h.State + " " + h.County)
}

// HasEmergencyServices reports whether the source marked the facility as
// providing emergency services. An absent flag reports false.
func (h *Hospital) HasEmergencyServices() bool {
	return strings.EqualFold(h.EmergencyServices, "yes")
}
