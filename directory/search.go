package directory

import (
	"sort"
	"strings"

	"github.com/perfusionpro/perfusion-api/registry/entities"
)

// SearchResultsRegion is the group key returned by GroupedByRegion for a
// non-empty query, where regional grouping does not apply.
const SearchResultsRegion = "Search Results"

// Group is a set of hospitals under one region code, or under
// SearchResultsRegion when a query collapsed the grouping.
type Group struct {
	Region    string              `json:"region"`
	Hospitals []entities.Hospital `json:"hospitals"`
}

// Search returns the hospitals whose searchable text contains query,
// case-insensitively. An empty query returns the full list. The input
// order (name ascending after a load) is preserved.
func Search(hospitals []entities.Hospital, query string) []entities.Hospital {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return hospitals
	}

	out := make([]entities.Hospital, 0)
	for _, h := range hospitals {
		haystack := h.Searchable
		if haystack == "" {
			haystack = h.BuildSearchable()
		}
		if strings.Contains(haystack, query) {
			out = append(out, h)
		}
	}
	return out
}

// GroupedByRegion groups the directory for display. With an empty query
// the hospitals are grouped by region code, groups sorted by code
// ascending and members by name ascending. With a non-empty query the
// matches come back as a single search-results group in name order.
func GroupedByRegion(hospitals []entities.Hospital, query string) []Group {
	matches := Search(hospitals, query)

	if strings.TrimSpace(query) != "" {
		return []Group{{Region: SearchResultsRegion, Hospitals: matches}}
	}

	byRegion := make(map[string][]entities.Hospital)
	for _, h := range matches {
		byRegion[h.State] = append(byRegion[h.State], h)
	}

	regions := make([]string, 0, len(byRegion))
	for region := range byRegion {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	groups := make([]Group, 0, len(regions))
	for _, region := range regions {
		members := byRegion[region]
		sort.Slice(members, func(i, j int) bool {
			return members[i].Name < members[j].Name
		})
		groups = append(groups, Group{Region: region, Hospitals: members})
	}
	return groups
}
