// Package directory ingests the hospital reference dataset and serves
// search and grouping queries over it. The source is delimited text with
// a header row; only rows whose region code is on the configured
// allow-list are retained.
package directory

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/perfusionpro/perfusion-api/logging"
	"github.com/perfusionpro/perfusion-api/metrics"
	"github.com/perfusionpro/perfusion-api/registry/entities"
)

// MinColumns is the minimum column count of a usable data row, in the
// order: name, address, city, region_code, zip, phone, facility_type.
const MinColumns = 7

// Column positions within a data row.
const (
	colName = iota
	colAddress
	colCity
	colState
	colZip
	colPhone
	colFacilityType
	colCounty            // optional
	colEmergencyServices // optional
)

// DefaultRegions is the New England allow-list used when no region set
// is configured.
var DefaultRegions = []string{"MA", "ME", "NH", "VT", "RI", "CT"}

// Loader parses delimited hospital data and filters it to an allowed
// region set.
type Loader struct {
	delimiter rune
	regions   map[string]bool
	idColumn  int // -1: synthesize ordinal ids
}

// NewLoader creates a Loader for comma-delimited data restricted to the
// given region codes. An empty region list falls back to DefaultRegions.
func NewLoader(regions []string) *Loader {
	if len(regions) == 0 {
		regions = DefaultRegions
	}
	allowed := make(map[string]bool, len(regions))
	for _, r := range regions {
		allowed[strings.ToUpper(strings.TrimSpace(r))] = true
	}
	return &Loader{delimiter: ',', regions: allowed, idColumn: -1}
}

// WithIDColumn makes the loader take facility identifiers from the given
// column instead of synthesizing positional ordinals. Ordinal ids are
// unstable across reloads when the source reorders rows; prefer a real
// identifier column whenever the source has one.
func (l *Loader) WithIDColumn(col int) *Loader {
	l.idColumn = col
	return l
}

// Parse reads the source, skips the header row, drops rows below
// MinColumns and rows outside the allowed regions, and returns the
// retained hospitals sorted by facility name ascending. Malformed rows
// are counted and skipped, never fatal; only a read failure is an error.
func (l *Loader) Parse(r io.Reader) ([]entities.Hospital, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0), 1*1024*1024)

	var hospitals []entities.Hospital
	lineCount := 0
	skippedEmptyLines := 0
	skippedMissingColumns := 0
	skippedRegion := 0

	for scanner.Scan() {
		lineCount++
		line := scanner.Text()

		if lineCount == 1 {
			// Header row.
			continue
		}
		if len(strings.TrimSpace(line)) == 0 {
			skippedEmptyLines++
			continue
		}

		fields := SplitDelimited(line, l.delimiter)
		if len(fields) < MinColumns {
			skippedMissingColumns++
			continue
		}

		state := strings.ToUpper(fields[colState])
		if !l.regions[state] {
			skippedRegion++
			continue
		}

		h := entities.Hospital{
			Name:         fields[colName],
			Address:      fields[colAddress],
			City:         fields[colCity],
			State:        state,
			ZipCode:      fields[colZip],
			Phone:        fields[colPhone],
			FacilityType: fields[colFacilityType],
		}
		if len(fields) > colCounty {
			h.County = fields[colCounty]
		}
		if len(fields) > colEmergencyServices {
			h.EmergencyServices = fields[colEmergencyServices]
		}

		if l.idColumn >= 0 && l.idColumn < len(fields) && fields[l.idColumn] != "" {
			h.ProviderNumber = fields[l.idColumn]
		} else {
			h.ProviderNumber = fmt.Sprintf("H%d", len(hospitals)+1)
		}
		h.Searchable = h.BuildSearchable()

		hospitals = append(hospitals, h)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hospital source: %w", err)
	}

	metrics.DirectoryRowsSkipped.WithLabelValues("empty").Add(float64(skippedEmptyLines))
	metrics.DirectoryRowsSkipped.WithLabelValues("missing_columns").Add(float64(skippedMissingColumns))
	metrics.DirectoryRowsSkipped.WithLabelValues("region").Add(float64(skippedRegion))

	if skippedEmptyLines > 0 || skippedMissingColumns > 0 || skippedRegion > 0 {
		logging.Info("Hospital source skip statistics",
			"empty_lines", skippedEmptyLines,
			"missing_columns", skippedMissingColumns,
			"outside_regions", skippedRegion,
			"total_lines", lineCount,
			"records_parsed", len(hospitals))
	}

	sort.Slice(hospitals, func(i, j int) bool {
		return hospitals[i].Name < hospitals[j].Name
	})

	return hospitals, nil
}

// SplitDelimited splits one row on delim with quote-toggle semantics: a
// '"' flips the in-quotes flag and delim only separates fields while the
// flag is off. Each field is trimmed of surrounding whitespace. Quote
// characters themselves are not kept.
func SplitDelimited(line string, delim rune) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 || len(fields) > 0 {
		fields = append(fields, strings.TrimSpace(current.String()))
	}

	return fields
}
