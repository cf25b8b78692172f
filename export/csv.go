// Package export renders medication ledgers as delimited text for
// hand-off reports.
package export

import (
	"strings"
	"time"

	"github.com/perfusionpro/perfusion-api/logging"
	"github.com/perfusionpro/perfusion-api/registry/entities"
)

// csvHeader matches the column order consumers of the hand-off report expect.
const csvHeader = "Date/Time,Medication,Type,Dose,Unit,Route,Administered By"

// MedicationCSV renders the records as comma-delimited text, one row per
// record in the order given followed by a trailing newline. Fields are
// written unquoted to preserve the documented export format; a value
// containing a comma will shift columns, so each such record is logged.
func MedicationCSV(records []entities.MedicationRecord) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteByte('\n')

	for i := range records {
		rec := &records[i]
		fields := []string{
			rec.AdministeredAt.Format(time.RFC3339),
			rec.Name,
			string(rec.Type),
			rec.Dose,
			rec.Unit,
			rec.Route,
			rec.AdministeredBy,
		}
		for j, f := range fields {
			if strings.Contains(f, ",") {
				logging.Warn("CSV field contains a comma, columns will shift",
					"record_id", rec.ID,
					"column", j,
					"value", f,
				)
			}
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}

	return b.String()
}
