package export

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/perfusionpro/perfusion-api/registry/entities"
)

func TestMedicationCSVHeader(t *testing.T) {
	out := MedicationCSV(nil)
	want := "Date/Time,Medication,Type,Dose,Unit,Route,Administered By\n"
	if out != want {
		t.Errorf("empty export = %q, want header only", out)
	}
}

func TestMedicationCSVRows(t *testing.T) {
	administered := time.Date(2026, time.March, 14, 8, 30, 0, 0, time.UTC)
	records := []entities.MedicationRecord{
		{
			ID:             uuid.New(),
			Name:           "Heparin",
			Type:           entities.Infusion,
			Dose:           "5000",
			Unit:           "units",
			Route:          "IV",
			AdministeredBy: "J. Ortiz",
			AdministeredAt: administered,
		},
		{
			ID:             uuid.New(),
			Name:           "Mannitol",
			Type:           entities.Bolus,
			Dose:           "12.5",
			Unit:           "g",
			Route:          "IV",
			AdministeredBy: "K. Lee",
			AdministeredAt: administered.Add(time.Hour),
		},
	}

	out := MedicationCSV(records)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}

	wantRow := "2026-03-14T08:30:00Z,Heparin,infusion,5000,units,IV,J. Ortiz"
	if lines[1] != wantRow {
		t.Errorf("row 1 = %q, want %q", lines[1], wantRow)
	}

	// Rows come out in the order given, no quoting anywhere.
	if !strings.HasPrefix(lines[2], "2026-03-14T09:30:00Z,Mannitol,bolus") {
		t.Errorf("row 2 = %q", lines[2])
	}
	if strings.Contains(out, `"`) {
		t.Error("export must not quote fields")
	}
}

func TestMedicationCSVKeepsCommasVerbatim(t *testing.T) {
	records := []entities.MedicationRecord{
		{
			ID:             uuid.New(),
			Name:           "Smith, John special mix",
			Type:           entities.Bolus,
			Dose:           "10",
			Unit:           "mg",
			Route:          "IV",
			AdministeredBy: "J. Ortiz",
			AdministeredAt: time.Date(2026, time.March, 14, 8, 0, 0, 0, time.UTC),
		},
	}

	out := MedicationCSV(records)
	// The format is preserved byte for byte even when a value contains
	// the delimiter; the exporter only logs the hazard.
	if !strings.Contains(out, "Smith, John special mix") {
		t.Errorf("comma-containing value was altered: %q", out)
	}
}
