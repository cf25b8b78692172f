package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MedicationType is the administration type of a medication record.
// Infusion is the only type with a continuous active/held lifecycle;
// bolus, flush and prn administrations resolve immediately.
type MedicationType string

const (
	Bolus    MedicationType = "bolus"
	Infusion MedicationType = "infusion"
	Flush    MedicationType = "flush"
	PRN      MedicationType = "prn"
)

// Valid reports whether t is one of the known medication types.
func (t MedicationType) Valid() bool {
	switch t {
	case Bolus, Infusion, Flush, PRN:
		return true
	}
	return false
}

// MedicationStatus is the administration state of a medication record.
type MedicationStatus string

const (
	MedicationPending   MedicationStatus = "pending"
	MedicationActive    MedicationStatus = "active"
	MedicationCompleted MedicationStatus = "completed"
	MedicationStopped   MedicationStatus = "stopped"
	MedicationHeld      MedicationStatus = "held"
)

// Terminal reports whether no further transitions are legal from s.
func (s MedicationStatus) Terminal() bool {
	return s == MedicationCompleted || s == MedicationStopped
}

// MaxInfusionDuration caps the infusion progress computation; a run
// longer than this reports full progress.
const MaxInfusionDuration = 24 * time.Hour

// MedicationRecord is one administration event or course of a drug or
// fluid tied to exactly one case. The case owns the record; CaseID is a
// lookup reference only.
type MedicationRecord struct {
	ID     uuid.UUID `json:"id"`
	CaseID uuid.UUID `json:"case_id"`

	Name  string         `json:"name"`
	Type  MedicationType `json:"type"`
	Dose  string         `json:"dose"` // free text, preserves clinician formatting
	Unit  string         `json:"unit"`
	Route string         `json:"route"`

	Concentration     string `json:"concentration,omitempty"`
	ConcentrationUnit string `json:"concentration_unit,omitempty"`
	InfusionRate      string `json:"infusion_rate,omitempty"`
	InfusionRateUnit  string `json:"infusion_rate_unit,omitempty"`

	AdministeredAt time.Time  `json:"administered_at"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`

	Status MedicationStatus `json:"status"`

	Indication             string   `json:"indication,omitempty"`
	ClinicalTrigger        string   `json:"clinical_trigger,omitempty"`
	AssociatedLabValue     *float64 `json:"associated_lab_value,omitempty"`
	AssociatedLabParameter string   `json:"associated_lab_parameter,omitempty"`
	Notes                  string   `json:"notes,omitempty"`
	AdverseReaction        string   `json:"adverse_reaction,omitempty"`
	Effectiveness          string   `json:"effectiveness,omitempty"`

	AdministeredBy string `json:"administered_by"`
	VerifiedBy     string `json:"verified_by,omitempty"`
	ReasonStopped  string `json:"reason_stopped,omitempty"`
	ReasonHeld     string `json:"reason_held,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ElapsedDuration returns how long the administration has run: the
// stopped-to-start span when a stop time exists, the live span up to now
// for an active record, and ok=false otherwise.
func (m *MedicationRecord) ElapsedDuration(now time.Time) (time.Duration, bool) {
	if m.StoppedAt != nil {
		return m.StoppedAt.Sub(m.AdministeredAt), true
	}
	if m.Status == MedicationActive {
		return now.Sub(m.AdministeredAt), true
	}
	return 0, false
}

// InfusionProgress returns the fraction of MaxInfusionDuration the
// infusion has run, capped at 1.0. ok is false for non-infusion records
// and whenever ElapsedDuration is undefined.
func (m *MedicationRecord) InfusionProgress(now time.Time) (float64, bool) {
	if m.Type != Infusion {
		return 0, false
	}
	elapsed, ok := m.ElapsedDuration(now)
	if !ok {
		return 0, false
	}
	progress := float64(elapsed) / float64(MaxInfusionDuration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress, true
}

// Summary returns the one-line description used by reports,
// e.g. "Heparin 5000units (10units/mL) @ 5mL/hr - IV".
func (m *MedicationRecord) Summary() string {
	s := fmt.Sprintf("%s %s%s", m.Name, m.Dose, m.Unit)
	if m.Concentration != "" {
		s += fmt.Sprintf(" (%s%s)", m.Concentration, m.ConcentrationUnit)
	}
	if m.InfusionRate != "" {
		s += fmt.Sprintf(" @ %s%s", m.InfusionRate, m.InfusionRateUnit)
	}
	return s + " - " + m.Route
}
