// Package entities defines the core records tracked by the perfusion API:
// clinical cases, the medication administrations attached to them, and the
// hospital reference entries used to populate case fields.
package entities

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// CaseStatus is the workflow state of a case. It is a free field edit,
// not a gate on any other operation.
type CaseStatus string

const (
	CaseDraft      CaseStatus = "draft"
	CaseInProgress CaseStatus = "inProgress"
	CaseComplete   CaseStatus = "complete"
)

// Valid reports whether s is one of the known case statuses.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseDraft, CaseInProgress, CaseComplete:
		return true
	}
	return false
}

// Case represents one tracked perfusion event with its timing milestones,
// team assignments and hospital selections.
type Case struct {
	ID                  uuid.UUID  `json:"id"`
	CaseLabel           string     `json:"case_label"`
	ExternalReferenceID string     `json:"external_reference_id,omitempty"`
	Status              CaseStatus `json:"status"`

	DonorHospital    string `json:"donor_hospital,omitempty"`
	TransplantCenter string `json:"transplant_center,omitempty"`
	OMPS1            string `json:"omps1,omitempty"`
	OMPS2            string `json:"omps2,omitempty"`
	Surgeon1         string `json:"surgeon1,omitempty"`
	Surgeon2         string `json:"surgeon2,omitempty"`

	CrossClampTime *time.Time `json:"cross_clamp_time,omitempty"`
	FlushStartTime *time.Time `json:"flush_start_time,omitempty"`
	FlushEndTime   *time.Time `json:"flush_end_time,omitempty"`
	PumpOnTime     *time.Time `json:"pump_on_time,omitempty"`
	PumpOffTime    *time.Time `json:"pump_off_time,omitempty"`

	DateCreated  time.Time `json:"date_created"`
	DateModified time.Time `json:"date_modified"`
}

// PerfusionDurationMinutes returns the whole minutes the pump ran, or 0
// when either pump time is unset. Pump-off never precedes pump-on because
// the store rejects such updates.
func (c *Case) PerfusionDurationMinutes() int {
	if c.PumpOnTime == nil || c.PumpOffTime == nil {
		return 0
	}
	return int(c.PumpOffTime.Sub(*c.PumpOnTime) / time.Minute)
}

// FormattedDuration renders the perfusion duration as HH:MM.
func (c *Case) FormattedDuration() string {
	minutes := c.PerfusionDurationMinutes()
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// IsComplete reports whether the case carries its minimal identifying
// information. It is a soft completeness check, independent of Status.
func (c *Case) IsComplete() bool {
	return c.ExternalReferenceID != "" && c.DonorHospital != ""
}

// NewCaseLabel generates a human-readable case code like "NEDS-2026-042".
// Labels are not guaranteed unique; the UUID is the identity.
func NewCaseLabel(orgCode string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%03d", orgCode, now.Year(), 100+rand.IntN(900))
}
