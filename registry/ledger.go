package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/perfusionpro/perfusion-api/logging"
	"github.com/perfusionpro/perfusion-api/registry/entities"
)

// Compile-time check that the ledger can serve as the case store's
// cascade hook.
var _ RecordPurger = (*MedicationLedger)(nil)

// RecordInput carries the caller-supplied fields of a new medication
// record. Name, Type, Dose, Unit and AdministeredBy are required; Route
// defaults to IV; AdministeredAt defaults to the current time.
type RecordInput struct {
	Name           string                  `json:"name"`
	Type           entities.MedicationType `json:"type"`
	Dose           string                  `json:"dose"`
	Unit           string                  `json:"unit"`
	Route          string                  `json:"route"`
	AdministeredBy string                  `json:"administered_by"`
	AdministeredAt *time.Time              `json:"administered_at,omitempty"`

	Concentration     string `json:"concentration,omitempty"`
	ConcentrationUnit string `json:"concentration_unit,omitempty"`
	InfusionRate      string `json:"infusion_rate,omitempty"`
	InfusionRateUnit  string `json:"infusion_rate_unit,omitempty"`

	Indication             string   `json:"indication,omitempty"`
	ClinicalTrigger        string   `json:"clinical_trigger,omitempty"`
	AssociatedLabValue     *float64 `json:"associated_lab_value,omitempty"`
	AssociatedLabParameter string   `json:"associated_lab_parameter,omitempty"`
	Notes                  string   `json:"notes,omitempty"`
	VerifiedBy             string   `json:"verified_by,omitempty"`
}

// MedicationLedger owns the medication administration records and their
// state machine:
//
//	pending -> active -> {completed, stopped}
//	active <-> held
//
// Non-infusion types skip the active leg: Record creates them already
// completed, and one entered ahead of time with RecordPending resolves
// through Stop without ever starting.
type MedicationLedger struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*entities.MedicationRecord
	order   []uuid.UUID // creation order, survives deletes as a sparse list
	now     func() time.Time
}

// NewMedicationLedger creates an empty ledger.
func NewMedicationLedger() *MedicationLedger {
	return &MedicationLedger{
		records: make(map[uuid.UUID]*entities.MedicationRecord),
		now:     time.Now,
	}
}

// Record inserts a new record for the given case. Non-infusion types are
// administered as a single event and recorded already completed, with
// the stop time equal to the administration time. Infusions always start
// pending; use Start to begin the course. Use RecordPending for the
// "recorded, then started" flow on any type.
func (l *MedicationLedger) Record(caseID uuid.UUID, in RecordInput) (entities.MedicationRecord, error) {
	return l.insert(caseID, in, false)
}

// RecordPending inserts a new record in the pending state regardless of
// type, for administrations entered before they begin.
func (l *MedicationLedger) RecordPending(caseID uuid.UUID, in RecordInput) (entities.MedicationRecord, error) {
	return l.insert(caseID, in, true)
}

func (l *MedicationLedger) insert(caseID uuid.UUID, in RecordInput, pending bool) (entities.MedicationRecord, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return entities.MedicationRecord{}, validationErr("name", "medication name is required")
	case !in.Type.Valid():
		return entities.MedicationRecord{}, validationErr("type", "unknown medication type "+string(in.Type))
	case strings.TrimSpace(in.Dose) == "":
		return entities.MedicationRecord{}, validationErr("dose", "dose is required")
	case strings.TrimSpace(in.AdministeredBy) == "":
		return entities.MedicationRecord{}, validationErr("administered_by", "administering clinician is required")
	}

	now := l.now()
	administeredAt := now
	if in.AdministeredAt != nil {
		administeredAt = *in.AdministeredAt
	}
	route := in.Route
	if route == "" {
		route = "IV"
	}

	rec := &entities.MedicationRecord{
		ID:     uuid.New(),
		CaseID: caseID,

		Name:  in.Name,
		Type:  in.Type,
		Dose:  in.Dose,
		Unit:  in.Unit,
		Route: route,

		Concentration:     in.Concentration,
		ConcentrationUnit: in.ConcentrationUnit,
		InfusionRate:      in.InfusionRate,
		InfusionRateUnit:  in.InfusionRateUnit,

		AdministeredAt: administeredAt,
		Status:         entities.MedicationPending,

		Indication:             in.Indication,
		ClinicalTrigger:        in.ClinicalTrigger,
		AssociatedLabValue:     in.AssociatedLabValue,
		AssociatedLabParameter: in.AssociatedLabParameter,
		Notes:                  in.Notes,

		AdministeredBy: in.AdministeredBy,
		VerifiedBy:     in.VerifiedBy,

		CreatedAt:  now,
		ModifiedAt: now,
	}

	if !pending && rec.Type != entities.Infusion {
		stopped := administeredAt
		rec.Status = entities.MedicationCompleted
		rec.StoppedAt = &stopped
	}

	l.mu.Lock()
	l.records[rec.ID] = rec
	l.order = append(l.order, rec.ID)
	l.mu.Unlock()

	return *rec, nil
}

// Start moves a pending infusion to active. Any other status, or a
// non-infusion type, is rejected with ErrInvalidTransition.
func (l *MedicationLedger) Start(id uuid.UUID) (entities.MedicationRecord, error) {
	return l.transition(id, func(rec *entities.MedicationRecord) error {
		if rec.Type != entities.Infusion {
			return invalidTransition("start", rec.Type)
		}
		if rec.Status != entities.MedicationPending {
			return invalidTransition("start", rec.Status)
		}
		rec.Status = entities.MedicationActive
		return nil
	})
}

// Stop ends an active or held administration, or resolves a pending
// non-infusion record once the push is done. With an empty reason the
// course ended normally and the record completes; with a reason it is an
// early termination and the record is marked stopped. StoppedAt is set
// to the current time either way.
func (l *MedicationLedger) Stop(id uuid.UUID, reason string) (entities.MedicationRecord, error) {
	return l.transition(id, func(rec *entities.MedicationRecord) error {
		switch {
		case rec.Status == entities.MedicationActive, rec.Status == entities.MedicationHeld:
		case rec.Status == entities.MedicationPending && rec.Type != entities.Infusion:
		default:
			return invalidTransition("stop", rec.Status)
		}
		stopped := l.now()
		if stopped.Before(rec.AdministeredAt) {
			return validationErr("stopped_at", "stop cannot precede the administration time")
		}
		rec.StoppedAt = &stopped
		if reason == "" {
			rec.Status = entities.MedicationCompleted
		} else {
			rec.Status = entities.MedicationStopped
			rec.ReasonStopped = reason
		}
		rec.ReasonHeld = ""
		return nil
	})
}

// Hold pauses an active administration, recording the reason.
func (l *MedicationLedger) Hold(id uuid.UUID, reason string) (entities.MedicationRecord, error) {
	return l.transition(id, func(rec *entities.MedicationRecord) error {
		if rec.Status != entities.MedicationActive {
			return invalidTransition("hold", rec.Status)
		}
		if strings.TrimSpace(reason) == "" {
			return validationErr("reason_held", "a hold requires a reason")
		}
		rec.Status = entities.MedicationHeld
		rec.ReasonHeld = reason
		return nil
	})
}

// Resume returns a held administration to active and clears the hold
// reason.
func (l *MedicationLedger) Resume(id uuid.UUID) (entities.MedicationRecord, error) {
	return l.transition(id, func(rec *entities.MedicationRecord) error {
		if rec.Status != entities.MedicationHeld {
			return invalidTransition("resume", rec.Status)
		}
		rec.Status = entities.MedicationActive
		rec.ReasonHeld = ""
		return nil
	})
}

// Update applies free-form field edits outside the status transitions.
// Identity, status and audit-creation fields cannot be changed here; an
// edit that would put StoppedAt before AdministeredAt is declined.
func (l *MedicationLedger) Update(id uuid.UUID, mutate func(*entities.MedicationRecord)) (entities.MedicationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.records[id]
	if !ok {
		return entities.MedicationRecord{}, ErrNotFound
	}

	updated := *current
	mutate(&updated)

	updated.ID = current.ID
	updated.CaseID = current.CaseID
	updated.Status = current.Status
	updated.CreatedAt = current.CreatedAt

	if strings.TrimSpace(updated.AdministeredBy) == "" {
		return entities.MedicationRecord{}, validationErr("administered_by", "administering clinician is required")
	}
	if updated.StoppedAt != nil && updated.StoppedAt.Before(updated.AdministeredAt) {
		return entities.MedicationRecord{}, validationErr("stopped_at", "stop cannot precede the administration time")
	}

	updated.ModifiedAt = l.now()
	l.records[id] = &updated

	return updated, nil
}

// Delete removes a record. Deleting an unknown id is a no-op.
func (l *MedicationLedger) Delete(id uuid.UUID) {
	l.mu.Lock()
	delete(l.records, id)
	l.mu.Unlock()
}

// Get returns a copy of the record with the given id.
func (l *MedicationLedger) Get(id uuid.UUID) (entities.MedicationRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return entities.MedicationRecord{}, false
	}
	return *rec, true
}

// RecordsFor returns the case's records in creation order.
func (l *MedicationLedger) RecordsFor(caseID uuid.UUID) []entities.MedicationRecord {
	return l.filtered(caseID, "")
}

// RecordsForType returns the case's records of one administration type,
// in creation order.
func (l *MedicationLedger) RecordsForType(caseID uuid.UUID, t entities.MedicationType) []entities.MedicationRecord {
	return l.filtered(caseID, t)
}

// Count returns the number of records in the ledger.
func (l *MedicationLedger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// PurgeCase removes every record owned by the given case and returns how
// many were removed. The case store calls this while cascading a delete.
func (l *MedicationLedger) PurgeCase(caseID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	purged := 0
	for id, rec := range l.records {
		if rec.CaseID == caseID {
			delete(l.records, id)
			purged++
		}
	}
	if purged > 0 {
		logging.Info("Purged medication records for deleted case",
			"case_id", caseID.String(), "records_purged", purged)
	}
	return purged
}

func (l *MedicationLedger) filtered(caseID uuid.UUID, t entities.MedicationType) []entities.MedicationRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]entities.MedicationRecord, 0)
	for _, id := range l.order {
		rec, ok := l.records[id]
		if !ok || rec.CaseID != caseID {
			continue
		}
		if t != "" && rec.Type != t {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

func (l *MedicationLedger) transition(id uuid.UUID, step func(*entities.MedicationRecord) error) (entities.MedicationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.records[id]
	if !ok {
		return entities.MedicationRecord{}, ErrNotFound
	}

	updated := *current
	if err := step(&updated); err != nil {
		return entities.MedicationRecord{}, err
	}

	updated.ModifiedAt = l.now()
	l.records[id] = &updated

	return updated, nil
}
