package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/perfusionpro/perfusion-api/registry/entities"
)

func infusionInput() RecordInput {
	return RecordInput{
		Name:           "Heparin",
		Type:           entities.Infusion,
		Dose:           "5000",
		Unit:           "units",
		AdministeredBy: "J. Ortiz",
	}
}

func bolusInput() RecordInput {
	return RecordInput{
		Name:           "Mannitol",
		Type:           entities.Bolus,
		Dose:           "12.5",
		Unit:           "g",
		AdministeredBy: "J. Ortiz",
	}
}

func TestRecordNonInfusionCompletesImmediately(t *testing.T) {
	ledger := NewMedicationLedger()
	caseID := uuid.New()

	rec, err := ledger.Record(caseID, bolusInput())
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if rec.Status != entities.MedicationCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	if rec.StoppedAt == nil || !rec.StoppedAt.Equal(rec.AdministeredAt) {
		t.Error("a single-event administration stops when it is administered")
	}
	if rec.Route != "IV" {
		t.Errorf("route = %q, want the IV default", rec.Route)
	}
}

func TestRecordInfusionStaysPending(t *testing.T) {
	ledger := NewMedicationLedger()

	rec, err := ledger.Record(uuid.New(), infusionInput())
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if rec.Status != entities.MedicationPending {
		t.Errorf("status = %q, want pending", rec.Status)
	}
	if rec.StoppedAt != nil {
		t.Error("pending infusion should have no stop time")
	}
}

func TestRecordPendingKeepsAnyTypePending(t *testing.T) {
	ledger := NewMedicationLedger()

	rec, err := ledger.RecordPending(uuid.New(), bolusInput())
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if rec.Status != entities.MedicationPending {
		t.Errorf("status = %q, want pending", rec.Status)
	}
}

func TestRecordValidation(t *testing.T) {
	ledger := NewMedicationLedger()
	caseID := uuid.New()

	tests := []struct {
		name   string
		mutate func(*RecordInput)
	}{
		{"missing name", func(in *RecordInput) { in.Name = " " }},
		{"unknown type", func(in *RecordInput) { in.Type = "drip" }},
		{"missing dose", func(in *RecordInput) { in.Dose = "" }},
		{"missing clinician", func(in *RecordInput) { in.AdministeredBy = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := infusionInput()
			tt.mutate(&in)

			_, err := ledger.Record(caseID, in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected a ValidationError, got %v", err)
			}
		})
	}

	if ledger.Count() != 0 {
		t.Errorf("declined inserts must not be stored, count = %d", ledger.Count())
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*MedicationLedger, uuid.UUID) uuid.UUID
		act     func(*MedicationLedger, uuid.UUID) error
		wantErr error
	}{
		{
			name: "start a pending infusion",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, infusionInput())
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Start(id)
				return err
			},
		},
		{
			name: "start a completed bolus",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, bolusInput())
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Start(id)
				return err
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "start an active infusion twice",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, infusionInput())
				l.Start(rec.ID)
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Start(id)
				return err
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "stop a pending infusion",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, infusionInput())
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Stop(id, "")
				return err
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "stop a pending bolus",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.RecordPending(caseID, bolusInput())
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Stop(id, "")
				return err
			},
		},
		{
			name: "hold an active infusion",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, infusionInput())
				l.Start(rec.ID)
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Hold(id, "hypotension")
				return err
			},
		},
		{
			name: "hold a pending infusion",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, infusionInput())
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Hold(id, "hypotension")
				return err
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "resume a held infusion",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, infusionInput())
				l.Start(rec.ID)
				l.Hold(rec.ID, "hypotension")
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Resume(id)
				return err
			},
		},
		{
			name: "resume an active infusion",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, infusionInput())
				l.Start(rec.ID)
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Resume(id)
				return err
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "stop a held infusion",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, infusionInput())
				l.Start(rec.ID)
				l.Hold(rec.ID, "hypotension")
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Stop(id, "case ended")
				return err
			},
		},
		{
			name: "stop a stopped infusion",
			prepare: func(l *MedicationLedger, caseID uuid.UUID) uuid.UUID {
				rec, _ := l.Record(caseID, infusionInput())
				l.Start(rec.ID)
				l.Stop(rec.ID, "")
				return rec.ID
			},
			act: func(l *MedicationLedger, id uuid.UUID) error {
				_, err := l.Stop(id, "")
				return err
			},
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewMedicationLedger()
			id := tt.prepare(ledger, uuid.New())

			err := tt.act(ledger, id)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStopReasonDecidesFinalStatus(t *testing.T) {
	t.Run("no reason completes", func(t *testing.T) {
		ledger := NewMedicationLedger()
		rec, _ := ledger.Record(uuid.New(), infusionInput())
		ledger.Start(rec.ID)

		stopped, err := ledger.Stop(rec.ID, "")
		if err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		if stopped.Status != entities.MedicationCompleted {
			t.Errorf("status = %q, want completed", stopped.Status)
		}
		if stopped.StoppedAt == nil {
			t.Error("StoppedAt should be set")
		}
	})

	t.Run("a reason marks stopped", func(t *testing.T) {
		ledger := NewMedicationLedger()
		rec, _ := ledger.Record(uuid.New(), infusionInput())
		ledger.Start(rec.ID)

		stopped, err := ledger.Stop(rec.ID, "adverse reaction")
		if err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		if stopped.Status != entities.MedicationStopped {
			t.Errorf("status = %q, want stopped", stopped.Status)
		}
		if stopped.ReasonStopped != "adverse reaction" {
			t.Errorf("reason = %q", stopped.ReasonStopped)
		}
	})
}

// TestPendingBolusResolvesThroughStop covers the single-event flow when
// the record was entered ahead of time: Start never applies to a bolus,
// so Stop is the operation that takes it out of pending.
func TestPendingBolusResolvesThroughStop(t *testing.T) {
	t.Run("start stays invalid", func(t *testing.T) {
		ledger := NewMedicationLedger()
		rec, _ := ledger.RecordPending(uuid.New(), bolusInput())

		if _, err := ledger.Start(rec.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("start of a pending bolus: %v", err)
		}
	})

	t.Run("no reason completes", func(t *testing.T) {
		ledger := NewMedicationLedger()
		rec, _ := ledger.RecordPending(uuid.New(), bolusInput())

		resolved, err := ledger.Stop(rec.ID, "")
		if err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		if resolved.Status != entities.MedicationCompleted {
			t.Errorf("status = %q, want completed", resolved.Status)
		}
		if resolved.StoppedAt == nil {
			t.Error("StoppedAt should be set")
		}
	})

	t.Run("a reason marks stopped", func(t *testing.T) {
		ledger := NewMedicationLedger()
		rec, _ := ledger.RecordPending(uuid.New(), bolusInput())

		resolved, err := ledger.Stop(rec.ID, "dose held by surgeon")
		if err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		if resolved.Status != entities.MedicationStopped {
			t.Errorf("status = %q, want stopped", resolved.Status)
		}
		if resolved.ReasonStopped != "dose held by surgeon" {
			t.Errorf("reason = %q", resolved.ReasonStopped)
		}
	})

	t.Run("a pending infusion still cannot stop", func(t *testing.T) {
		ledger := NewMedicationLedger()
		rec, _ := ledger.RecordPending(uuid.New(), infusionInput())

		if _, err := ledger.Stop(rec.ID, ""); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("stop of a pending infusion: %v", err)
		}
	})
}

// TestRecordWithConcurrentDeletes interleaves Record with a deleter
// goroutine. The returned record must always come back completed, even
// when its stored counterpart is removed immediately.
func TestRecordWithConcurrentDeletes(t *testing.T) {
	ledger := NewMedicationLedger()
	caseID := uuid.New()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			for _, rec := range ledger.RecordsFor(caseID) {
				ledger.Delete(rec.ID)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		rec, err := ledger.Record(caseID, bolusInput())
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if rec.Status != entities.MedicationCompleted {
			t.Fatalf("status = %q, want completed", rec.Status)
		}
	}
	close(done)
}

func TestHoldRequiresReason(t *testing.T) {
	ledger := NewMedicationLedger()
	rec, _ := ledger.Record(uuid.New(), infusionInput())
	ledger.Start(rec.ID)

	_, err := ledger.Hold(rec.ID, "  ")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected a ValidationError, got %v", err)
	}
}

func TestResumeClearsHoldReason(t *testing.T) {
	ledger := NewMedicationLedger()
	rec, _ := ledger.Record(uuid.New(), infusionInput())
	ledger.Start(rec.ID)
	ledger.Hold(rec.ID, "hypotension")

	resumed, err := ledger.Resume(rec.ID)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.ReasonHeld != "" {
		t.Errorf("hold reason should clear, got %q", resumed.ReasonHeld)
	}
}

func TestTransitionUnknownRecord(t *testing.T) {
	ledger := NewMedicationLedger()

	if _, err := ledger.Start(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Start: expected ErrNotFound, got %v", err)
	}
	if _, err := ledger.Stop(uuid.New(), ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stop: expected ErrNotFound, got %v", err)
	}
}

func TestLedgerUpdate(t *testing.T) {
	ledger := NewMedicationLedger()
	rec, _ := ledger.Record(uuid.New(), infusionInput())
	ledger.Start(rec.ID)

	t.Run("protects identity and status", func(t *testing.T) {
		updated, err := ledger.Update(rec.ID, func(r *entities.MedicationRecord) {
			r.ID = uuid.New()
			r.CaseID = uuid.New()
			r.Status = entities.MedicationCompleted
			r.Notes = "rate adjusted at 10:30"
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if updated.ID != rec.ID || updated.CaseID != rec.CaseID {
			t.Error("identity fields must be immutable")
		}
		if updated.Status != entities.MedicationActive {
			t.Error("status cannot be changed through Update")
		}
		if updated.Notes != "rate adjusted at 10:30" {
			t.Errorf("notes = %q", updated.Notes)
		}
	})

	t.Run("rejects stop before administration", func(t *testing.T) {
		early := rec.AdministeredAt.Add(-time.Hour)
		_, err := ledger.Update(rec.ID, func(r *entities.MedicationRecord) {
			r.StoppedAt = &early
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected a ValidationError, got %v", err)
		}
	})
}

func TestRecordsForKeepsCreationOrder(t *testing.T) {
	ledger := NewMedicationLedger()
	caseID := uuid.New()
	otherCase := uuid.New()

	first, _ := ledger.Record(caseID, bolusInput())
	ledger.Record(otherCase, bolusInput())
	second, _ := ledger.Record(caseID, infusionInput())
	third, _ := ledger.Record(caseID, bolusInput())

	records := ledger.RecordsFor(caseID)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	want := []uuid.UUID{first.ID, second.ID, third.ID}
	for i := range want {
		if records[i].ID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, records[i].ID, want[i])
		}
	}

	infusions := ledger.RecordsForType(caseID, entities.Infusion)
	if len(infusions) != 1 || infusions[0].ID != second.ID {
		t.Errorf("type filter returned %v", infusions)
	}
}

func TestPurgeCase(t *testing.T) {
	ledger := NewMedicationLedger()
	caseID := uuid.New()
	survivor := uuid.New()

	ledger.Record(caseID, bolusInput())
	ledger.Record(caseID, infusionInput())
	kept, _ := ledger.Record(survivor, bolusInput())

	if purged := ledger.PurgeCase(caseID); purged != 2 {
		t.Errorf("purged = %d, want 2", purged)
	}
	if ledger.Count() != 1 {
		t.Errorf("count = %d, want 1", ledger.Count())
	}
	if _, ok := ledger.Get(kept.ID); !ok {
		t.Error("records of other cases must survive a purge")
	}
}

// TestInfusionLifecycle walks one record through the full clinical flow:
// recorded pending, started, held for an event, resumed, and stopped
// early with a reason.
func TestInfusionLifecycle(t *testing.T) {
	ledger := NewMedicationLedger()
	caseID := uuid.New()

	rec, err := ledger.Record(caseID, infusionInput())
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Status != entities.MedicationPending {
		t.Fatalf("after record: %q", rec.Status)
	}

	rec, err = ledger.Start(rec.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if rec.Status != entities.MedicationActive {
		t.Fatalf("after start: %q", rec.Status)
	}

	rec, err = ledger.Hold(rec.ID, "MAP below target")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if rec.Status != entities.MedicationHeld || rec.ReasonHeld != "MAP below target" {
		t.Fatalf("after hold: %q (%q)", rec.Status, rec.ReasonHeld)
	}

	rec, err = ledger.Resume(rec.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if rec.Status != entities.MedicationActive || rec.ReasonHeld != "" {
		t.Fatalf("after resume: %q (%q)", rec.Status, rec.ReasonHeld)
	}

	rec, err = ledger.Stop(rec.ID, "organ delivered")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if rec.Status != entities.MedicationStopped {
		t.Fatalf("after stop: %q", rec.Status)
	}
	if rec.StoppedAt == nil || rec.StoppedAt.Before(rec.AdministeredAt) {
		t.Error("stop time must exist and not precede the administration")
	}

	// Terminal: nothing else is legal.
	if _, err := ledger.Start(rec.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("start after stop: %v", err)
	}
	if _, err := ledger.Resume(rec.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resume after stop: %v", err)
	}
}
