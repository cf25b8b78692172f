package data

import (
	"testing"
	"time"

	"github.com/perfusionpro/perfusion-api/registry/entities"
)

func TestNewContainerIsEmpty(t *testing.T) {
	dc := NewDirectoryContainer()

	if got := dc.GetHospitals(); len(got) != 0 {
		t.Errorf("new container holds %d hospitals", len(got))
	}
	if got := dc.GetHospitalMap(); len(got) != 0 {
		t.Errorf("new container map holds %d entries", len(got))
	}
	if !dc.GetLastUpdated().IsZero() {
		t.Error("new container should have a zero last-updated time")
	}
	if dc.IsLoading() {
		t.Error("new container should not be loading")
	}
	if dc.LastError() != "" {
		t.Errorf("new container has error %q", dc.LastError())
	}
}

func TestUpdateData(t *testing.T) {
	dc := NewDirectoryContainer()
	dc.SetLoadError("previous failure")

	hospitals := []entities.Hospital{
		{ProviderNumber: "H1", Name: "Mass General", State: "MA"},
		{ProviderNumber: "H2", Name: "Maine Medical", State: "ME"},
	}

	before := time.Now()
	dc.UpdateData(hospitals)

	if got := dc.GetHospitals(); len(got) != 2 {
		t.Fatalf("got %d hospitals, want 2", len(got))
	}

	m := dc.GetHospitalMap()
	if m["H1"].Name != "Mass General" || m["H2"].Name != "Maine Medical" {
		t.Errorf("provider index not rebuilt: %v", m)
	}

	if dc.GetLastUpdated().Before(before) {
		t.Error("last-updated not refreshed")
	}

	// A successful load clears the error state.
	if dc.LastError() != "" {
		t.Errorf("error not cleared: %q", dc.LastError())
	}
}

func TestBeginLoadCollapsesConcurrentTriggers(t *testing.T) {
	dc := NewDirectoryContainer()

	if !dc.BeginLoad() {
		t.Fatal("first BeginLoad should win")
	}
	if dc.BeginLoad() {
		t.Error("second BeginLoad should lose while a load runs")
	}
	if !dc.IsLoading() {
		t.Error("IsLoading should report the running load")
	}

	dc.EndLoad()
	if dc.IsLoading() {
		t.Error("EndLoad should clear the flag")
	}
	if !dc.BeginLoad() {
		t.Error("BeginLoad should win again after EndLoad")
	}
}

func TestSetLoadErrorKeepsData(t *testing.T) {
	dc := NewDirectoryContainer()
	dc.UpdateData([]entities.Hospital{{ProviderNumber: "H1", Name: "Mass General"}})

	dc.SetLoadError("connection refused")

	if dc.LastError() != "connection refused" {
		t.Errorf("error = %q", dc.LastError())
	}
	if len(dc.GetHospitals()) != 1 {
		t.Error("a load error must not discard the published directory")
	}
}
