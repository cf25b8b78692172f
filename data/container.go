// Package data provides the thread-safe shared state of the hospital
// directory. The DirectoryContainer holds the loaded hospital list in an
// atomic.Value so a reload replaces it wholesale: readers see either the
// old complete list or the new complete list, never a partial one.
package data

import (
	"sync/atomic"
	"time"

	"github.com/perfusionpro/perfusion-api/interfaces"
	"github.com/perfusionpro/perfusion-api/logging"
	"github.com/perfusionpro/perfusion-api/registry/entities"
)

// Compile-time check that DirectoryContainer implements DirectoryStore.
var _ interfaces.DirectoryStore = (*DirectoryContainer)(nil)

// DirectoryContainer is the atomically swapped hospital directory state,
// plus the loading/lastError pair callers use to render retry
// affordances.
type DirectoryContainer struct {
	hospitals   atomic.Value // []entities.Hospital
	hospitalMap atomic.Value // map[string]entities.Hospital, keyed by provider number
	lastUpdated atomic.Value // time.Time
	lastError   atomic.Value // string, empty when the last load succeeded
	loading     atomic.Bool
}

// NewDirectoryContainer creates a container with empty data.
func NewDirectoryContainer() *DirectoryContainer {
	dc := &DirectoryContainer{}
	dc.hospitals.Store(make([]entities.Hospital, 0))
	dc.hospitalMap.Store(make(map[string]entities.Hospital))
	dc.lastUpdated.Store(time.Time{})
	dc.lastError.Store("")
	return dc
}

// GetHospitals returns the current hospital list.
func (dc *DirectoryContainer) GetHospitals() []entities.Hospital {
	if v := dc.hospitals.Load(); v != nil {
		if hospitals, ok := v.([]entities.Hospital); ok {
			return hospitals
		}
	}

	logging.Warn("Hospital list is empty or invalid")
	return []entities.Hospital{}
}

// GetHospitalMap returns the provider-number index for O(1) lookups.
func (dc *DirectoryContainer) GetHospitalMap() map[string]entities.Hospital {
	if v := dc.hospitalMap.Load(); v != nil {
		if hospitalMap, ok := v.(map[string]entities.Hospital); ok {
			return hospitalMap
		}
	}

	logging.Warn("Hospital map is empty or invalid")
	return make(map[string]entities.Hospital)
}

// GetLastUpdated returns the timestamp of the last successful load.
func (dc *DirectoryContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsLoading reports whether a load is in progress.
func (dc *DirectoryContainer) IsLoading() bool {
	return dc.loading.Load()
}

// LastError returns the human-readable message of the last failed load,
// or "" when the directory is healthy.
func (dc *DirectoryContainer) LastError() string {
	if v := dc.lastError.Load(); v != nil {
		if message, ok := v.(string); ok {
			return message
		}
	}
	return ""
}

// BeginLoad marks a load as in progress. It returns false when another
// load already runs, so concurrent reload triggers collapse to one.
func (dc *DirectoryContainer) BeginLoad() bool {
	return dc.loading.CompareAndSwap(false, true)
}

// EndLoad clears the in-progress flag.
func (dc *DirectoryContainer) EndLoad() {
	dc.loading.Store(false)
}

// UpdateData atomically replaces the directory contents and clears the
// error state. The provider-number index is rebuilt from the new list.
func (dc *DirectoryContainer) UpdateData(hospitals []entities.Hospital) {
	hospitalMap := make(map[string]entities.Hospital, len(hospitals))
	for i := range hospitals {
		hospitalMap[hospitals[i].ProviderNumber] = hospitals[i]
	}

	dc.hospitals.Store(hospitals)
	dc.hospitalMap.Store(hospitalMap)
	dc.lastUpdated.Store(time.Now())
	dc.lastError.Store("")
}

// SetLoadError records a human-readable load failure. The current list
// is left in place; callers typically install the seed data first.
func (dc *DirectoryContainer) SetLoadError(message string) {
	dc.lastError.Store(message)
}
