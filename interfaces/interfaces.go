// Package interfaces defines the contracts between the perfusion API's
// components, so the scheduler, handlers and directory pipeline can be
// exercised against mocks.
package interfaces

import (
	"io"
	"time"

	"github.com/perfusionpro/perfusion-api/registry/entities"
)

// DirectoryStore is the shared state of the hospital directory. Readers
// always observe a complete list: updates replace the snapshot
// atomically, never partially.
type DirectoryStore interface {
	// Read side
	GetHospitals() []entities.Hospital
	GetHospitalMap() map[string]entities.Hospital
	GetLastUpdated() time.Time
	IsLoading() bool
	LastError() string

	// Load lifecycle
	BeginLoad() bool
	EndLoad()
	UpdateData(hospitals []entities.Hospital)
	SetLoadError(message string)
}

// HospitalSource yields the raw bytes of the hospital dataset.
type HospitalSource interface {
	Open() (io.ReadCloser, error)
	Name() string
}

// HospitalParser turns raw dataset bytes into filtered hospital records.
type HospitalParser interface {
	Parse(r io.Reader) ([]entities.Hospital, error)
}

// Scheduler manages the periodic directory reload and its health
// monitoring.
type Scheduler interface {
	Start() error
	Stop()
	Refresh()
}

// InputValidator screens user-supplied strings before they reach the
// stores or the directory.
type InputValidator interface {
	ValidateQuery(input string) error
	ValidateName(input string) error
	ValidateReason(input string) error
}
