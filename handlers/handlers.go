// Package handlers provides HTTP request handlers for the perfusion API
// endpoints, with dependencies injected so tests can run against mocks.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/perfusionpro/perfusion-api/directory"
	"github.com/perfusionpro/perfusion-api/export"
	"github.com/perfusionpro/perfusion-api/interfaces"
	"github.com/perfusionpro/perfusion-api/logging"
	"github.com/perfusionpro/perfusion-api/registry"
	"github.com/perfusionpro/perfusion-api/registry/entities"
)

// HTTPHandler serves the case, medication and hospital endpoints.
type HTTPHandler struct {
	cases     *registry.CaseStore
	ledger    *registry.MedicationLedger
	store     interfaces.DirectoryStore
	validator interfaces.InputValidator
	startTime time.Time
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(cases *registry.CaseStore, ledger *registry.MedicationLedger,
	store interfaces.DirectoryStore, validator interfaces.InputValidator) *HTTPHandler {
	return &HTTPHandler{
		cases:     cases,
		ledger:    ledger,
		store:     store,
		validator: validator,
		startTime: time.Now(),
	}
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandler) RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandler) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]interface{}{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// respondStoreError maps registry errors onto HTTP statuses: declined
// validations are 422, illegal state-machine moves are 409, unknown ids
// are 404.
func (h *HTTPHandler) respondStoreError(w http.ResponseWriter, err error) {
	var vErr *registry.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.RespondWithError(w, http.StatusUnprocessableEntity, vErr.Error())
	case errors.Is(err, registry.ErrInvalidTransition):
		h.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		h.RespondWithError(w, http.StatusNotFound, err.Error())
	default:
		logging.Error("Unexpected store error", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *HTTPHandler) parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		logging.Warn("Unusual user input", "param", param, "value", raw)
		h.RespondWithError(w, http.StatusBadRequest, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// CreateCase creates a new draft case
func (h *HTTPHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	c := h.cases.Create()
	h.RespondWithJSON(w, http.StatusCreated, c)
}

// GetCase returns a case by id
func (h *HTTPHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "caseId")
	if !ok {
		return
	}

	c, found := h.cases.Get(id)
	if !found {
		h.RespondWithError(w, http.StatusNotFound, "Case not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, c)
}

// caseUpdate is the PATCH payload for a case. Nil fields are unchanged.
type caseUpdate struct {
	ExternalReferenceID *string              `json:"external_reference_id,omitempty"`
	Status              *entities.CaseStatus `json:"status,omitempty"`

	DonorHospital    *string `json:"donor_hospital,omitempty"`
	TransplantCenter *string `json:"transplant_center,omitempty"`
	OMPS1            *string `json:"omps1,omitempty"`
	OMPS2            *string `json:"omps2,omitempty"`
	Surgeon1         *string `json:"surgeon1,omitempty"`
	Surgeon2         *string `json:"surgeon2,omitempty"`

	CrossClampTime *time.Time `json:"cross_clamp_time,omitempty"`
	FlushStartTime *time.Time `json:"flush_start_time,omitempty"`
	FlushEndTime   *time.Time `json:"flush_end_time,omitempty"`
	PumpOnTime     *time.Time `json:"pump_on_time,omitempty"`
	PumpOffTime    *time.Time `json:"pump_off_time,omitempty"`
}

func (u *caseUpdate) apply(c *entities.Case) {
	if u.ExternalReferenceID != nil {
		c.ExternalReferenceID = *u.ExternalReferenceID
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.DonorHospital != nil {
		c.DonorHospital = *u.DonorHospital
	}
	if u.TransplantCenter != nil {
		c.TransplantCenter = *u.TransplantCenter
	}
	if u.OMPS1 != nil {
		c.OMPS1 = *u.OMPS1
	}
	if u.OMPS2 != nil {
		c.OMPS2 = *u.OMPS2
	}
	if u.Surgeon1 != nil {
		c.Surgeon1 = *u.Surgeon1
	}
	if u.Surgeon2 != nil {
		c.Surgeon2 = *u.Surgeon2
	}
	if u.CrossClampTime != nil {
		c.CrossClampTime = u.CrossClampTime
	}
	if u.FlushStartTime != nil {
		c.FlushStartTime = u.FlushStartTime
	}
	if u.FlushEndTime != nil {
		c.FlushEndTime = u.FlushEndTime
	}
	if u.PumpOnTime != nil {
		c.PumpOnTime = u.PumpOnTime
	}
	if u.PumpOffTime != nil {
		c.PumpOffTime = u.PumpOffTime
	}
}

// UpdateCase applies a partial update to a case
func (h *HTTPHandler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "caseId")
	if !ok {
		return
	}

	var payload caseUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	for _, name := range []*string{payload.Surgeon1, payload.Surgeon2, payload.OMPS1, payload.OMPS2} {
		if name != nil && *name != "" {
			if err := h.validator.ValidateName(*name); err != nil {
				h.RespondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
	}

	updated, err := h.cases.Update(id, payload.apply)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, updated)
}

// DeleteCase deletes a case and all of its medication records
func (h *HTTPHandler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "caseId")
	if !ok {
		return
	}

	h.cases.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// ListCases returns all cases, newest first
func (h *HTTPHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases := make([]entities.Case, 0, h.cases.Count())
	for c := range h.cases.List() {
		cases = append(cases, c)
	}
	h.RespondWithJSON(w, http.StatusOK, cases)
}

// ListCasesPaged returns paginated cases, newest first
func (h *HTTPHandler) ListCasesPaged(w http.ResponseWriter, r *http.Request) {
	pageNumber := chi.URLParam(r, "pageNumber")
	page, err := strconv.Atoi(pageNumber)
	if err != nil || page < 1 {
		logging.Warn("Unusual user input", "pageNumber", pageNumber)
		h.RespondWithError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	pageSize := 10
	totalItems := h.cases.Count()
	start := (page - 1) * pageSize

	if start >= totalItems && totalItems > 0 {
		h.RespondWithError(w, http.StatusNotFound, "Page not found")
		return
	}

	paged := make([]entities.Case, 0, pageSize)
	index := 0
	for c := range h.cases.List() {
		if index >= start+pageSize {
			break
		}
		if index >= start {
			paged = append(paged, c)
		}
		index++
	}

	maxPage := (totalItems + pageSize - 1) / pageSize
	response := map[string]interface{}{
		"data":       paged,
		"page":       page,
		"pageSize":   pageSize,
		"totalItems": totalItems,
		"maxPage":    maxPage,
	}
	h.RespondWithJSON(w, http.StatusOK, response)
}

// RecordMedication records a new administration for a case. By default
// non-infusion types complete immediately; ?pending=true records any type
// in the pending state instead.
func (h *HTTPHandler) RecordMedication(w http.ResponseWriter, r *http.Request) {
	caseID, ok := h.parseID(w, r, "caseId")
	if !ok {
		return
	}
	if _, found := h.cases.Get(caseID); !found {
		h.RespondWithError(w, http.StatusNotFound, "Case not found")
		return
	}

	var in registry.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validator.ValidateName(in.Name); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var rec entities.MedicationRecord
	var err error
	if r.URL.Query().Get("pending") == "true" {
		rec, err = h.ledger.RecordPending(caseID, in)
	} else {
		rec, err = h.ledger.Record(caseID, in)
	}
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.RespondWithJSON(w, http.StatusCreated, rec)
}

// GetMedication returns a medication record by id
func (h *HTTPHandler) GetMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "medicationId")
	if !ok {
		return
	}

	rec, found := h.ledger.Get(id)
	if !found {
		h.RespondWithError(w, http.StatusNotFound, "Medication record not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, rec)
}

// ListCaseMedications returns a case's records in creation order,
// optionally filtered with ?type=
func (h *HTTPHandler) ListCaseMedications(w http.ResponseWriter, r *http.Request) {
	caseID, ok := h.parseID(w, r, "caseId")
	if !ok {
		return
	}
	if _, found := h.cases.Get(caseID); !found {
		h.RespondWithError(w, http.StatusNotFound, "Case not found")
		return
	}

	typeFilter := entities.MedicationType(r.URL.Query().Get("type"))
	if typeFilter != "" && !typeFilter.Valid() {
		h.RespondWithError(w, http.StatusBadRequest, "Unknown medication type: "+string(typeFilter))
		return
	}

	var records []entities.MedicationRecord
	if typeFilter != "" {
		records = h.ledger.RecordsForType(caseID, typeFilter)
	} else {
		records = h.ledger.RecordsFor(caseID)
	}
	h.RespondWithJSON(w, http.StatusOK, records)
}

// reasonPayload carries the optional reason of a stop or hold request.
type reasonPayload struct {
	Reason string `json:"reason"`
}

func (h *HTTPHandler) decodeReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload reasonPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
			return "", false
		}
	}
	if err := h.validator.ValidateReason(payload.Reason); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return payload.Reason, true
}

// StartMedication moves a pending infusion to active
func (h *HTTPHandler) StartMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "medicationId")
	if !ok {
		return
	}

	rec, err := h.ledger.Start(id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, rec)
}

// StopMedication ends an active or held administration. An empty reason
// completes the record; a reason marks it stopped early.
func (h *HTTPHandler) StopMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "medicationId")
	if !ok {
		return
	}
	reason, ok := h.decodeReason(w, r)
	if !ok {
		return
	}

	rec, err := h.ledger.Stop(id, reason)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, rec)
}

// HoldMedication pauses an active administration
func (h *HTTPHandler) HoldMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "medicationId")
	if !ok {
		return
	}
	reason, ok := h.decodeReason(w, r)
	if !ok {
		return
	}

	rec, err := h.ledger.Hold(id, reason)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, rec)
}

// ResumeMedication returns a held administration to active
func (h *HTTPHandler) ResumeMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "medicationId")
	if !ok {
		return
	}

	rec, err := h.ledger.Resume(id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, rec)
}

// medicationUpdate is the PATCH payload for a medication record. Nil
// fields are unchanged. Status moves go through the transition endpoints.
type medicationUpdate struct {
	Name  *string `json:"name,omitempty"`
	Dose  *string `json:"dose,omitempty"`
	Unit  *string `json:"unit,omitempty"`
	Route *string `json:"route,omitempty"`

	Concentration     *string `json:"concentration,omitempty"`
	ConcentrationUnit *string `json:"concentration_unit,omitempty"`
	InfusionRate      *string `json:"infusion_rate,omitempty"`
	InfusionRateUnit  *string `json:"infusion_rate_unit,omitempty"`

	AdministeredAt *time.Time `json:"administered_at,omitempty"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`

	Indication             *string  `json:"indication,omitempty"`
	ClinicalTrigger        *string  `json:"clinical_trigger,omitempty"`
	AssociatedLabValue     *float64 `json:"associated_lab_value,omitempty"`
	AssociatedLabParameter *string  `json:"associated_lab_parameter,omitempty"`
	Notes                  *string  `json:"notes,omitempty"`
	AdverseReaction        *string  `json:"adverse_reaction,omitempty"`
	Effectiveness          *string  `json:"effectiveness,omitempty"`

	AdministeredBy *string `json:"administered_by,omitempty"`
	VerifiedBy     *string `json:"verified_by,omitempty"`
}

func (u *medicationUpdate) apply(rec *entities.MedicationRecord) {
	if u.Name != nil {
		rec.Name = *u.Name
	}
	if u.Dose != nil {
		rec.Dose = *u.Dose
	}
	if u.Unit != nil {
		rec.Unit = *u.Unit
	}
	if u.Route != nil {
		rec.Route = *u.Route
	}
	if u.Concentration != nil {
		rec.Concentration = *u.Concentration
	}
	if u.ConcentrationUnit != nil {
		rec.ConcentrationUnit = *u.ConcentrationUnit
	}
	if u.InfusionRate != nil {
		rec.InfusionRate = *u.InfusionRate
	}
	if u.InfusionRateUnit != nil {
		rec.InfusionRateUnit = *u.InfusionRateUnit
	}
	if u.AdministeredAt != nil {
		rec.AdministeredAt = *u.AdministeredAt
	}
	if u.StoppedAt != nil {
		rec.StoppedAt = u.StoppedAt
	}
	if u.Indication != nil {
		rec.Indication = *u.Indication
	}
	if u.ClinicalTrigger != nil {
		rec.ClinicalTrigger = *u.ClinicalTrigger
	}
	if u.AssociatedLabValue != nil {
		rec.AssociatedLabValue = u.AssociatedLabValue
	}
	if u.AssociatedLabParameter != nil {
		rec.AssociatedLabParameter = *u.AssociatedLabParameter
	}
	if u.Notes != nil {
		rec.Notes = *u.Notes
	}
	if u.AdverseReaction != nil {
		rec.AdverseReaction = *u.AdverseReaction
	}
	if u.Effectiveness != nil {
		rec.Effectiveness = *u.Effectiveness
	}
	if u.AdministeredBy != nil {
		rec.AdministeredBy = *u.AdministeredBy
	}
	if u.VerifiedBy != nil {
		rec.VerifiedBy = *u.VerifiedBy
	}
}

// UpdateMedication applies a partial update to a medication record
func (h *HTTPHandler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "medicationId")
	if !ok {
		return
	}

	var payload medicationUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if payload.Name != nil {
		if err := h.validator.ValidateName(*payload.Name); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rec, err := h.ledger.Update(id, payload.apply)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, rec)
}

// DeleteMedication deletes a medication record
func (h *HTTPHandler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "medicationId")
	if !ok {
		return
	}

	h.ledger.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// ExportMedicationsCSV renders a case's medication records as the
// comma-delimited hand-off report
func (h *HTTPHandler) ExportMedicationsCSV(w http.ResponseWriter, r *http.Request) {
	caseID, ok := h.parseID(w, r, "caseId")
	if !ok {
		return
	}
	c, found := h.cases.Get(caseID)
	if !found {
		h.RespondWithError(w, http.StatusNotFound, "Case not found")
		return
	}

	csv := export.MedicationCSV(h.ledger.RecordsFor(caseID))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", c.CaseLabel+"-medications.csv"))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(csv))
}

// ServeHospitals returns the full hospital directory, name ascending
func (h *HTTPHandler) ServeHospitals(w http.ResponseWriter, r *http.Request) {
	h.RespondWithJSON(w, http.StatusOK, h.store.GetHospitals())
}

// SearchHospitals returns the hospitals matching ?q= against name, city,
// state and county. An empty query returns the full directory.
func (h *HTTPHandler) SearchHospitals(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if err := h.validator.ValidateQuery(query); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := directory.Search(h.store.GetHospitals(), query)
	h.RespondWithJSON(w, http.StatusOK, results)
}

// GroupedHospitals returns the directory grouped by region for display.
// A non-empty ?q= collapses the grouping into a single search-results
// section.
func (h *HTTPHandler) GroupedHospitals(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if err := h.validator.ValidateQuery(query); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	groups := directory.GroupedByRegion(h.store.GetHospitals(), query)
	h.RespondWithJSON(w, http.StatusOK, groups)
}

// FindHospital returns a hospital by provider number
func (h *HTTPHandler) FindHospital(w http.ResponseWriter, r *http.Request) {
	providerNumber := chi.URLParam(r, "providerNumber")
	hospital, exists := h.store.GetHospitalMap()[providerNumber]
	if !exists {
		h.RespondWithError(w, http.StatusNotFound, "Hospital not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, hospital)
}

// DirectoryStatus reports the directory's load state for the status bar
func (h *HTTPHandler) DirectoryStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"hospital_count": len(h.store.GetHospitals()),
		"last_updated":   h.store.GetLastUpdated().Format(time.RFC3339),
		"is_loading":     h.store.IsLoading(),
	}
	if msg := h.store.LastError(); msg != "" {
		response["last_error"] = msg
	}
	h.RespondWithJSON(w, http.StatusOK, response)
}

// HealthCheck returns server health information
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	hospitals := h.store.GetHospitals()
	lastUpdate := h.store.GetLastUpdated()
	dataAge := time.Since(lastUpdate)

	// The directory may legitimately run on the seed dataset, so only a
	// completely empty directory is unhealthy.
	var healthStatus string
	var httpStatus int
	switch {
	case len(hospitals) == 0:
		healthStatus = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	case dataAge > 48*time.Hour:
		healthStatus = "degraded"
		httpStatus = http.StatusOK
	default:
		healthStatus = "healthy"
		httpStatus = http.StatusOK
	}

	uptime := time.Since(h.startTime)
	response := map[string]interface{}{
		"status":         healthStatus,
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": dataAge.Hours(),
		"uptime_seconds": uptime.Seconds(),
		"uptime_human":   formatUptimeHuman(uptime),
		"data": map[string]interface{}{
			"api_version": "1.0",
			"cases":       h.cases.Count(),
			"medications": h.ledger.Count(),
			"hospitals":   len(hospitals),
			"is_loading":  h.store.IsLoading(),
		},
		"system": map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	}

	h.RespondWithJSON(w, httpStatus, response)
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
