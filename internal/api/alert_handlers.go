package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/models"
)

const maxAlertTTL = 30 * 24 * time.Hour

// IssueAlertRequest is the body of POST /api/alerts. ExpiresAt wins over
// TTLHours; when both are absent the ledger default applies.
type IssueAlertRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Severity      SeverityParam   `json:"severity"`
	Location      models.Location `json:"location"`
	RadiusKm      float64         `json:"radius_km"`
	RiskType      string          `json:"risk_type"`
	RiskScore     int64           `json:"risk_score"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	TTLHours      float64         `json:"ttl_hours,omitempty"`
	ContactInfo   string          `json:"contact_info,omitempty"`
	LinkedProofID uint64          `json:"linked_proof_id,omitempty"`
}

func (req IssueAlertRequest) input() (ledger.AlertInput, error) {
	in := ledger.AlertInput{
		Title:         req.Title,
		Description:   req.Description,
		Severity:      models.Severity(req.Severity),
		Location:      req.Location,
		RadiusKm:      req.RadiusKm,
		RiskType:      req.RiskType,
		RiskScore:     req.RiskScore,
		ContactInfo:   req.ContactInfo,
		LinkedProofID: req.LinkedProofID,
	}
	switch {
	case req.ExpiresAt != nil:
		in.ExpiresAt = *req.ExpiresAt
	case req.TTLHours != 0:
		ttl, err := ParseTTL("ttl_hours", req.TTLHours, maxAlertTTL)
		if err != nil {
			return in, err
		}
		in.ExpiresAt = time.Now().Add(ttl)
	}
	return in, nil
}

// IssueAlert handles POST /api/alerts
func (h *Handler) IssueAlert(w http.ResponseWriter, r *http.Request) {
	var req IssueAlertRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	alert, err := h.ledger.IssueAlert(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, alert)
}

// StatusRequest is the body of the status update endpoints.
type StatusRequest struct {
	Status     string   `json:"status"`
	Completion *float64 `json:"completion_percentage,omitempty"`
	Note       string   `json:"note,omitempty"`
}

// UpdateAlertStatus handles PUT /api/alerts/{id}/status
func (h *Handler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req StatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	alert, err := h.ledger.UpdateAlertStatus(r.Context(), principal(r), id, models.AlertStatus(req.Status))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, alert)
}

// ListAlerts handles GET /api/alerts
//
// Query parameters: severity, status, risk_type, active, lat, lon, radius,
// limit, offset.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	alerts := h.ledger.Alerts(filter)
	if alerts == nil {
		alerts = []models.EmergencyAlert{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func parseAlertFilter(r *http.Request) (ledger.AlertFilter, error) {
	q := r.URL.Query()
	filter := ledger.AlertFilter{
		Status:   models.AlertStatus(q.Get("status")),
		RiskType: q.Get("risk_type"),
		Limit:    queryLimit(r, 50, 500),
	}

	if raw := q.Get("severity"); raw != "" {
		sev, err := models.ParseSeverity(raw)
		if err != nil {
			return filter, ValidationError{Field: "severity", Message: err.Error()}
		}
		filter.Severity = sev
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, ValidationError{Field: "active", Message: "Must be true or false"}
		}
		filter.ActiveOnly = active
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, ValidationError{Field: "offset", Message: "Must be a non-negative integer"}
		}
		filter.Offset = offset
	}

	lat, lon := q.Get("lat"), q.Get("lon")
	if lat == "" && lon == "" {
		return filter, nil
	}
	if lat == "" || lon == "" {
		return filter, ValidationError{Field: "lat", Message: "lat and lon must be given together"}
	}
	near := models.Location{}
	var err error
	if near.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
		return filter, ValidationError{Field: "lat", Message: "Invalid latitude"}
	}
	if near.Longitude, err = strconv.ParseFloat(lon, 64); err != nil {
		return filter, ValidationError{Field: "lon", Message: "Invalid longitude"}
	}
	if !near.Valid() {
		return filter, ValidationError{Field: "lat", Message: "Coordinates out of range"}
	}
	filter.Near = &near

	if raw := q.Get("radius"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			return filter, ValidationError{Field: "radius", Message: "Must be a positive number"}
		}
		filter.RadiusKm = radius
	}
	return filter, nil
}

// GetAlert handles GET /api/alerts/{id}
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	alert, err := h.ledger.Alert(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, alert)
}

// ResourceRequest is the body of POST /api/alerts/{id}/resources.
type ResourceRequest struct {
	ResourceType string `json:"resource_type"`
	Quantity     int64  `json:"quantity"`
	Unit         string `json:"unit,omitempty"`
}

// AllocateResource handles POST /api/alerts/{id}/resources
func (h *Handler) AllocateResource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req ResourceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.ledger.AllocateResource(r.Context(), principal(r), id, req.ResourceType, req.Quantity, req.Unit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, res)
}

// ListResources handles GET /api/alerts/{id}/resources
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resources, err := h.ledger.Resources(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if resources == nil {
		resources = []models.ResourceAllocation{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"alert_id":  id,
		"resources": resources,
		"count":     len(resources),
	})
}

// ListAlertResponses handles GET /api/alerts/{id}/responses
func (h *Handler) ListAlertResponses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	plans, err := h.ledger.ResponsesByAlert(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if plans == nil {
		plans = []models.ResponsePlan{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"alert_id":  id,
		"responses": plans,
		"count":     len(plans),
	})
}

// ResponsePlanRequest is the body of POST /api/responses.
type ResponsePlanRequest struct {
	AlertID            uint64   `json:"alert_id"`
	ResponseType       string   `json:"response_type"`
	Description        string   `json:"description,omitempty"`
	Priority           int64    `json:"priority"`
	PersonnelCount     uint32   `json:"personnel_count"`
	EstimatedCost      float64  `json:"estimated_cost"`
	DeploymentLocation string   `json:"deployment_location,omitempty"`
	SupportingAgencies []string `json:"supporting_agencies,omitempty"`
	ContactPerson      string   `json:"contact_person,omitempty"`
	ContactPhone       string   `json:"contact_phone,omitempty"`
}

// CreateResponsePlan handles POST /api/responses
func (h *Handler) CreateResponsePlan(w http.ResponseWriter, r *http.Request) {
	var req ResponsePlanRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	plan, err := h.ledger.CreateResponsePlan(r.Context(), principal(r), ledger.ResponsePlanInput{
		AlertID:            req.AlertID,
		ResponseType:       req.ResponseType,
		Description:        req.Description,
		Priority:           req.Priority,
		PersonnelCount:     req.PersonnelCount,
		EstimatedCost:      req.EstimatedCost,
		DeploymentLocation: req.DeploymentLocation,
		SupportingAgencies: req.SupportingAgencies,
		ContactPerson:      req.ContactPerson,
		ContactPhone:       req.ContactPhone,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, plan)
}

// UpdateResponseStatus handles PUT /api/responses/{id}/status
func (h *Handler) UpdateResponseStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req StatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	plan, err := h.ledger.UpdateResponseStatus(r.Context(), principal(r), id, models.ResponseStatus(req.Status), req.Completion, req.Note)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, plan)
}

// ListResponses handles GET /api/responses
//
// Query parameters: alert_id, status, lead_agency, limit, offset.
func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.ResponseFilter{
		Status: models.ResponseStatus(q.Get("status")),
		Limit:  queryLimit(r, 50, 100),
	}
	if raw := q.Get("alert_id"); raw != "" {
		id, err := ParseID("alert_id", raw)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		filter.AlertID = id
	}
	if raw := q.Get("lead_agency"); raw != "" {
		addr, err := ParseAddress("lead_agency", raw)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		filter.LeadAgency = addr
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, h.logger, ValidationError{Field: "offset", Message: "Must be a non-negative integer"})
			return
		}
		filter.Offset = offset
	}

	plans := h.ledger.Responses(filter)
	if plans == nil {
		plans = []models.ResponsePlan{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"responses": plans,
		"count":     len(plans),
	})
}

// GetResponsePlan handles GET /api/responses/{id}
func (h *Handler) GetResponsePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	plan, err := h.ledger.ResponsePlan(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, plan)
}
