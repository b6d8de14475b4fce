package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ResponsePlan coordinates the operational response to an alert.
type ResponsePlan struct {
	ID                 uint64         `json:"id"`
	AlertID            uint64         `json:"alert_id"`
	ResponseType       string         `json:"response_type"` // evacuation, shelter, medical...
	Description        string         `json:"description,omitempty"`
	Priority           uint8          `json:"priority"` // 1-5
	PersonnelCount     uint32         `json:"personnel_count"`
	EstimatedCost      float64        `json:"estimated_cost"`
	DeploymentLocation string         `json:"deployment_location,omitempty"`
	LeadAgency         common.Address `json:"lead_agency"`
	SupportingAgencies []string       `json:"supporting_agencies,omitempty"`
	ContactPerson      string         `json:"contact_person,omitempty"`
	ContactPhone       string         `json:"contact_phone,omitempty"`
	Status             ResponseStatus `json:"status"`
	Completion         float64        `json:"completion_percentage"`
	Updates            []StatusUpdate `json:"status_updates"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ResponseStatus represents the progress of a response plan.
type ResponseStatus string

const (
	ResponseStatusPending    ResponseStatus = "PENDING"
	ResponseStatusInProgress ResponseStatus = "IN_PROGRESS"
	ResponseStatusCompleted  ResponseStatus = "COMPLETED"
	ResponseStatusCancelled  ResponseStatus = "CANCELLED"
)

// Valid reports whether s is a known response status.
func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseStatusPending, ResponseStatusInProgress, ResponseStatusCompleted, ResponseStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves the status.
func (s ResponseStatus) Terminal() bool {
	return s == ResponseStatusCompleted || s == ResponseStatusCancelled
}

// StatusUpdate is one entry of a response plan's progress history.
type StatusUpdate struct {
	Status     ResponseStatus `json:"status"`
	Completion float64        `json:"completion_percentage"`
	Note       string         `json:"note,omitempty"`
	Author     common.Address `json:"author"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Clone returns a copy with its own slices.
func (p ResponsePlan) Clone() ResponsePlan {
	p.SupportingAgencies = append([]string(nil), p.SupportingAgencies...)
	p.Updates = append([]StatusUpdate(nil), p.Updates...)
	return p
}
