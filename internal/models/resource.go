package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ResourceAllocation records resources committed to an alert.
type ResourceAllocation struct {
	ID           uint64         `json:"id"`
	AlertID      uint64         `json:"alert_id"`
	ResourceType string         `json:"resource_type"`
	Quantity     uint64         `json:"quantity"`
	Unit         string         `json:"unit,omitempty"`
	Allocator    common.Address `json:"allocator"`
	AllocatedAt  time.Time      `json:"allocated_at"`
}
