package ledger

import (
	"math/big"
	"time"

	"github.com/climateguardian/guardian/internal/models"
)

// Stats summarises ledger totals.
type Stats struct {
	TotalProofs    int      `json:"total_proofs"`
	TotalAlerts    int      `json:"total_alerts"`
	TotalResponses int      `json:"total_responses"`
	ActiveAlerts   int      `json:"active_alerts"`
	Validators     int      `json:"validators"`
	EscrowTotal    *big.Int `json:"escrow_total_wei"`
	Paused         bool     `json:"paused"`
	EventSeq       uint64   `json:"event_seq"`
}

// Stats returns the ledger totals.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		TotalProofs:    len(l.state.Proofs),
		TotalAlerts:    len(l.state.Alerts),
		TotalResponses: len(l.state.Responses),
		ActiveAlerts:   l.activeAlerts(l.now()),
		Validators:     len(l.state.Validators),
		EscrowTotal:    new(big.Int).Set(l.state.EscrowTotal),
		Paused:         l.state.Paused,
		EventSeq:       l.state.EventSeq,
	}
}

// Dashboard is the emergency operations summary.
type Dashboard struct {
	ActiveAlertsBySeverity map[string]int `json:"active_alerts_by_severity"`
	ResponsesByStatus      map[string]int `json:"responses_by_status"`
	ProofsByStatus         map[string]int `json:"proofs_by_status"`
	RecentAlerts24h        int            `json:"recent_alerts_24h"`
	ResourcesAllocated     int            `json:"resources_allocated"`
	Timestamp              time.Time      `json:"timestamp"`
}

// Dashboard aggregates the current emergency picture.
func (l *Ledger) Dashboard() Dashboard {
	l.mu.RLock()
	defer l.mu.RUnlock()
	now := l.now().UTC()

	d := Dashboard{
		ActiveAlertsBySeverity: make(map[string]int),
		ResponsesByStatus:      make(map[string]int),
		ProofsByStatus:         make(map[string]int),
		Timestamp:              now,
	}
	for _, a := range l.state.Alerts {
		if a.EffectiveStatus(now) != models.AlertStatusActive {
			continue
		}
		d.ActiveAlertsBySeverity[a.Severity.String()]++
		if now.Sub(a.IssuedAt) <= 24*time.Hour {
			d.RecentAlerts24h++
		}
	}
	for _, p := range l.state.Responses {
		d.ResponsesByStatus[string(p.Status)]++
	}
	for _, p := range l.state.Proofs {
		d.ProofsByStatus[string(p.Status)]++
	}
	for _, allocations := range l.state.Resources {
		d.ResourcesAllocated += len(allocations)
	}
	return d
}
