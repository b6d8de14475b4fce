package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

// Params are the constants fixed when the ledger is provisioned.
type Params struct {
	MinValidationStake     *big.Int
	MinValidationsRequired int
	CriticalAlertThreshold models.Severity
	ReputationThreshold    int64
	BaselineReputation     int64
	DefaultAlertTTL        time.Duration

	// Admin receives ADMIN when the ledger starts from an empty store.
	Admin common.Address
	// GenesisRoles are granted alongside Admin on first start.
	GenesisRoles access.Matrix
}

// DefaultParams returns the production constants.
func DefaultParams() Params {
	return Params{
		MinValidationStake:     new(big.Int).Div(big.NewInt(params.Ether), big.NewInt(100)),
		MinValidationsRequired: 3,
		CriticalAlertThreshold: models.SeverityCritical,
		ReputationThreshold:    80,
		BaselineReputation:     50,
		DefaultAlertTTL:        24 * time.Hour,
	}
}

func (p Params) validate() error {
	if p.MinValidationStake == nil || p.MinValidationStake.Sign() <= 0 {
		return fmt.Errorf("minimum validation stake must be positive")
	}
	if p.MinValidationsRequired < 1 {
		return fmt.Errorf("minimum validations required must be at least 1")
	}
	if !p.CriticalAlertThreshold.Valid() {
		return fmt.Errorf("critical alert threshold %d outside severity scale", p.CriticalAlertThreshold)
	}
	if p.BaselineReputation < minScore || p.BaselineReputation > maxScore {
		return fmt.Errorf("baseline reputation %d outside [%d,%d]", p.BaselineReputation, minScore, maxScore)
	}
	if p.ReputationThreshold < minScore || p.ReputationThreshold > maxScore {
		return fmt.Errorf("reputation threshold %d outside [%d,%d]", p.ReputationThreshold, minScore, maxScore)
	}
	if p.DefaultAlertTTL <= 0 {
		return fmt.Errorf("default alert ttl must be positive")
	}
	return nil
}

// State is the complete committed ledger state. It is persisted as a JSON
// snapshot after every mutation.
type State struct {
	Roles          access.Matrix                               `json:"roles"`
	Paused         bool                                        `json:"paused"`
	Escrow         map[common.Address]*big.Int                 `json:"escrow"`
	EscrowTotal    *big.Int                                    `json:"escrow_total"`
	Validators     map[common.Address]*models.Validator        `json:"validators"`
	Reputation     map[common.Address]*models.ReputationRecord `json:"reputation"`
	Proofs         []*models.DataProof                         `json:"proofs"`
	Fingerprints   map[common.Hash]uint64                      `json:"fingerprints"`
	Alerts         []*models.EmergencyAlert                    `json:"alerts"`
	Responses      []*models.ResponsePlan                      `json:"responses"`
	Resources      map[uint64][]models.ResourceAllocation      `json:"resources"`
	NextResourceID uint64                                      `json:"next_resource_id"`
	EventSeq       uint64                                      `json:"event_seq"`
	LastHash       common.Hash                                 `json:"last_hash"`
}

func newState() *State {
	return &State{
		Roles:          make(access.Matrix),
		Escrow:         make(map[common.Address]*big.Int),
		EscrowTotal:    new(big.Int),
		Validators:     make(map[common.Address]*models.Validator),
		Reputation:     make(map[common.Address]*models.ReputationRecord),
		Fingerprints:   make(map[common.Hash]uint64),
		Resources:      make(map[uint64][]models.ResourceAllocation),
		NextResourceID: 1,
	}
}

// decodeState restores a snapshot, filling maps a sparse snapshot omitted.
func decodeState(snapshot []byte) (*State, error) {
	st := newState()
	if err := json.Unmarshal(snapshot, st); err != nil {
		return nil, fmt.Errorf("decode ledger snapshot: %w", err)
	}
	if st.Roles == nil {
		st.Roles = make(access.Matrix)
	}
	if st.Escrow == nil {
		st.Escrow = make(map[common.Address]*big.Int)
	}
	if st.EscrowTotal == nil {
		st.EscrowTotal = new(big.Int)
	}
	if st.Validators == nil {
		st.Validators = make(map[common.Address]*models.Validator)
	}
	if st.Reputation == nil {
		st.Reputation = make(map[common.Address]*models.ReputationRecord)
	}
	if st.Fingerprints == nil {
		st.Fingerprints = make(map[common.Hash]uint64)
	}
	if st.Resources == nil {
		st.Resources = make(map[uint64][]models.ResourceAllocation)
	}
	if st.NextResourceID == 0 {
		st.NextResourceID = 1
	}
	return st, nil
}

func (s *State) proof(id uint64) *models.DataProof {
	if id == 0 || id > uint64(len(s.Proofs)) {
		return nil
	}
	return s.Proofs[id-1]
}

func (s *State) alert(id uint64) *models.EmergencyAlert {
	if id == 0 || id > uint64(len(s.Alerts)) {
		return nil
	}
	return s.Alerts[id-1]
}

func (s *State) response(id uint64) *models.ResponsePlan {
	if id == 0 || id > uint64(len(s.Responses)) {
		return nil
	}
	return s.Responses[id-1]
}

// Store persists committed snapshots together with the events that produced
// them. Commit must be atomic: either both are durable or neither is.
type Store interface {
	// Load returns the latest snapshot, or nil when nothing was committed yet.
	Load(ctx context.Context) ([]byte, error)
	Commit(ctx context.Context, snapshot []byte, events []models.Event) error
	// Events returns up to limit events with Seq > afterSeq in order.
	Events(ctx context.Context, afterSeq uint64, limit int) ([]models.Event, error)
}

// MemoryStore keeps snapshots and events in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot []byte
	events   []models.Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return nil, nil
	}
	return append([]byte(nil), m.snapshot...), nil
}

// Commit implements Store.
func (m *MemoryStore) Commit(ctx context.Context, snapshot []byte, events []models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = append([]byte(nil), snapshot...)
	m.events = append(m.events, events...)
	return nil
}

// Events implements Store.
func (m *MemoryStore) Events(_ context.Context, afterSeq uint64, limit int) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Event
	for _, e := range m.events {
		if e.Seq <= afterSeq {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
