// Package ledger implements the trust, verification and emergency-response
// ledger. Every mutator runs as a single serialized transaction: all checks
// happen before any write, the resulting snapshot and events are committed to
// the Store together, and the events are handed to the Publisher afterwards.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

// Publisher receives committed events in commit order.
type Publisher interface {
	Publish(ctx context.Context, events []models.Event) error
}

// Recorder observes the outcome of every mutator.
type Recorder interface {
	ObserveOperation(op, outcome string)
}

// ScoreFunc folds a new feedback rating into a reputation score. count is
// the number of ratings folded in before this one.
type ScoreFunc func(score int64, count int, rating uint8) int64

// Ledger owns the committed state and serializes all mutations.
type Ledger struct {
	mu        sync.RWMutex
	state     *State
	committed []byte

	params    Params
	store     Store
	publisher Publisher
	recorder  Recorder
	score     ScoreFunc
	now       func() time.Time
	logger    *slog.Logger
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithPublisher sets the sink that receives committed events.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithRecorder sets the operation metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(l *Ledger) { l.recorder = r }
}

// WithScoreFunc replaces the feedback scoring rule.
func WithScoreFunc(fn ScoreFunc) Option {
	return func(l *Ledger) { l.score = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New loads the ledger from store. An empty store is initialised with the
// genesis roles from params.
func New(ctx context.Context, params Params, store Store, logger *slog.Logger, opts ...Option) (*Ledger, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger params: %w", err)
	}
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{
		params: params,
		store:  store,
		score:  AverageScore,
		now:    time.Now,
		logger: logger.With(slog.String("component", "ledger")),
	}
	for _, opt := range opts {
		opt(l)
	}

	snapshot, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}
	if snapshot != nil {
		st, err := decodeState(snapshot)
		if err != nil {
			return nil, err
		}
		l.state = st
		l.committed = snapshot
		l.logger.Info("ledger state restored",
			slog.Uint64("event_seq", st.EventSeq),
			slog.Int("proofs", len(st.Proofs)),
			slog.Int("alerts", len(st.Alerts)),
		)
		return l, nil
	}

	l.state = newState()
	if err := l.genesis(ctx); err != nil {
		return nil, fmt.Errorf("initialise ledger: %w", err)
	}
	return l, nil
}

func (l *Ledger) genesis(ctx context.Context) error {
	grants := make(access.Matrix)
	if l.params.Admin != (common.Address{}) {
		grants.Grant(l.params.Admin, access.Admin)
	}
	for principal, set := range l.params.GenesisRoles {
		for _, role := range set.Roles() {
			grants.Grant(principal, role)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apply(ctx, "genesis", common.Address{}, func(tx *txn) error {
		for _, principal := range sortedPrincipals(grants) {
			for _, role := range grants[principal].Roles() {
				tx.st.Roles.Grant(principal, role)
				tx.emit(models.EventRoleGranted, roleChange{Principal: principal, Role: role})
			}
		}
		return nil
	})
}

// Params returns the constants the ledger was provisioned with.
func (l *Ledger) Params() Params {
	return l.params
}

// txn is the scope of one mutation.
type txn struct {
	l      *Ledger
	st     *State
	op     string
	actor  common.Address
	now    time.Time
	events []models.Event
	err    error
}

// emit appends a chained event. Events become visible only if the
// transaction commits.
func (tx *txn) emit(typ models.EventType, payload interface{}) {
	if tx.err != nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		tx.err = fmt.Errorf("encode %s payload: %w", typ, err)
		return
	}
	tx.st.EventSeq++
	evt := models.Event{
		Seq:        tx.st.EventSeq,
		ID:         newEventID(),
		Type:       typ,
		Actor:      tx.actor,
		OccurredAt: tx.now,
		Payload:    raw,
		PrevHash:   tx.st.LastHash,
	}
	evt.Hash = HashEvent(evt)
	tx.st.LastHash = evt.Hash
	tx.events = append(tx.events, evt)
}

// mutate runs fn as a transaction on behalf of actor. Only the breaker
// itself stays available while paused.
func (l *Ledger) mutate(ctx context.Context, op string, actor common.Address, fn func(tx *txn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.Paused && !pauseExempt(op) {
		return l.rejected(op, actor, reject(KindAvailability, op, ReasonPaused))
	}
	return l.apply(ctx, op, actor, fn)
}

// apply must be called with l.mu held.
func (l *Ledger) apply(ctx context.Context, op string, actor common.Address, fn func(tx *txn) error) error {
	tx := &txn{l: l, st: l.state, op: op, actor: actor, now: l.now().UTC()}
	if err := fn(tx); err != nil {
		var lerr *Error
		if errors.As(err, &lerr) {
			return l.rejected(op, actor, err)
		}
		l.rollback()
		l.observe(op, "error")
		return err
	}
	if tx.err != nil {
		l.rollback()
		l.observe(op, "error")
		return tx.err
	}

	snapshot, err := json.Marshal(l.state)
	if err != nil {
		l.rollback()
		l.observe(op, "error")
		return fmt.Errorf("encode ledger snapshot: %w", err)
	}
	if err := l.store.Commit(ctx, snapshot, tx.events); err != nil {
		l.rollback()
		l.observe(op, "error")
		l.logger.Error("ledger commit failed",
			slog.String("op", op),
			slog.String("actor", actor.Hex()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("commit %s: %w", op, err)
	}
	l.committed = snapshot

	l.observe(op, "ok")
	l.logger.Info("ledger operation committed",
		slog.String("op", op),
		slog.String("actor", actor.Hex()),
		slog.Int("events", len(tx.events)),
		slog.Uint64("event_seq", l.state.EventSeq),
	)

	if l.publisher != nil && len(tx.events) > 0 {
		if err := l.publisher.Publish(ctx, tx.events); err != nil {
			l.logger.Warn("event publish failed",
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// rollback restores the last committed snapshot. Checks run before writes,
// so only infrastructure failures after a write reach this path.
func (l *Ledger) rollback() {
	if l.committed == nil {
		l.state = newState()
		return
	}
	st, err := decodeState(l.committed)
	if err != nil {
		// The snapshot was produced by json.Marshal of the same type.
		panic(fmt.Sprintf("ledger: committed snapshot unreadable: %v", err))
	}
	l.state = st
}

func (l *Ledger) rejected(op string, actor common.Address, err error) error {
	var lerr *Error
	kind := "rejected"
	if errors.As(err, &lerr) {
		kind = lerr.Kind.String()
	}
	l.observe(op, kind)
	l.logger.Debug("ledger operation rejected",
		slog.String("op", op),
		slog.String("actor", actor.Hex()),
		slog.String("reason", err.Error()),
	)
	return err
}

func (l *Ledger) observe(op, outcome string) {
	if l.recorder != nil {
		l.recorder.ObserveOperation(op, outcome)
	}
}

func pauseExempt(op string) bool {
	switch op {
	case opPause, opUnpause:
		return true
	}
	return false
}

// Operation names used in errors, logs and metrics.
const (
	opGrantRole            = "grantRole"
	opRevokeRole           = "revokeRole"
	opPause                = "pause"
	opUnpause              = "unpause"
	opRegisterValidator    = "registerValidator"
	opWithdraw             = "withdraw"
	opSubmitProof          = "submitDataProof"
	opValidateProof        = "validateDataProof"
	opTriggerAlert         = "triggerEmergencyAlert"
	opInitializeReputation = "initializeReputation"
	opSubmitFeedback       = "submitCommunityFeedback"
	opIssueAlert           = "issueEmergencyAlert"
	opUpdateAlertStatus    = "updateAlertStatus"
	opCreateResponsePlan   = "createResponsePlan"
	opUpdateResponseStatus = "updateResponseStatus"
	opAllocateResource     = "allocateResource"
)
