package ledger

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

const (
	minScore int64 = 0
	maxScore int64 = 100

	rewardAgreement int64 = 2
	penaltyDissent  int64 = -5
	rewardVerified  int64 = 1
	penaltyRejected int64 = -5
)

// AverageScore is the default ScoreFunc: a running average over the current
// score and each rating mapped onto the 0-100 scale.
func AverageScore(score int64, count int, rating uint8) int64 {
	n := int64(count)
	return (score*(n+1) + int64(rating)*20) / (n + 2)
}

// ReputationDetails is the read model of a reputation record.
type ReputationDetails struct {
	models.ReputationRecord
	Trusted bool `json:"trusted"`
}

// InitializeReputation creates a baseline record for principal. ADMIN only.
func (l *Ledger) InitializeReputation(ctx context.Context, actor, principal common.Address) (ReputationDetails, error) {
	var out ReputationDetails
	err := l.mutate(ctx, opInitializeReputation, actor, func(tx *txn) error {
		if err := tx.requireRole(access.Admin); err != nil {
			return err
		}
		if principal == (common.Address{}) {
			return reject(KindValidation, tx.op, ReasonInvalidAccount)
		}
		if _, ok := tx.st.Reputation[principal]; ok {
			return reject(KindConsistency, tx.op, ReasonReputationInitialized)
		}
		rec := tx.ensureReputation(principal)
		out = l.details(rec)
		return nil
	})
	return out, err
}

// SubmitFeedback records actor's rating of target and folds it into the
// target's score.
func (l *Ledger) SubmitFeedback(ctx context.Context, actor, target common.Address, rating int64, comment string) (ReputationDetails, error) {
	var out ReputationDetails
	err := l.mutate(ctx, opSubmitFeedback, actor, func(tx *txn) error {
		if rating < 1 || rating > 5 {
			return reject(KindValidation, tx.op, ReasonInvalidRating)
		}
		if actor == target {
			return reject(KindAuthorization, tx.op, ReasonSelfRating)
		}
		rec, ok := tx.st.Reputation[target]
		if !ok {
			return reject(KindConsistency, tx.op, ReasonReputationNotInitialized)
		}

		stars := uint8(rating)
		comment = strings.TrimSpace(comment)
		old := rec.Score
		rec.Score = clampScore(l.score(rec.Score, len(rec.Feedback), stars))
		rec.Feedback = append(rec.Feedback, models.Feedback{
			Rater:     actor,
			Rating:    stars,
			Comment:   comment,
			CreatedAt: tx.now,
		})
		rec.UpdatedAt = tx.now

		tx.emit(models.EventFeedbackSubmitted, feedbackSubmitted{Target: target, Rater: actor, Rating: stars})
		if rec.Score != old {
			tx.emit(models.EventReputationUpdated, ReputationUpdatedPayload{
				Principal: target,
				OldScore:  old,
				NewScore:  rec.Score,
				Cause:     "feedback",
			})
		}
		out = l.details(rec)
		return nil
	})
	return out, err
}

// Reputation returns the reputation details of principal.
func (l *Ledger) Reputation(principal common.Address) (ReputationDetails, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.state.Reputation[principal]
	if !ok {
		return ReputationDetails{}, ErrNotFound
	}
	return l.details(rec), nil
}

func (l *Ledger) details(rec *models.ReputationRecord) ReputationDetails {
	return ReputationDetails{
		ReputationRecord: rec.Clone(),
		Trusted:          rec.Score >= l.params.ReputationThreshold,
	}
}

// ensureReputation returns principal's record, creating a baseline one.
func (tx *txn) ensureReputation(principal common.Address) *models.ReputationRecord {
	if rec, ok := tx.st.Reputation[principal]; ok {
		return rec
	}
	rec := &models.ReputationRecord{
		Principal: principal,
		Score:     tx.l.params.BaselineReputation,
		CreatedAt: tx.now,
		UpdatedAt: tx.now,
	}
	tx.st.Reputation[principal] = rec
	tx.emit(models.EventReputationInitialized, reputationInitialized{Principal: principal, Score: rec.Score})
	return rec
}

// adjustReputation applies delta to principal's score within [0,100].
func (tx *txn) adjustReputation(principal common.Address, delta int64, cause string) {
	rec := tx.ensureReputation(principal)
	old := rec.Score
	rec.Score = clampScore(rec.Score + delta)
	rec.UpdatedAt = tx.now
	if rec.Score != old {
		tx.emit(models.EventReputationUpdated, ReputationUpdatedPayload{
			Principal: principal,
			OldScore:  old,
			NewScore:  rec.Score,
			Cause:     cause,
		})
	}
}

func clampScore(score int64) int64 {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
