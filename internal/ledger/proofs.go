package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

// ProofInput describes a data proof submission.
type ProofInput struct {
	Fingerprint common.Hash
	Reference   string
	Category    models.ProofCategory
	Metadata    json.RawMessage
}

// Fingerprint derives the content fingerprint of raw data.
func Fingerprint(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

// SubmitProof registers a fingerprint for verification. DATA_PROVIDER only.
func (l *Ledger) SubmitProof(ctx context.Context, actor common.Address, in ProofInput) (models.DataProof, error) {
	var out models.DataProof
	err := l.mutate(ctx, opSubmitProof, actor, func(tx *txn) error {
		if !tx.st.Roles.Has(actor, access.DataProvider) {
			return reject(KindAuthorization, tx.op, ReasonNotDataProvider)
		}
		if in.Fingerprint == (common.Hash{}) {
			return reject(KindValidation, tx.op, ReasonInvalidDataHash)
		}
		reference := strings.TrimSpace(in.Reference)
		if reference == "" {
			return reject(KindValidation, tx.op, ReasonReferenceRequired)
		}
		if !in.Category.Valid() {
			return reject(KindValidation, tx.op, ReasonInvalidCategory)
		}
		if len(in.Metadata) > 0 && !json.Valid(in.Metadata) {
			return reject(KindValidation, tx.op, ReasonInvalidMetadata)
		}
		if _, dup := tx.st.Fingerprints[in.Fingerprint]; dup {
			return reject(KindConsistency, tx.op, ReasonDataAlreadySubmitted)
		}

		p := &models.DataProof{
			ID:          uint64(len(tx.st.Proofs)) + 1,
			Fingerprint: in.Fingerprint,
			Submitter:   actor,
			Reference:   reference,
			Category:    in.Category,
			Metadata:    append(json.RawMessage(nil), in.Metadata...),
			Validations: []models.Validation{},
			Status:      models.ProofStatusPending,
			CreatedAt:   tx.now,
		}
		if len(p.Metadata) == 0 {
			p.Metadata = nil
		}
		tx.st.Proofs = append(tx.st.Proofs, p)
		tx.st.Fingerprints[p.Fingerprint] = p.ID
		tx.emit(models.EventDataProofSubmitted, ProofSubmittedPayload{
			ProofID:     p.ID,
			Fingerprint: p.Fingerprint,
			Submitter:   actor,
			Category:    p.Category,
		})
		out = p.Clone()
		return nil
	})
	return out, err
}

// ValidateProof records actor's verdict on a proof, escrowing bond. The
// proof is finalized as soon as either verdict reaches the quorum.
func (l *Ledger) ValidateProof(ctx context.Context, actor common.Address, proofID uint64, affirm bool, comment string, bond *big.Int) (models.DataProof, error) {
	var out models.DataProof
	err := l.mutate(ctx, opValidateProof, actor, func(tx *txn) error {
		if err := tx.requireRole(access.Validator); err != nil {
			return err
		}
		if bond == nil || bond.Cmp(l.params.MinValidationStake) < 0 {
			return reject(KindEconomic, tx.op, ReasonInsufficientStake)
		}
		p := tx.st.proof(proofID)
		if p == nil {
			return reject(KindConsistency, tx.op, ReasonInvalidProofID)
		}
		if p.Submitter == actor {
			return reject(KindAuthorization, tx.op, ReasonOwnSubmission)
		}
		if p.HasValidation(actor) {
			return reject(KindConsistency, tx.op, ReasonAlreadyValidated)
		}
		if p.Status != models.ProofStatusPending {
			return reject(KindConsistency, tx.op, ReasonProofFinalized)
		}

		p.Validations = append(p.Validations, models.Validation{
			ProofID:   p.ID,
			Validator: actor,
			Affirm:    affirm,
			Comment:   strings.TrimSpace(comment),
			Bond:      new(big.Int).Set(bond),
			CreatedAt: tx.now,
		})
		tx.escrow(actor, bond)
		if v, ok := tx.st.Validators[actor]; ok {
			v.Stake = new(big.Int).Add(v.Stake, bond)
			v.TotalValidations++
		}
		rec := tx.ensureReputation(actor)
		rec.TotalValidations++
		rec.UpdatedAt = tx.now
		tx.emit(models.EventDataProofValidated, ProofValidatedPayload{
			ProofID:   p.ID,
			Validator: actor,
			Affirm:    affirm,
			Bond:      new(big.Int).Set(bond),
		})

		tx.finalize(p)
		out = p.Clone()
		return nil
	})
	return out, err
}

// finalize settles the proof once a verdict reaches the quorum and applies
// the reputation consequences.
func (tx *txn) finalize(p *models.DataProof) {
	quorum := tx.l.params.MinValidationsRequired
	affirm, deny := p.Tally()

	var verdict bool
	switch {
	case affirm >= quorum:
		verdict = true
		p.Status = models.ProofStatusVerified
		p.Verified = true
	case deny >= quorum:
		p.Status = models.ProofStatusRejected
	default:
		return
	}
	at := tx.now
	p.FinalizedAt = &at

	evt := models.EventDataProofRejected
	if verdict {
		evt = models.EventDataProofVerified
	}
	tx.emit(evt, ProofFinalizedPayload{ProofID: p.ID, Status: p.Status, Affirm: affirm, Deny: deny})

	for _, v := range p.Validations {
		if v.Affirm == verdict {
			tx.ensureReputation(v.Validator).SuccessfulValidations++
			tx.adjustReputation(v.Validator, rewardAgreement, fmt.Sprintf("proof %d consensus", p.ID))
		} else {
			tx.adjustReputation(v.Validator, penaltyDissent, fmt.Sprintf("proof %d dissent", p.ID))
		}
	}
	if verdict {
		tx.adjustReputation(p.Submitter, rewardVerified, fmt.Sprintf("proof %d verified", p.ID))
	} else {
		tx.adjustReputation(p.Submitter, penaltyRejected, fmt.Sprintf("proof %d rejected", p.ID))
	}
}

// TriggerEmergencyAlert raises an alert from a proof.
//
// Deprecated: use IssueAlert, which carries the full alert description.
// This path issues an alert with a generated title, the default lifetime and
// a risk score derived from severity.
func (l *Ledger) TriggerEmergencyAlert(ctx context.Context, actor common.Address, proofID uint64, riskType string, severity models.Severity) (models.EmergencyAlert, error) {
	var out models.EmergencyAlert
	err := l.mutate(ctx, opTriggerAlert, actor, func(tx *txn) error {
		if !tx.st.Roles.HasAny(actor, access.EmergencyResponder, access.EmergencyCoordinator) {
			return reject(KindAuthorization, tx.op, ReasonNotAuthorizedTrigger)
		}
		if !severity.Valid() {
			return reject(KindValidation, tx.op, ReasonInvalidSeverity)
		}
		if tx.st.proof(proofID) == nil {
			return reject(KindConsistency, tx.op, ReasonInvalidProofID)
		}
		riskType = strings.TrimSpace(riskType)
		if riskType == "" {
			riskType = "unspecified"
		}
		in := AlertInput{
			Title:         fmt.Sprintf("%s %s alert from proof %d", severity, riskType, proofID),
			Description:   fmt.Sprintf("Raised from data proof %d.", proofID),
			Severity:      severity,
			RiskType:      riskType,
			RiskScore:     int64(severity) * 20,
			ExpiresAt:     tx.now.Add(l.params.DefaultAlertTTL),
			LinkedProofID: proofID,
		}
		a, err := tx.issueAlert(in)
		if err != nil {
			return err
		}
		out = *a
		return nil
	})
	return out, err
}

// TotalProofs returns the number of submitted proofs.
func (l *Ledger) TotalProofs() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.state.Proofs)
}

// Proof returns the proof with id.
func (l *Ledger) Proof(id uint64) (models.DataProof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p := l.state.proof(id)
	if p == nil {
		return models.DataProof{}, ErrNotFound
	}
	return p.Clone(), nil
}

// Validations returns the validations of a proof in arrival order.
func (l *Ledger) Validations(proofID uint64) ([]models.Validation, error) {
	p, err := l.Proof(proofID)
	if err != nil {
		return nil, err
	}
	return p.Validations, nil
}

// ProofByFingerprint resolves a fingerprint to its proof id.
func (l *Ledger) ProofByFingerprint(fingerprint common.Hash) (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.state.Fingerprints[fingerprint]
	return id, ok
}
