package ledger

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

func TestRegisterValidator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for _, bond := range []int64{0, 1, 9_999_999_999_999_999} {
		_, err := f.ledger.RegisterValidator(ctx, validator1, ether(bond, 1_000_000_000_000_000_000))
		requireReason(t, err, ErrEconomic, ReasonInsufficientStake)
	}

	v, err := f.ledger.RegisterValidator(ctx, validator1, ether(1, 10))
	require.NoError(t, err)
	require.True(t, v.Active)
	require.Equal(t, validator1, v.Reputation)
	require.True(t, f.ledger.HasRole(validator1, access.Validator))

	rep, err := f.ledger.Reputation(validator1)
	require.NoError(t, err)
	require.Equal(t, int64(50), rep.Score)
	require.False(t, rep.Trusted)

	_, err = f.ledger.RegisterValidator(ctx, validator1, ether(1, 10))
	requireReason(t, err, ErrConsistency, ReasonAlreadyRegistered)

	_, err = f.ledger.RegisterValidator(ctx, validator2, ether(1, 100))
	require.NoError(t, err, "exactly the minimum stake is accepted")

	require.Equal(t, 0, f.ledger.EscrowBalance(validator1).Cmp(ether(1, 10)))
	require.Equal(t, 0, f.ledger.EscrowTotal().Cmp(ether(11, 100)))
}

func TestRegisterValidatorKeepsExistingReputation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.ledger.InitializeReputation(ctx, admin, validator1)
	require.NoError(t, err)
	_, err = f.ledger.SubmitFeedback(ctx, provider, validator1, 5, "reliable gauges")
	require.NoError(t, err)

	f.registerValidators(t, validator1)
	rep, err := f.ledger.Reputation(validator1)
	require.NoError(t, err)
	require.Equal(t, int64(75), rep.Score)
	require.Len(t, rep.Feedback, 1)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.registerValidators(t, validator1, validator2)

	err := f.ledger.Withdraw(ctx, validator1, outsider, ether(1, 10))
	requireReason(t, err, ErrAuthorization, "AccessControl: missing role ADMIN")

	err = f.ledger.Withdraw(ctx, admin, outsider, ether(0, 1))
	requireReason(t, err, ErrValidation, ReasonInvalidAmount)

	err = f.ledger.Withdraw(ctx, admin, outsider, ether(3, 10))
	requireReason(t, err, ErrEconomic, ReasonInsufficientEscrow)

	require.NoError(t, f.ledger.Withdraw(ctx, admin, outsider, ether(15, 100)))
	require.Equal(t, 0, f.ledger.EscrowTotal().Cmp(ether(5, 100)))
	require.Len(t, f.published.ofType(models.EventFundsWithdrawn), 1)
}

func TestSubmitProofChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	valid := ProofInput{
		Fingerprint: Fingerprint([]byte("sensor-batch-1")),
		Reference:   "QmSensorBatch1",
		Category:    models.ProofCategorySensor,
		Metadata:    json.RawMessage(`{"station":"KE-NBO-04"}`),
	}

	tests := []struct {
		name     string
		actor    common.Address
		mutate   func(in *ProofInput)
		sentinel error
		reason   string
	}{
		{name: "not a provider", actor: outsider, sentinel: ErrAuthorization, reason: ReasonNotDataProvider},
		{name: "zero fingerprint", actor: provider, mutate: func(in *ProofInput) { in.Fingerprint = common.Hash{} }, sentinel: ErrValidation, reason: ReasonInvalidDataHash},
		{name: "empty reference", actor: provider, mutate: func(in *ProofInput) { in.Reference = "  " }, sentinel: ErrValidation, reason: ReasonReferenceRequired},
		{name: "unknown category", actor: provider, mutate: func(in *ProofInput) { in.Category = "rumour" }, sentinel: ErrValidation, reason: ReasonInvalidCategory},
		{name: "broken metadata", actor: provider, mutate: func(in *ProofInput) { in.Metadata = json.RawMessage(`{`) }, sentinel: ErrValidation, reason: ReasonInvalidMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			_, err := f.ledger.SubmitProof(ctx, tt.actor, in)
			requireReason(t, err, tt.sentinel, tt.reason)
		})
	}

	p, err := f.ledger.SubmitProof(ctx, provider, valid)
	require.NoError(t, err)
	require.Equal(t, uint64(1), p.ID)
	require.Equal(t, models.ProofStatusPending, p.Status)
	require.False(t, p.Verified)

	_, err = f.ledger.SubmitProof(ctx, provider, valid)
	requireReason(t, err, ErrConsistency, ReasonDataAlreadySubmitted)

	id, ok := f.ledger.ProofByFingerprint(valid.Fingerprint)
	require.True(t, ok)
	require.Equal(t, p.ID, id)
	require.Equal(t, 1, f.ledger.TotalProofs())
}

func TestValidateProofChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.registerValidators(t, validator1, provider)
	proof := f.submitProof(t, "satellite-pass-88")

	_, err := f.ledger.ValidateProof(ctx, outsider, proof.ID, true, "", ether(1, 100))
	requireReason(t, err, ErrAuthorization, "AccessControl: missing role VALIDATOR")

	_, err = f.ledger.ValidateProof(ctx, validator1, proof.ID, true, "", ether(1, 1000))
	requireReason(t, err, ErrEconomic, ReasonInsufficientStake)

	_, err = f.ledger.ValidateProof(ctx, validator1, 42, true, "", ether(1, 100))
	requireReason(t, err, ErrConsistency, ReasonInvalidProofID)

	_, err = f.ledger.ValidateProof(ctx, provider, proof.ID, true, "", ether(1, 100))
	requireReason(t, err, ErrAuthorization, ReasonOwnSubmission)

	_, err = f.ledger.ValidateProof(ctx, validator1, proof.ID, true, "matches radar", ether(1, 100))
	require.NoError(t, err)
	_, err = f.ledger.ValidateProof(ctx, validator1, proof.ID, false, "", ether(1, 100))
	requireReason(t, err, ErrConsistency, ReasonAlreadyValidated)

	validations, err := f.ledger.Validations(proof.ID)
	require.NoError(t, err)
	require.Len(t, validations, 1)
	require.Equal(t, "matches radar", validations[0].Comment)

	v, err := f.ledger.Validator(validator1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v.TotalValidations)
	require.Equal(t, 0, v.Stake.Cmp(ether(11, 100)))

	rep, err := f.ledger.Reputation(validator1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rep.TotalValidations)
}

func TestThreeAffirmationsVerifyProof(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.registerValidators(t, validator1, validator2, validator3, validator4)
	proof := f.submitProof(t, "rain-gauge-week-9")

	for i, v := range []common.Address{validator1, validator2} {
		p, err := f.ledger.ValidateProof(ctx, v, proof.ID, true, "", ether(1, 100))
		require.NoError(t, err)
		require.False(t, p.Verified, "validation %d must not verify", i+1)
	}
	p, err := f.ledger.ValidateProof(ctx, validator3, proof.ID, true, "", ether(1, 100))
	require.NoError(t, err)
	require.True(t, p.Verified)
	require.Equal(t, models.ProofStatusVerified, p.Status)
	require.NotNil(t, p.FinalizedAt)

	_, err = f.ledger.ValidateProof(ctx, validator4, proof.ID, true, "", ether(1, 100))
	requireReason(t, err, ErrConsistency, ReasonProofFinalized)

	for _, v := range []common.Address{validator1, validator2, validator3} {
		rep, err := f.ledger.Reputation(v)
		require.NoError(t, err)
		require.Equal(t, int64(52), rep.Score)
		require.Equal(t, uint64(1), rep.SuccessfulValidations)
	}
	rep, err := f.ledger.Reputation(provider)
	require.NoError(t, err)
	require.Equal(t, int64(51), rep.Score)

	verified := f.published.ofType(models.EventDataProofVerified)
	require.Len(t, verified, 1)
	var payload ProofFinalizedPayload
	require.NoError(t, verified[0].Decode(&payload))
	require.Equal(t, 3, payload.Affirm)
}

func TestThreeDenialsRejectProof(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.registerValidators(t, validator1, validator2, validator3)
	proof := f.submitProof(t, "fabricated-reading")

	for _, v := range []common.Address{validator1, validator2, validator3} {
		_, err := f.ledger.ValidateProof(ctx, v, proof.ID, false, "sensor offline", ether(1, 100))
		require.NoError(t, err)
	}

	p, err := f.ledger.Proof(proof.ID)
	require.NoError(t, err)
	require.False(t, p.Verified)
	require.Equal(t, models.ProofStatusRejected, p.Status)

	rep, err := f.ledger.Reputation(provider)
	require.NoError(t, err)
	require.Equal(t, int64(45), rep.Score)
	require.Len(t, f.published.ofType(models.EventDataProofRejected), 1)
}

func TestMixedVotesWaitForQuorum(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	extra := common.HexToAddress("0x000000000000000000000000000000000000c005")
	f.registerValidators(t, validator1, validator2, validator3, validator4, extra)
	proof := f.submitProof(t, "contested-reading")

	votes := []struct {
		validator common.Address
		affirm    bool
	}{
		{validator1, true},
		{validator2, false},
		{validator3, true},
		{validator4, false},
	}
	for _, v := range votes {
		p, err := f.ledger.ValidateProof(ctx, v.validator, proof.ID, v.affirm, "", ether(1, 100))
		require.NoError(t, err)
		require.Equal(t, models.ProofStatusPending, p.Status)
	}

	p, err := f.ledger.ValidateProof(ctx, extra, proof.ID, true, "", ether(1, 100))
	require.NoError(t, err)
	require.True(t, p.Verified)

	for _, dissenter := range []common.Address{validator2, validator4} {
		rep, err := f.ledger.Reputation(dissenter)
		require.NoError(t, err)
		require.Equal(t, int64(45), rep.Score)
		require.Zero(t, rep.SuccessfulValidations)
	}
}

func TestConcurrentValidationsAllCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	validators := []common.Address{validator1, validator2, validator3}
	f.registerValidators(t, validators...)
	proof := f.submitProof(t, "parallel")

	var wg sync.WaitGroup
	errs := make(chan error, len(validators)*2)
	for _, v := range validators {
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(v common.Address) {
				defer wg.Done()
				_, err := f.ledger.ValidateProof(ctx, v, proof.ID, true, "", ether(1, 100))
				errs <- err
			}(v)
		}
	}
	wg.Wait()
	close(errs)

	failures := 0
	for err := range errs {
		if err != nil {
			require.EqualError(t, err, ReasonAlreadyValidated)
			failures++
		}
	}
	require.Equal(t, len(validators), failures)

	p, err := f.ledger.Proof(proof.ID)
	require.NoError(t, err)
	require.True(t, p.Verified)
	require.Len(t, p.Validations, 3)
}

func TestTriggerEmergencyAlert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	proof := f.submitProof(t, "storm-surge-model")

	_, err := f.ledger.TriggerEmergencyAlert(ctx, responder, proof.ID, "storm", models.SeverityHigh)
	requireReason(t, err, ErrAuthorization, ReasonNotAuthorizedTrigger)

	for _, sev := range []models.Severity{0, 6} {
		_, err = f.ledger.TriggerEmergencyAlert(ctx, fieldTeam, proof.ID, "storm", sev)
		requireReason(t, err, ErrValidation, ReasonInvalidSeverity)
	}

	_, err = f.ledger.TriggerEmergencyAlert(ctx, fieldTeam, 99, "storm", models.SeverityHigh)
	requireReason(t, err, ErrConsistency, ReasonInvalidProofID)

	a, err := f.ledger.TriggerEmergencyAlert(ctx, fieldTeam, proof.ID, "storm", models.SeverityExtreme)
	require.NoError(t, err)
	require.Equal(t, proof.ID, a.LinkedProofID)
	require.Equal(t, uint8(100), a.RiskScore)
	require.Equal(t, fieldTeam, a.Issuer)
	require.Equal(t, models.AlertStatusActive, a.Status)
	require.True(t, a.ExpiresAt.Equal(f.clock.Now().Add(24*time.Hour)))
	require.NotEmpty(t, a.Title)
	require.Len(t, f.published.ofType(models.EventCriticalAlert), 1)

	_, err = f.ledger.TriggerEmergencyAlert(ctx, coordinator, proof.ID, "storm", models.SeverityLow)
	require.NoError(t, err)
}
