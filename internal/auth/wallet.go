package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrUnknownChallenge is returned when a signed message was not issued or
	// has already been used.
	ErrUnknownChallenge = errors.New("unknown or expired challenge")
	// ErrSignatureMismatch is returned when the signature does not recover to
	// the claimed address.
	ErrSignatureMismatch = errors.New("signature does not match address")
)

// Challenge is a one-time message a wallet signs to log in.
type Challenge struct {
	Address   common.Address `json:"address"`
	Message   string         `json:"message"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// ChallengeStore issues and redeems wallet login challenges.
type ChallengeStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[common.Address]Challenge
}

// NewChallengeStore creates a store whose challenges live for ttl.
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[common.Address]Challenge),
	}
}

// Issue creates a fresh challenge for address, replacing any pending one.
func (s *ChallengeStore) Issue(address common.Address) (Challenge, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return Challenge{}, fmt.Errorf("generate nonce: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	now := s.now()
	c := Challenge{
		Address: address,
		Message: fmt.Sprintf("Guardian login\nAddress: %s\nNonce: %s\nIssued: %s",
			address.Hex(), hex.EncodeToString(nonce), now.UTC().Format(time.RFC3339)),
		ExpiresAt: now.Add(s.ttl),
	}
	s.pending[address] = c
	return c, nil
}

// Redeem verifies that signature over the pending challenge of address
// recovers to address. A challenge can be redeemed once.
func (s *ChallengeStore) Redeem(address common.Address, signature string) error {
	s.mu.Lock()
	c, ok := s.pending[address]
	if ok {
		delete(s.pending, address)
	}
	s.mu.Unlock()

	if !ok || !s.now().Before(c.ExpiresAt) {
		return ErrUnknownChallenge
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	signer, err := RecoverSigner(c.Message, sig)
	if err != nil {
		return err
	}
	if signer != address {
		return ErrSignatureMismatch
	}
	return nil
}

// sweep drops expired challenges. Caller holds s.mu.
func (s *ChallengeStore) sweep() {
	now := s.now()
	for addr, c := range s.pending {
		if !now.Before(c.ExpiresAt) {
			delete(s.pending, addr)
		}
	}
}

// RecoverSigner returns the address that produced an EIP-191 personal_sign
// signature over message.
func RecoverSigner(message string, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	// Wallets emit recovery ids 27/28.
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
