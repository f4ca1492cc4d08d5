package factory

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/model"
)

// Authorization is what a requester presents to the factory. Credit-based
// factories ignore it.
type Authorization struct {
	Nonce     uint64
	Signature []byte
}

// AuthorizationStrategy gates affiliate provisioning and credit purchases.
type AuthorizationStrategy interface {
	Mode() model.AuthorizationMode
	AuthorizeDeploy(requester common.Address, auth Authorization) error
	AuthorizeTopUp(requester common.Address, auth Authorization) error
}

// CreditBased spends one prepaid credit per deployment.
type CreditBased struct {
	credits *chain.Map[common.Address, uint64]
}

func NewCreditBased(credits *chain.Map[common.Address, uint64]) *CreditBased {
	return &CreditBased{credits: credits}
}

func (s *CreditBased) Mode() model.AuthorizationMode {
	return model.CreditAuthorization
}

func (s *CreditBased) AuthorizeDeploy(requester common.Address, _ Authorization) error {
	balance := s.credits.Get(requester)
	if balance == 0 {
		return fmt.Errorf("%s: %w", requester, ErrInsufficientCredits)
	}
	s.credits.Set(requester, balance-1)
	return nil
}

func (s *CreditBased) AuthorizeTopUp(common.Address, Authorization) error {
	return nil
}

type nonceKey struct {
	requester common.Address
	nonce     uint64
}

// SignatureBased accepts requests signed by a trusted key. Each
// (requester, nonce) pair is accepted once.
type SignatureBased struct {
	signer *chain.Value[common.Address]
	used   *chain.Map[nonceKey, bool]
}

func NewSignatureBased(l *chain.Ledger, signer common.Address) *SignatureBased {
	return &SignatureBased{
		signer: chain.NewValue(l, signer),
		used:   chain.NewMap[nonceKey, bool](l),
	}
}

func (s *SignatureBased) Mode() model.AuthorizationMode {
	return model.SignatureAuthorization
}

func (s *SignatureBased) Signer() common.Address {
	return s.signer.Get()
}

func (s *SignatureBased) AuthorizeDeploy(requester common.Address, auth Authorization) error {
	return s.consume(requester, auth)
}

// AuthorizeTopUp refuses every purchase: signed deployments never spend
// credits, so selling them would take the asset for nothing.
func (s *SignatureBased) AuthorizeTopUp(common.Address, Authorization) error {
	return fmt.Errorf("credit purchase under %s: %w", model.SignatureAuthorization, ErrUnsupportedMode)
}

func (s *SignatureBased) consume(requester common.Address, auth Authorization) error {
	key := nonceKey{requester: requester, nonce: auth.Nonce}
	if s.used.Get(key) {
		return fmt.Errorf("nonce %d for %s: %w", auth.Nonce, requester, ErrNonceUsed)
	}
	signer, err := RecoverSigner(requester, auth.Nonce, auth.Signature)
	if err != nil {
		return err
	}
	if signer != s.signer.Get() {
		return fmt.Errorf("signed by %s: %w", signer, ErrInvalidSignature)
	}
	s.used.Set(key, true)
	return nil
}

// AuthorizationHash is keccak256(requester ‖ uint256(nonce)) under the
// Ethereum signed-message prefix.
func AuthorizationHash(requester common.Address, nonce uint64) common.Hash {
	word := uint256.NewInt(nonce).Bytes32()
	inner := crypto.Keccak256(requester.Bytes(), word[:])
	return crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), inner)
}

// SignAuthorization produces a 65-byte R‖S‖V signature with V in {27, 28}.
func SignAuthorization(key *btcec.PrivateKey, requester common.Address, nonce uint64) ([]byte, error) {
	hash := AuthorizationHash(requester, nonce)
	compact, err := ecdsa.SignCompact(key, hash[:], false)
	if err != nil {
		return nil, fmt.Errorf("sign authorization: %w", err)
	}
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}

var secp256k1HalfOrder = new(big.Int).Rsh(btcec.S256().Params().N, 1)

// RecoverSigner returns the address that signed (requester, nonce).
func RecoverSigner(requester common.Address, nonce uint64, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature length %d: %w", len(sig), ErrInvalidSignature)
	}
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("recovery id %d: %w", sig[64], ErrInvalidSignature)
	}
	if new(big.Int).SetBytes(sig[32:64]).Cmp(secp256k1HalfOrder) > 0 {
		return common.Address{}, fmt.Errorf("malleable signature: %w", ErrInvalidSignature)
	}

	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	hash := AuthorizationHash(requester, nonce)
	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w: %w", ErrInvalidSignature, err)
	}
	return PubkeyToAddress(pub), nil
}

// PubkeyToAddress derives the account address of a secp256k1 public key.
func PubkeyToAddress(pub *btcec.PublicKey) common.Address {
	return common.BytesToAddress(crypto.Keccak256(pub.SerializeUncompressed()[1:])[12:])
}
