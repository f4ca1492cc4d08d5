package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AuthorizationMode selects how the factory gates affiliate provisioning.
type AuthorizationMode string

var (
	// CreditAuthorization consumes one prepaid credit per instance.
	CreditAuthorization AuthorizationMode = "credit"
	// SignatureAuthorization requires a signed (requester, nonce) message from a trusted signer.
	SignatureAuthorization AuthorizationMode = "signature"
)

// CreditAccount is the prepaid credit balance of an account.
type CreditAccount struct {
	Account common.Address
	Balance uint64
}

// Affiliate describes a provisioned distribution instance.
type Affiliate struct {
	Instance common.Address
	Owner    common.Address
}

// TotalCost returns credits*price or false on overflow.
func TotalCost(credits uint64, price *uint256.Int) (*uint256.Int, bool) {
	return new(uint256.Int).MulOverflow(uint256.NewInt(credits), price)
}
