package merkle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

var ErrProofMismatch = errors.New("proof does not reach root")

// ProofEntry is one recipient row of a commitment file. Amounts are decimal
// strings in base units; Amount is used instead of the pair for single-amount trees.
type ProofEntry struct {
	Address          common.Address `json:"address"`
	Proof            []common.Hash  `json:"proof"`
	SettlementAmount string         `json:"settlementAmount,omitempty"`
	AssetAmount      string         `json:"assetAmount,omitempty"`
	Amount           string         `json:"amount,omitempty"`
}

// CommitmentFile is the JSON document handed to recipients and to the publisher.
type CommitmentFile struct {
	Root   common.Hash  `json:"root"`
	Proofs []ProofEntry `json:"proofs"`
}

func parseAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return v, nil
}

// Recipient decodes a two-amount row.
func (p ProofEntry) Recipient() (model.Recipient, error) {
	settlement, err := parseAmount("settlementAmount", p.SettlementAmount)
	if err != nil {
		return model.Recipient{}, err
	}
	asset, err := parseAmount("assetAmount", p.AssetAmount)
	if err != nil {
		return model.Recipient{}, err
	}
	return model.Recipient{Account: p.Address, Settlement: settlement, Asset: asset}, nil
}

// Allocation decodes a single-amount row.
func (p ProofEntry) Allocation() (model.Allocation, error) {
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return model.Allocation{}, err
	}
	return model.Allocation{Account: p.Address, Amount: amount}, nil
}

func (p ProofEntry) leaf() (common.Hash, error) {
	if p.Amount != "" {
		a, err := p.Allocation()
		if err != nil {
			return common.Hash{}, err
		}
		return Leaf(a.Account, a.Amount), nil
	}
	r, err := p.Recipient()
	if err != nil {
		return common.Hash{}, err
	}
	return Leaf(r.Account, r.Settlement, r.Asset), nil
}

// Lookup finds the row of account.
func (f *CommitmentFile) Lookup(account common.Address) (ProofEntry, bool) {
	for _, p := range f.Proofs {
		if p.Address == account {
			return p, true
		}
	}
	return ProofEntry{}, false
}

// Totals sums the amounts a publisher must fund. Single-amount rows count as asset.
func (f *CommitmentFile) Totals() (settlement, asset *uint256.Int, err error) {
	settlement, asset = new(uint256.Int), new(uint256.Int)
	for _, p := range f.Proofs {
		if p.Amount != "" {
			a, err := p.Allocation()
			if err != nil {
				return nil, nil, err
			}
			if _, overflow := asset.AddOverflow(asset, a.Amount); overflow {
				return nil, nil, fmt.Errorf("asset total overflows")
			}
			continue
		}
		r, err := p.Recipient()
		if err != nil {
			return nil, nil, err
		}
		if _, overflow := settlement.AddOverflow(settlement, r.Settlement); overflow {
			return nil, nil, fmt.Errorf("settlement total overflows")
		}
		if _, overflow := asset.AddOverflow(asset, r.Asset); overflow {
			return nil, nil, fmt.Errorf("asset total overflows")
		}
	}
	return settlement, asset, nil
}

// Verify rechecks every row against the root.
func (f *CommitmentFile) Verify() error {
	for _, p := range f.Proofs {
		leaf, err := p.leaf()
		if err != nil {
			return err
		}
		if !Verify(p.Proof, f.Root, leaf) {
			return fmt.Errorf("%s: %w", p.Address, ErrProofMismatch)
		}
	}
	return nil
}

func WriteCommitmentFile(path string, f *CommitmentFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal commitment: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write commitment %s: %w", path, err)
	}
	return nil
}

func ReadCommitmentFile(path string) (*CommitmentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read commitment %s: %w", path, err)
	}
	var f CommitmentFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode commitment %s: %w", path, err)
	}
	return &f, nil
}
