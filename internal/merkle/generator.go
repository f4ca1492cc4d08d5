package merkle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/pkg/workerpool"
)

var (
	ErrDuplicateAccount = errors.New("account listed more than once")
	ErrNotFound         = errors.New("account not in commitment")
	ErrMissingAmount    = errors.New("amount is missing")
)

// Entry is one committed account with the amounts hashed into its leaf.
type Entry struct {
	Account common.Address
	Amounts []*uint256.Int
	Leaf    common.Hash
}

// Generator holds the tree for one commitment version.
type Generator struct {
	tree      *Tree
	entries   []Entry
	byAccount map[common.Address]int
	single    bool
}

// NewGenerator builds a tree of (account, settlement, asset) leaves.
func NewGenerator(recipients []model.Recipient) (*Generator, error) {
	entries := make([]Entry, 0, len(recipients))
	for _, r := range recipients {
		if r.Settlement == nil || r.Asset == nil {
			return nil, fmt.Errorf("recipient %s: %w", r.Account, ErrMissingAmount)
		}
		entries = append(entries, Entry{Account: r.Account, Amounts: []*uint256.Int{r.Settlement, r.Asset}})
	}
	return newGenerator(entries, false)
}

// NewAllocationGenerator builds a tree of (account, amount) leaves.
func NewAllocationGenerator(allocations []model.Allocation) (*Generator, error) {
	entries := make([]Entry, 0, len(allocations))
	for _, a := range allocations {
		if a.Amount == nil {
			return nil, fmt.Errorf("allocation %s: %w", a.Account, ErrMissingAmount)
		}
		entries = append(entries, Entry{Account: a.Account, Amounts: []*uint256.Int{a.Amount}})
	}
	return newGenerator(entries, true)
}

func newGenerator(entries []Entry, single bool) (*Generator, error) {
	g := &Generator{
		entries:   entries,
		byAccount: make(map[common.Address]int, len(entries)),
		single:    single,
	}
	leaves := make([]common.Hash, len(entries))
	for i := range entries {
		if _, dup := g.byAccount[entries[i].Account]; dup {
			return nil, fmt.Errorf("%s: %w", entries[i].Account, ErrDuplicateAccount)
		}
		g.byAccount[entries[i].Account] = i
		entries[i].Leaf = Leaf(entries[i].Account, entries[i].Amounts...)
		leaves[i] = entries[i].Leaf
	}
	tree, err := New(leaves)
	if err != nil {
		return nil, err
	}
	g.tree = tree
	return g, nil
}

func (g *Generator) Root() common.Hash {
	return g.tree.Root()
}

func (g *Generator) Entries() []Entry {
	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Proof returns the proof for account.
func (g *Generator) Proof(account common.Address) ([]common.Hash, error) {
	idx, ok := g.byAccount[account]
	if !ok {
		return nil, fmt.Errorf("%s: %w", account, ErrNotFound)
	}
	return g.tree.proofAt(idx), nil
}

// Commitment computes every proof and returns the publishable file.
func (g *Generator) Commitment(ctx context.Context, workers int) (*CommitmentFile, error) {
	idx := make([]int, len(g.entries))
	for i := range idx {
		idx[i] = i
	}
	proofs, err := workerpool.Map(ctx, workers, idx, func(_ context.Context, i int) (ProofEntry, error) {
		e := g.entries[i]
		p := ProofEntry{Address: e.Account, Proof: g.tree.proofAt(i)}
		if g.single {
			p.Amount = e.Amounts[0].Dec()
		} else {
			p.SettlementAmount = e.Amounts[0].Dec()
			p.AssetAmount = e.Amounts[1].Dec()
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("compute proofs: %w", err)
	}
	return &CommitmentFile{Root: g.Root(), Proofs: proofs}, nil
}
