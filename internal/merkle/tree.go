// Package merkle builds sorted-pair keccak256 Merkle trees over reward
// entitlements and produces the proofs recipients present when claiming.
//
// Leaves match Solidity's keccak256(abi.encodePacked(address, uint256...)) and
// interior nodes hash the two children in ascending byte order, so proofs are
// position-free. A node without a sibling is promoted to the next layer unchanged.
package merkle

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	ErrEmptyTree    = errors.New("merkle tree has no leaves")
	ErrLeafNotFound = errors.New("leaf not found in tree")
)

// Leaf hashes an account together with its amounts.
func Leaf(account common.Address, amounts ...*uint256.Int) common.Hash {
	buf := make([]byte, 0, common.AddressLength+32*len(amounts))
	buf = append(buf, account.Bytes()...)
	for _, a := range amounts {
		word := a.Bytes32()
		buf = append(buf, word[:]...)
	}
	return crypto.Keccak256Hash(buf)
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// Tree keeps every layer so proofs can be read without rehashing.
type Tree struct {
	layers [][]common.Hash
	index  map[common.Hash]int
}

func New(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	base := make([]common.Hash, len(leaves))
	copy(base, leaves)

	t := &Tree{
		layers: [][]common.Hash{base},
		index:  make(map[common.Hash]int, len(base)),
	}
	for i, leaf := range base {
		if _, ok := t.index[leaf]; !ok {
			t.index[leaf] = i
		}
	}

	for layer := base; len(layer) > 1; {
		next := make([]common.Hash, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, hashPair(layer[i], layer[i+1]))
		}
		t.layers = append(t.layers, next)
		layer = next
	}
	return t, nil
}

func (t *Tree) Root() common.Hash {
	return t.layers[len(t.layers)-1][0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.layers[0])
}

// Proof returns the sibling path of leaf from the bottom layer up.
func (t *Tree) Proof(leaf common.Hash) ([]common.Hash, error) {
	idx, ok := t.index[leaf]
	if !ok {
		return nil, ErrLeafNotFound
	}
	return t.proofAt(idx), nil
}

func (t *Tree) proofAt(idx int) []common.Hash {
	proof := make([]common.Hash, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := idx ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		idx /= 2
	}
	return proof
}

// Verify folds proof into leaf and compares the result with root.
func Verify(proof []common.Hash, root, leaf common.Hash) bool {
	computed := leaf
	for _, p := range proof {
		computed = hashPair(computed, p)
	}
	return computed == root
}
