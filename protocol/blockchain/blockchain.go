// Package blockchain implements blockchain consensus: every message is a block
// whose estimate is its parent, and views choose a head with GHOST.
package blockchain

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/ipfs/go-cid"
)

// Name identifies the blockchain protocol.
const Name = "blockchain"

var (
	_ casper.ChainProtocol    = Protocol{}
	_ casper.Estimate         = Estimate{}
	_ casper.EstimateReferrer = Estimate{}
)

// Estimate points at a block. As the estimate of a message it is the parent
// the message extends; as the estimate of a view it is the fork-choice head.
// The zero value points at nothing, and a message carrying it is a genesis
// block.
type Estimate struct {
	Block *casper.Message
}

// IsGenesis checks whether the estimate points at no block.
func (e Estimate) IsGenesis() bool { return e.Block == nil }

func (e Estimate) MarshalForIdentity(w io.Writer) error {
	if e.Block == nil {
		return nil
	}
	_, err := w.Write(e.Block.ID().Bytes())
	return err
}

func (e Estimate) String() string {
	if e.Block == nil {
		return "genesis"
	}
	return fmt.Sprintf("block %d/%d@%d", e.Block.Sender(), e.Block.SequenceNumber(), e.Block.Height())
}

func (e Estimate) References() []*casper.Message {
	if e.Block == nil {
		return nil
	}
	return []*casper.Message{e.Block}
}

// Protocol is the blockchain consensus variant. Two blocks conflict if and
// only if neither is an ancestor of the other.
type Protocol struct{}

func (Protocol) Name() string { return Name }

func (Protocol) ValidateEstimate(estimate casper.Estimate) error {
	e, ok := estimate.(Estimate)
	if !ok {
		return fmt.Errorf("%s protocol expects blockchain.Estimate, got %T: %w", Name, estimate, casper.ErrInvalidEstimate)
	}
	if e.Block != nil && e.Block.Protocol().Name() != Name {
		return fmt.Errorf("%s protocol cannot extend a %s message: %w", Name, e.Block.Protocol().Name(), casper.ErrInvalidEstimate)
	}
	return nil
}

func (Protocol) Conflicts(one, other *casper.Message) bool {
	return !IsInBlockchain(one, other) && !IsInBlockchain(other, one)
}

// Estimate chooses the head with GHOST. Each validator's weight supports its
// latest block and all of that block's ancestors. Starting from the virtual
// root above all genesis blocks, the walk repeatedly descends into the child
// with the greatest support, stopping when no child has any. Ties are broken
// in favour of the child with the smallest identifier.
func (Protocol) Estimate(latest casper.LatestMessages, validators *casper.ValidatorSet) (casper.Estimate, error) {
	scores := make(map[cid.Cid]casper.Weight)
	// children of the virtual root are keyed by cid.Undef.
	children := make(map[cid.Cid][]*casper.Message)
	for _, id := range latest.Senders() {
		weight := validators.WeightOf(id)
		for block := latest[id]; block != nil; block = Parent(block) {
			if _, ok := block.Estimate().(Estimate); !ok {
				return nil, fmt.Errorf("block %v has %T estimate: %w", block, block.Estimate(), casper.ErrInvalidEstimate)
			}
			if _, seen := scores[block.ID()]; !seen {
				parent := cid.Undef
				if p := Parent(block); p != nil {
					parent = p.ID()
				}
				children[parent] = append(children[parent], block)
			}
			scores[block.ID()] += weight
		}
	}

	var head *casper.Message
	for at := cid.Undef; ; at = head.ID() {
		var best *casper.Message
		for _, child := range children[at] {
			score := scores[child.ID()]
			if score <= 0 {
				continue
			}
			if best == nil {
				best = child
				continue
			}
			if bestScore := scores[best.ID()]; score > bestScore || (score == bestScore && casper.CompareByID(child, best) < 0) {
				best = child
			}
		}
		if best == nil {
			break
		}
		head = best
	}
	return Estimate{Block: head}, nil
}

// Height is one more than the height of the parent, with genesis blocks at
// height 1.
func (Protocol) Height(estimate casper.Estimate, _ casper.Justification) uint64 {
	if e, ok := estimate.(Estimate); ok && e.Block != nil {
		return e.Block.Height() + 1
	}
	return 1
}

// InitialEstimate returns the genesis estimate regardless of rng.
func (Protocol) InitialEstimate(*rand.Rand) casper.Estimate {
	return Estimate{}
}

// FinalityCandidates returns the chain from the head named by estimate down to
// genesis.
func (Protocol) FinalityCandidates(estimate casper.Estimate) []*casper.Message {
	e, _ := estimate.(Estimate)
	return BestChain(e.Block)
}

// Parent returns the block a block extends, or nil for a genesis block or a
// message of another protocol.
func Parent(block *casper.Message) *casper.Message {
	if block == nil {
		return nil
	}
	e, _ := block.Estimate().(Estimate)
	return e.Block
}

// IsInBlockchain checks whether block is other or one of its ancestors.
func IsInBlockchain(block, other *casper.Message) bool {
	if block == nil {
		return false
	}
	for b := other; b != nil && b.Height() >= block.Height(); b = Parent(b) {
		if b.Equal(block) {
			return true
		}
	}
	return false
}

// BestChain returns the chain from block back to its genesis block, block
// first. A nil block yields an empty chain.
func BestChain(block *casper.Message) []*casper.Message {
	var chain []*casper.Message
	for b := block; b != nil; b = Parent(b) {
		chain = append(chain, b)
	}
	return chain
}

// Head returns the fork-choice head of a blockchain view, or nil if the view
// holds no block.
func Head(view *casper.View) (*casper.Message, error) {
	estimate, err := view.Estimate()
	if err != nil || estimate == nil {
		return nil, err
	}
	e, ok := estimate.(Estimate)
	if !ok {
		return nil, fmt.Errorf("view estimate is %T: %w", estimate, casper.ErrInvalidEstimate)
	}
	return e.Block, nil
}
