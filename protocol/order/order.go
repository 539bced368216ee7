// Package order implements order consensus: validators vote for a total order
// over a set of items and converge on an order by pairwise weighted majority.
package order

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"strings"

	"github.com/filecoin-project/go-casper/casper"
)

// Name identifies the order protocol.
const Name = "order"

// Items is the default set of items to order.
var Items = []string{"dog", "frog", "horse", "pig", "rat", "whale", "cat"}

var (
	_ casper.Protocol       = Protocol{}
	_ casper.Estimate       = Estimate(nil)
	_ casper.EstimateCloner = Estimate(nil)
)

// Estimate is an ordered sequence of distinct items.
type Estimate []string

func (e Estimate) MarshalForIdentity(w io.Writer) error {
	buf := binary.AppendUvarint(nil, uint64(len(e)))
	for _, item := range e {
		buf = binary.AppendUvarint(buf, uint64(len(item)))
		buf = append(buf, item...)
	}
	_, err := w.Write(buf)
	return err
}

func (e Estimate) String() string { return "[" + strings.Join(e, " ") + "]" }

func (e Estimate) CloneEstimate() casper.Estimate { return slices.Clone(e) }

// Protocol is the order consensus variant. Two messages conflict if their
// orders differ in any position.
type Protocol struct{}

func (Protocol) Name() string { return Name }

func (Protocol) ValidateEstimate(estimate casper.Estimate) error {
	order, ok := estimate.(Estimate)
	if !ok {
		return fmt.Errorf("%s protocol expects order.Estimate, got %T: %w", Name, estimate, casper.ErrInvalidEstimate)
	}
	if len(order) == 0 {
		return fmt.Errorf("%s protocol expects at least one item: %w", Name, casper.ErrInvalidEstimate)
	}
	seen := make(map[string]struct{}, len(order))
	for _, item := range order {
		if _, dup := seen[item]; dup {
			return fmt.Errorf("%s protocol item %q repeated: %w", Name, item, casper.ErrInvalidEstimate)
		}
		seen[item] = struct{}{}
	}
	return nil
}

func (Protocol) Conflicts(one, other *casper.Message) bool {
	a, _ := one.Estimate().(Estimate)
	b, _ := other.Estimate().(Estimate)
	return !slices.Equal(a, b)
}

// Estimate builds a total order by pairwise weighted majority. For every pair
// of items, the weight of validators whose latest message ranks one before the
// other decides which of the two wins. Items are then emitted greedily: the
// next item is the one winning the most pairwise contests against the items
// not yet emitted, with ties, including those caused by majority cycles,
// broken in favour of the lexically smallest item.
func (Protocol) Estimate(latest casper.LatestMessages, validators *casper.ValidatorSet) (casper.Estimate, error) {
	index := make(map[string]int)
	var items []string
	for _, id := range latest.Senders() {
		order, ok := latest[id].Estimate().(Estimate)
		if !ok {
			return nil, fmt.Errorf("latest message of %d has %T estimate: %w", id, latest[id].Estimate(), casper.ErrInvalidEstimate)
		}
		for _, item := range order {
			if _, found := index[item]; !found {
				index[item] = len(items)
				items = append(items, item)
			}
		}
	}
	slices.Sort(items)
	for i, item := range items {
		index[item] = i
	}

	// before[a][b] is the weight ranking item a before item b.
	before := make([][]casper.Weight, len(items))
	for i := range before {
		before[i] = make([]casper.Weight, len(items))
	}
	for id, m := range latest {
		weight := validators.WeightOf(id)
		order := m.Estimate().(Estimate)
		for i := range order {
			for j := i + 1; j < len(order); j++ {
				before[index[order[i]]][index[order[j]]] += weight
			}
		}
	}

	remaining := make([]int, len(items))
	for i := range remaining {
		remaining[i] = i
	}
	result := make(Estimate, 0, len(items))
	for len(remaining) > 0 {
		bestAt, bestWins := 0, -1
		for at, a := range remaining {
			var wins int
			for _, b := range remaining {
				if a != b && before[a][b] > before[b][a] {
					wins++
				}
			}
			// remaining is in lexical order, so strict comparison keeps the
			// smallest item on ties.
			if wins > bestWins {
				bestAt, bestWins = at, wins
			}
		}
		result = append(result, items[remaining[bestAt]])
		remaining = slices.Delete(remaining, bestAt, bestAt+1)
	}
	return result, nil
}

func (Protocol) Height(_ casper.Estimate, justification casper.Justification) uint64 {
	return casper.NextHeight(justification)
}

// InitialEstimate returns Items in their default order, or a random
// permutation of them if rng is non-nil.
func (Protocol) InitialEstimate(rng *rand.Rand) casper.Estimate {
	if rng == nil {
		return slices.Clone(Estimate(Items))
	}
	permuted := make(Estimate, len(Items))
	for i, j := range rng.Perm(len(Items)) {
		permuted[i] = Items[j]
	}
	return permuted
}
