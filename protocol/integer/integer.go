// Package integer implements integer consensus: validators vote
// for an integer and converge on the value carrying the most weight.
package integer

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"github.com/filecoin-project/go-casper/casper"
)

// Name identifies the integer protocol.
const Name = "integer"

// maxInitialEstimate bounds randomly drawn initial estimates.
const maxInitialEstimate = 100

var (
	_ casper.Protocol = Protocol{}
	_ casper.Estimate = Estimate(0)
)

// Estimate is an integer vote.
type Estimate int64

func (e Estimate) MarshalForIdentity(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, int64(e))
}

func (e Estimate) String() string { return strconv.FormatInt(int64(e), 10) }

// Protocol is the integer consensus variant. Two messages conflict if and
// only if their estimates differ.
type Protocol struct{}

func (Protocol) Name() string { return Name }

func (Protocol) ValidateEstimate(estimate casper.Estimate) error {
	if _, ok := estimate.(Estimate); !ok {
		return fmt.Errorf("%s protocol expects integer.Estimate, got %T: %w", Name, estimate, casper.ErrInvalidEstimate)
	}
	return nil
}

func (Protocol) Conflicts(one, other *casper.Message) bool {
	return one.Estimate() != other.Estimate()
}

// Estimate returns the weighted mode of the latest messages: the value with
// the greatest total sender weight, breaking ties in favour of the smallest
// value.
func (Protocol) Estimate(latest casper.LatestMessages, validators *casper.ValidatorSet) (casper.Estimate, error) {
	support := make(map[Estimate]casper.Weight)
	for id, m := range latest {
		value, ok := m.Estimate().(Estimate)
		if !ok {
			return nil, fmt.Errorf("latest message of %d has %T estimate: %w", id, m.Estimate(), casper.ErrInvalidEstimate)
		}
		support[value] += validators.WeightOf(id)
	}
	var (
		best       Estimate
		bestWeight casper.Weight = -1
	)
	for value, weight := range support {
		if weight > bestWeight || (weight == bestWeight && value < best) {
			best, bestWeight = value, weight
		}
	}
	return best, nil
}

func (Protocol) Height(_ casper.Estimate, justification casper.Justification) uint64 {
	return casper.NextHeight(justification)
}

// InitialEstimate returns zero, or a value drawn uniformly from [0, 100) if
// rng is non-nil.
func (Protocol) InitialEstimate(rng *rand.Rand) casper.Estimate {
	if rng == nil {
		return Estimate(0)
	}
	return Estimate(rng.Int63n(maxInitialEstimate))
}
