package casper

import (
	"io"
	"slices"
	"strconv"
)

// ValidatorID identifies a validator. It doubles as the validator name, and
// its natural ordering defines the iteration order of a ValidatorSet.
type ValidatorID uint64

func (id ValidatorID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Weight is the voting weight of a validator. Valid weights are strictly
// positive; sums of weights and fault tolerances may be zero or negative.
type Weight int64

// Estimate is the protocol-specific value that a message votes for, and the
// value a View computes as its current fork-choice.
type Estimate interface {
	// MarshalForIdentity writes a canonical encoding of the estimate. Two
	// estimates of the same protocol are equal if and only if their encodings
	// are equal.
	MarshalForIdentity(w io.Writer) error
	String() string
}

// EstimateReferrer is implemented by estimates that point at other messages,
// such as a block pointing at its parent. Referenced messages are treated as
// dependencies of any message carrying the estimate.
type EstimateReferrer interface {
	References() []*Message
}

// EstimateCloner is implemented by estimates that hold mutable state, such as
// slices, and must be copied when a message is cloned.
type EstimateCloner interface {
	CloneEstimate() Estimate
}

// LatestMessages maps each validator to the single latest message credited to
// it by an observer.
type LatestMessages map[ValidatorID]*Message

// Senders returns the validators present in the mapping in ascending order.
func (l LatestMessages) Senders() []ValidatorID {
	ids := make([]ValidatorID, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
