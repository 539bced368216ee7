// Package latency provides models of the delay between a validator sending a
// message and another validator receiving it.
package latency

import (
	"time"

	"github.com/filecoin-project/go-casper/casper"
)

// Model samples the latency of a message sent from one validator to another
// at a given virtual time. Messages a validator sends to itself have zero
// latency under every model.
type Model interface {
	Sample(at time.Time, from, to casper.ValidatorID) time.Duration
}

// None delivers every message instantly.
var None Model = Fixed(0)

var _ Model = Fixed(0)

// Fixed delays every message between distinct validators by the same
// duration.
type Fixed time.Duration

func (f Fixed) Sample(_ time.Time, from, to casper.ValidatorID) time.Duration {
	if from == to {
		return 0
	}
	return time.Duration(f)
}
