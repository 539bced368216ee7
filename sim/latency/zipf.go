package latency

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/filecoin-project/go-casper/casper"
)

var _ Model = (*Zipf)(nil)

// Zipf represents a Zipf latency distribution with a configurable max
// latency, producing mostly short delays with a long tail.
type Zipf struct {
	dist *rand.Zipf
}

// NewZipf instantiates a new latency model of Zipf latency distribution with
// the given max.
func NewZipf(seed int64, s, v float64, max time.Duration) (*Zipf, error) {
	if max < 0 {
		return nil, errors.New("max duration cannot be negative")
	}
	dist := rand.NewZipf(rand.New(rand.NewSource(seed)), s, v, uint64(max))
	if dist == nil {
		return nil, fmt.Errorf("zipf parameters are out of band: s=%f, v=%f", s, v)
	}
	return &Zipf{dist: dist}, nil
}

// Sample returns latency samples that correspond to this Zipf distribution.
// Messages sent by a validator to itself have zero latency.
func (l *Zipf) Sample(_ time.Time, from, to casper.ValidatorID) time.Duration {
	if from == to {
		return 0
	}
	return time.Duration(l.dist.Uint64())
}
