package latency

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/filecoin-project/go-casper/casper"
)

var _ Model = (*LogNormal)(nil)

// LogNormal samples latencies whose logarithm is normally distributed around
// the log of a configured median. Samples do not depend on time or on the
// validators involved.
type LogNormal struct {
	rng    *rand.Rand
	median float64
}

// NewLogNormal returns a log normal model with the given median latency,
// drawing samples from a source seeded with seed.
func NewLogNormal(seed int64, median time.Duration) (*LogNormal, error) {
	if median < 0 {
		return nil, errors.New("median latency cannot be negative")
	}
	return &LogNormal{
		rng:    rand.New(rand.NewSource(seed)),
		median: float64(median),
	}, nil
}

func (l *LogNormal) Sample(_ time.Time, from, to casper.ValidatorID) time.Duration {
	if from == to {
		return 0
	}
	return time.Duration(l.median * math.Exp(l.rng.NormFloat64()))
}
