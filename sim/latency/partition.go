package latency

import (
	"time"

	"github.com/filecoin-project/go-casper/casper"
)

var _ Model = (*Partition)(nil)

// Partition splits validators into two sides until a heal time. Messages
// crossing the split before it heals are held back until the heal time, on
// top of the latency sampled from the underlying model.
type Partition struct {
	Model
	side   map[casper.ValidatorID]struct{}
	healAt time.Time
}

// NewPartition separates the given validators from every other one until
// healAt.
func NewPartition(model Model, healAt time.Time, side ...casper.ValidatorID) *Partition {
	p := &Partition{
		Model:  model,
		side:   make(map[casper.ValidatorID]struct{}, len(side)),
		healAt: healAt,
	}
	for _, id := range side {
		p.side[id] = struct{}{}
	}
	return p
}

func (p *Partition) Sample(at time.Time, from, to casper.ValidatorID) time.Duration {
	sampled := p.Model.Sample(at, from, to)
	_, fromInside := p.side[from]
	_, toInside := p.side[to]
	if fromInside == toInside || !at.Before(p.healAt) {
		return sampled
	}
	return p.healAt.Sub(at) + sampled
}
