package adversary_test

import (
	"testing"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/protocol/integer"
	"github.com/filecoin-project/go-casper/sim"
	"github.com/filecoin-project/go-casper/sim/adversary"
	"github.com/stretchr/testify/require"
)

func increment(e casper.Estimate) casper.Estimate { return e.(integer.Estimate) + 1 }

func newNetwork(t *testing.T) *sim.Network {
	validators, err := casper.NewValidatorSet(integer.Protocol{},
		map[casper.ValidatorID]casper.Weight{0: 10, 1: 10, 2: 10},
		casper.WithInitialEstimate(0, integer.Estimate(1)),
		casper.WithInitialEstimate(1, integer.Estimate(1)),
		casper.WithInitialEstimate(2, integer.Estimate(1)))
	require.NoError(t, err)
	network, err := sim.NewNetwork(validators)
	require.NoError(t, err)
	return network
}

func TestEquivocate(t *testing.T) {
	network := newNetwork(t)
	subject := adversary.NewEquivocate(2, network, increment)
	require.Equal(t, casper.ValidatorID(2), subject.ID())

	one, twin, err := subject.Split([]casper.ValidatorID{0})
	require.NoError(t, err)
	require.Equal(t, one.SequenceNumber(), twin.SequenceNumber())
	require.Equal(t, integer.Estimate(1), one.Estimate())
	require.Equal(t, integer.Estimate(2), twin.Estimate())
	require.Equal(t, 2, network.Pending())
	require.True(t, network.GlobalView().IsEquivocating(2))

	require.NoError(t, network.Drain())
	validators := network.Validators()
	zero, err := validators.Get(0)
	require.NoError(t, err)
	first, err := validators.Get(1)
	require.NoError(t, err)
	controlled, err := validators.Get(2)
	require.NoError(t, err)

	require.True(t, zero.View().Has(one))
	require.False(t, zero.View().Has(twin))
	require.True(t, first.View().Has(twin))
	require.False(t, first.View().Has(one))
	require.True(t, controlled.View().Has(one))
	require.False(t, controlled.View().Has(twin))

	// Neither half can tell on its own.
	require.False(t, zero.View().IsEquivocating(2))
	require.False(t, first.View().IsEquivocating(2))

	require.NoError(t, network.PropagateMessageToValidator(twin, 0))
	require.True(t, zero.View().IsEquivocating(2))
	require.NotContains(t, zero.View().LatestHonestMessages(), casper.ValidatorID(2))
}

func TestEquivocate_RejectsNonConflictingFork(t *testing.T) {
	network := newNetwork(t)
	subject := adversary.NewEquivocate(2, network, func(e casper.Estimate) casper.Estimate { return e })
	_, _, err := subject.Split(nil)
	require.ErrorIs(t, err, adversary.ErrNoFork)
	require.Zero(t, network.Pending())

	controlled, err := network.Validators().Get(2)
	require.NoError(t, err)
	require.Zero(t, controlled.NextSequenceNumber())
	require.Zero(t, controlled.View().Len())
}

func TestEquivocate_RejectsInvalidFork(t *testing.T) {
	network := newNetwork(t)
	subject := adversary.NewEquivocate(2, network, func(casper.Estimate) casper.Estimate { return nil })
	_, _, err := subject.Split(nil)
	require.ErrorIs(t, err, casper.ErrInvalidEstimate)

	controlled, err := network.Validators().Get(2)
	require.NoError(t, err)
	require.Zero(t, controlled.NextSequenceNumber())
	require.Zero(t, controlled.View().Len())
}

func TestEquivocate_UnknownValidator(t *testing.T) {
	network := newNetwork(t)
	subject := adversary.NewEquivocate(7, network, increment)
	_, _, err := subject.Split(nil)
	require.ErrorIs(t, err, casper.ErrUnknownValidator)
}
