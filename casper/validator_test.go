package casper_test

import (
	"math/rand"
	"testing"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/protocol/integer"
	"github.com/filecoin-project/go-casper/protocol/order"
	"github.com/stretchr/testify/require"
)

func TestValidatorSet(t *testing.T) {
	t.Run("is sorted by ID", func(t *testing.T) {
		subject := newIntegerValidators(t, map[casper.ValidatorID]casper.Weight{7: 1, 3: 2, 5: 3})
		require.NoError(t, subject.Validate())
		require.Equal(t, []casper.ValidatorID{3, 5, 7}, subject.IDs())
		require.Equal(t, 3, subject.Len())
		require.Equal(t, casper.Weight(6), subject.TotalWeight())
		require.Equal(t, casper.Weight(3), subject.WeightOf(5))
		require.Zero(t, subject.WeightOf(4))
		require.Equal(t, casper.Weight(3), subject.WeightOfSet(3, 7, 42))
		require.Equal(t, casper.Weight(5), subject.WeightOfSet(3, 5))

		index, found := subject.Index(7)
		require.True(t, found)
		require.Equal(t, 2, index)
		_, found = subject.Index(4)
		require.False(t, found)
	})
	t.Run("get", func(t *testing.T) {
		subject := newIntegerValidators(t, map[casper.ValidatorID]casper.Weight{0: 10})
		v, err := subject.Get(0)
		require.NoError(t, err)
		require.Equal(t, casper.ValidatorID(0), v.ID())
		require.Equal(t, casper.Weight(10), v.Weight())
		require.True(t, subject.Has(0))

		_, err = subject.Get(1)
		require.ErrorIs(t, err, casper.ErrUnknownValidator)
		require.False(t, subject.Has(1))
	})
	t.Run("weights must be positive", func(t *testing.T) {
		for _, weight := range []casper.Weight{0, -1} {
			_, err := casper.NewValidatorSet(integer.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 10, 1: weight})
			require.ErrorIs(t, err, casper.ErrInvalidWeight)
		}
	})
	t.Run("protocol is required", func(t *testing.T) {
		_, err := casper.NewValidatorSet(nil, map[casper.ValidatorID]casper.Weight{0: 10})
		require.Error(t, err)
	})
	t.Run("each validator owns a view", func(t *testing.T) {
		subject := newIntegerValidators(t, map[casper.ValidatorID]casper.Weight{0: 10, 1: 11})
		validators := subject.Sorted()
		require.NotSame(t, validators[0].View(), validators[1].View())
		require.Same(t, subject, validators[0].View().Validators())
	})
}

func TestValidator_ProduceMessage(t *testing.T) {
	validators := newIntegerValidators(t, map[casper.ValidatorID]casper.Weight{0: 10, 1: 11},
		casper.WithInitialEstimate(0, integer.Estimate(3)),
		casper.WithInitialEstimate(1, integer.Estimate(4)))
	zero, err := validators.Get(0)
	require.NoError(t, err)
	one, err := validators.Get(1)
	require.NoError(t, err)

	first, err := zero.ProduceMessage()
	require.NoError(t, err)
	require.Equal(t, integer.Estimate(3), first.Estimate())
	require.Zero(t, first.SequenceNumber())
	require.Equal(t, uint64(1), first.Height())
	require.Equal(t, uint64(1), zero.NextSequenceNumber())
	require.True(t, first.Equal(zero.LatestMessage()))
	require.True(t, zero.View().Has(first))
	require.False(t, one.View().Has(first))

	// The own latest message takes over from the initial estimate.
	second, err := zero.ProduceMessage()
	require.NoError(t, err)
	require.Equal(t, uint64(1), second.SequenceNumber())
	require.Equal(t, uint64(2), second.Height())
	require.Equal(t, integer.Estimate(3), second.Estimate())
	cited, found := second.Justification().Get(0)
	require.True(t, found)
	require.True(t, first.Equal(cited))

	require.NoError(t, one.ReceiveMessages(second))
	require.Equal(t, 2, one.View().Len())
	third, err := one.ProduceMessage()
	require.NoError(t, err)
	require.Equal(t, integer.Estimate(3), third.Estimate())
	require.Equal(t, uint64(3), third.Height())
}

func TestValidatorSet_InitialEstimates(t *testing.T) {
	t.Run("default is deterministic", func(t *testing.T) {
		subject, err := casper.NewValidatorSet(order.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 1, 1: 1})
		require.NoError(t, err)
		for _, v := range subject.Sorted() {
			require.Equal(t, order.Estimate(order.Items), v.InitialEstimate())
		}
	})
	t.Run("random is reproducible", func(t *testing.T) {
		weights := map[casper.ValidatorID]casper.Weight{0: 1, 1: 1, 2: 1}
		one, err := casper.NewValidatorSet(integer.Protocol{}, weights, casper.WithRandomInitialEstimates(rand.New(rand.NewSource(1413))))
		require.NoError(t, err)
		other, err := casper.NewValidatorSet(integer.Protocol{}, weights, casper.WithRandomInitialEstimates(rand.New(rand.NewSource(1413))))
		require.NoError(t, err)
		for i, v := range one.Sorted() {
			require.Equal(t, v.InitialEstimate(), other.Sorted()[i].InitialEstimate())
		}
	})
	t.Run("wrong shape is rejected", func(t *testing.T) {
		_, err := casper.NewValidatorSet(integer.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 1},
			casper.WithInitialEstimate(0, order.Estimate{"dog"}))
		require.ErrorIs(t, err, casper.ErrInvalidEstimate)
	})
	t.Run("nil rng is rejected", func(t *testing.T) {
		_, err := casper.NewValidatorSet(integer.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 1},
			casper.WithRandomInitialEstimates(nil))
		require.Error(t, err)
	})
}
