package sim_test

import (
	"testing"
	"time"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/protocol/integer"
	"github.com/filecoin-project/go-casper/sim"
	"github.com/filecoin-project/go-casper/sim/latency"
	"github.com/stretchr/testify/require"
)

func newTestNetwork(t *testing.T, o ...sim.Option) *sim.Network {
	validators, err := casper.NewValidatorSet(integer.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 10, 1: 11, 2: 12})
	require.NoError(t, err)
	network, err := sim.NewNetwork(validators, o...)
	require.NoError(t, err)
	return network
}

func TestNetwork_GetMessageFromValidator(t *testing.T) {
	subject := newTestNetwork(t)

	_, err := subject.GetMessageFromValidator(42)
	require.ErrorIs(t, err, casper.ErrUnknownValidator)
	require.Zero(t, subject.GlobalView().Len())

	m, err := subject.GetMessageFromValidator(1)
	require.NoError(t, err)
	require.Equal(t, casper.ValidatorID(1), m.Sender())
	require.True(t, subject.GlobalView().Has(m))

	validator, err := subject.Validators().Get(1)
	require.NoError(t, err)
	require.True(t, m.Equal(validator.LatestMessage()))
	require.Equal(t, uint64(1), validator.NextSequenceNumber())
}

func TestNetwork_PropagateMessageToValidator(t *testing.T) {
	subject := newTestNetwork(t)
	m, err := subject.GetMessageFromValidator(0)
	require.NoError(t, err)

	t.Run("delivers once", func(t *testing.T) {
		require.NoError(t, subject.PropagateMessageToValidator(m, 1))
		receiver, err := subject.Validators().Get(1)
		require.NoError(t, err)
		require.True(t, receiver.View().Has(m))

		require.ErrorIs(t, subject.PropagateMessageToValidator(m, 1), sim.ErrAlreadySeen)
	})
	t.Run("sender has already seen own message", func(t *testing.T) {
		require.ErrorIs(t, subject.PropagateMessageToValidator(m, 0), sim.ErrAlreadySeen)
	})
	t.Run("unknown validator", func(t *testing.T) {
		require.ErrorIs(t, subject.PropagateMessageToValidator(m, 42), casper.ErrUnknownValidator)
	})
	t.Run("unknown message", func(t *testing.T) {
		unseen, err := casper.NewMessage(integer.Protocol{}, integer.Estimate(7), casper.Justification{}, 2, 0)
		require.NoError(t, err)
		require.ErrorIs(t, subject.PropagateMessageToValidator(unseen, 1), sim.ErrUnknownMessage)
		receiver, err := subject.Validators().Get(1)
		require.NoError(t, err)
		require.False(t, receiver.View().Has(unseen))
	})
}

func TestNetwork_BroadcastAndDrain(t *testing.T) {
	lm, err := latency.NewLogNormal(1413, 100*time.Millisecond)
	require.NoError(t, err)
	subject := newTestNetwork(t, sim.WithLatencyModel(lm))

	m, err := subject.GetMessageFromValidator(2)
	require.NoError(t, err)
	require.NoError(t, subject.Broadcast(m))
	require.Equal(t, 2, subject.Pending())

	require.NoError(t, subject.Drain())
	require.Zero(t, subject.Pending())
	require.True(t, subject.Time().After(time.Time{}))
	for _, v := range subject.Validators().Sorted() {
		require.True(t, v.View().Has(m), "validator %d", v.ID())
	}
}

func TestNetwork_DeliverUntil(t *testing.T) {
	subject := newTestNetwork(t)
	m, err := subject.GetMessageFromValidator(0)
	require.NoError(t, err)
	require.NoError(t, subject.Send(m, 1))
	require.NoError(t, subject.Send(m, 1))

	deadline := time.Time{}.Add(time.Second)
	require.NoError(t, subject.DeliverUntil(deadline))
	require.Zero(t, subject.Pending())
	require.Equal(t, deadline, subject.Time())

	receiver, err := subject.Validators().Get(1)
	require.NoError(t, err)
	require.True(t, receiver.View().Has(m))
}

func TestNetwork_SendRejectsUnknown(t *testing.T) {
	subject := newTestNetwork(t)
	m, err := subject.GetMessageFromValidator(0)
	require.NoError(t, err)
	require.ErrorIs(t, subject.Send(m, 42), casper.ErrUnknownValidator)

	unseen, err := casper.NewMessage(integer.Protocol{}, integer.Estimate(3), casper.Justification{}, 1, 0)
	require.NoError(t, err)
	require.ErrorIs(t, subject.Send(unseen, 0), sim.ErrUnknownMessage)
	require.Zero(t, subject.Pending())
}

func TestNetwork_Initialize(t *testing.T) {
	subject := newTestNetwork(t)
	initial, err := subject.Initialize()
	require.NoError(t, err)
	require.Len(t, initial, 3)
	for i, m := range initial {
		require.Equal(t, casper.ValidatorID(i), m.Sender())
		require.True(t, m.IsGenesis())
		require.Equal(t, uint64(1), m.Height())
		validator, err := subject.Validators().Get(m.Sender())
		require.NoError(t, err)
		require.Equal(t, 1, validator.View().Len())
	}
	require.Equal(t, 3, subject.GlobalView().Len())
	require.Zero(t, subject.Pending())
}
