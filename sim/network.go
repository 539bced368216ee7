package sim

import (
	"context"
	"errors"
	"time"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/internal/measurements"
	"github.com/filecoin-project/go-casper/sim/latency"
	logging "github.com/ipfs/go-log/v2"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/xerrors"
)

var log = logging.Logger("casper/sim")

var (
	// ErrUnknownMessage signals that a message was propagated before the
	// network observed it being produced.
	ErrUnknownMessage = errors.New("message unknown to network")
	// ErrAlreadySeen signals that a validator was sent a message it already
	// has in its view.
	ErrAlreadySeen = errors.New("message already seen by validator")
)

// Network connects the validators of a run. It keeps a global view holding
// every message produced so far, and delivers messages to validators either
// immediately or after a latency sampled from its model.
//
// A Network is not safe for concurrent use.
type Network struct {
	validators *casper.ValidatorSet
	// global is the view of an observer that sees every produced message.
	global *casper.View
	// Messages sent but not yet delivered.
	queue   *messageQueue
	latency latency.Model
	// Timestamp of last event.
	clock time.Time
}

// NewNetwork creates a network over the validators of the given set. Only the
// latency and casper options apply.
func NewNetwork(validators *casper.ValidatorSet, o ...Option) (*Network, error) {
	opts, err := newOptions(o...)
	if err != nil {
		return nil, err
	}
	return newNetwork(validators, opts)
}

func newNetwork(validators *casper.ValidatorSet, opts *options) (*Network, error) {
	if validators == nil {
		return nil, xerrors.New("validator set cannot be nil")
	}
	global, err := casper.NewView(validators, nil, opts.casperOptions...)
	if err != nil {
		return nil, xerrors.Errorf("creating global view: %w", err)
	}
	return &Network{
		validators: validators,
		global:     global,
		queue:      newMessageQueue(),
		latency:    opts.latencyModel,
	}, nil
}

// Validators returns the validators connected by this network.
func (n *Network) Validators() *casper.ValidatorSet { return n.validators }

// GlobalView returns the view holding every message produced on the network.
func (n *Network) GlobalView() *casper.View { return n.global }

// Time returns the virtual time of the last delivery.
func (n *Network) Time() time.Time { return n.clock }

// Pending returns the number of messages sent but not yet delivered.
func (n *Network) Pending() int { return n.queue.Len() }

// GetMessageFromValidator asks the given validator to produce a new message
// and records it in the global view.
func (n *Network) GetMessageFromValidator(id casper.ValidatorID) (*casper.Message, error) {
	validator, err := n.validators.Get(id)
	if err != nil {
		return nil, xerrors.Errorf("producing message from %d: %w", id, err)
	}
	m, err := validator.ProduceMessage()
	if err != nil {
		return nil, err
	}
	if err := n.global.AddMessage(m); err != nil {
		return nil, xerrors.Errorf("recording %v in global view: %w", m, err)
	}
	metrics.produced.Add(context.Background(), 1)
	log.Debugw("message produced", "sender", id, "message", m, "height", m.Height())
	return m, nil
}

// Initialize has every validator produce its first message, in ascending
// order of ID, without sending it to anyone.
func (n *Network) Initialize() ([]*casper.Message, error) {
	initial := make([]*casper.Message, 0, n.validators.Len())
	for _, id := range n.validators.IDs() {
		m, err := n.GetMessageFromValidator(id)
		if err != nil {
			return nil, err
		}
		initial = append(initial, m)
	}
	return initial, nil
}

// PropagateMessageToValidator delivers m to the given validator immediately.
//
// Returns ErrUnknownMessage if the network never saw m produced, and
// ErrAlreadySeen if the validator already has m. In both cases the validator
// is left untouched.
func (n *Network) PropagateMessageToValidator(m *casper.Message, id casper.ValidatorID) (_err error) {
	defer func() {
		metrics.delivered.Add(context.Background(), 1,
			metric.WithAttributes(measurements.Status(_err, ErrAlreadySeen, ErrUnknownMessage, casper.ErrUnknownValidator)))
	}()
	if !n.global.Has(m) {
		return xerrors.Errorf("propagating %v: %w", m, ErrUnknownMessage)
	}
	validator, err := n.validators.Get(id)
	if err != nil {
		return xerrors.Errorf("propagating %v to %d: %w", m, id, err)
	}
	if validator.View().Has(m) {
		return xerrors.Errorf("propagating %v to %d: %w", m, id, ErrAlreadySeen)
	}
	return validator.ReceiveMessages(m)
}

// Send queues m for delivery to the given validator after a latency sampled
// from the network's model.
func (n *Network) Send(m *casper.Message, to casper.ValidatorID) error {
	if !n.global.Has(m) {
		return xerrors.Errorf("sending %v: %w", m, ErrUnknownMessage)
	}
	if !n.validators.Has(to) {
		return xerrors.Errorf("sending %v to %d: %w", m, to, casper.ErrUnknownValidator)
	}
	n.queue.Insert(&messageInFlight{
		source:    m.Sender(),
		dest:      to,
		payload:   m,
		deliverAt: n.clock.Add(n.latency.Sample(n.clock, m.Sender(), to)),
	})
	return nil
}

// Broadcast queues m for delivery to every validator other than its sender.
func (n *Network) Broadcast(m *casper.Message) error {
	for _, id := range n.validators.IDs() {
		if id == m.Sender() {
			continue
		}
		if err := n.Send(m, id); err != nil {
			return err
		}
	}
	return nil
}

// Tick delivers the earliest message in flight, advancing the clock to its
// delivery time. Messages the receiver has already seen are dropped. Returns
// whether any message remains in flight.
func (n *Network) Tick() (bool, error) {
	inFlight := n.queue.Remove()
	if inFlight == nil {
		return false, nil
	}
	if inFlight.deliverAt.After(n.clock) {
		n.clock = inFlight.deliverAt
	}
	switch err := n.PropagateMessageToValidator(inFlight.payload, inFlight.dest); {
	case errors.Is(err, ErrAlreadySeen):
		log.Debugw("dropped duplicate delivery", "from", inFlight.source, "to", inFlight.dest, "message", inFlight.payload)
	case err != nil:
		return false, xerrors.Errorf("delivering message from %d to %d: %w", inFlight.source, inFlight.dest, err)
	}
	return n.queue.Len() > 0, nil
}

// DeliverUntil delivers every message due at or before t, then advances the
// clock to t.
func (n *Network) DeliverUntil(t time.Time) error {
	for next := n.queue.Peek(); next != nil && !next.deliverAt.After(t); next = n.queue.Peek() {
		if _, err := n.Tick(); err != nil {
			return err
		}
	}
	if t.After(n.clock) {
		n.clock = t
	}
	return nil
}

// Drain delivers every message in flight.
func (n *Network) Drain() error {
	for n.queue.Len() > 0 {
		if _, err := n.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Inject records a message crafted outside of its sender's validator, such as
// by an adversary, in the global view so that it can be sent like any other.
func (n *Network) Inject(m *casper.Message) error {
	if m == nil {
		return casper.ErrNilMessage
	}
	if err := n.global.AddMessage(m); err != nil {
		return xerrors.Errorf("injecting %v: %w", m, err)
	}
	metrics.produced.Add(context.Background(), 1)
	log.Debugw("message injected", "sender", m.Sender(), "message", m)
	return nil
}
