package sim

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/filecoin-project/go-casper/casper"
	"golang.org/x/xerrors"
)

// Simulation drives validators through rounds of message production and
// delivery over a Network, recording what each of them finalizes.
type Simulation struct {
	opts       *options
	rng        *rand.Rand
	validators *casper.ValidatorSet
	network    *Network
	finality   *FinalityLog
	round      int
}

// NewSimulation creates a validator per entry of weights, all running the
// given protocol and connected by a network.
func NewSimulation(protocol casper.Protocol, weights map[casper.ValidatorID]casper.Weight, o ...Option) (*Simulation, error) {
	opts, err := newOptions(o...)
	if err != nil {
		return nil, err
	}
	casperOpts := opts.casperOptions
	if opts.randomEstimates {
		casperOpts = append([]casper.Option{casper.WithRandomInitialEstimates(rand.New(rand.NewSource(opts.seed)))}, casperOpts...)
	}
	validators, err := casper.NewValidatorSet(protocol, weights, casperOpts...)
	if err != nil {
		return nil, xerrors.Errorf("creating validators: %w", err)
	}
	network, err := newNetwork(validators, opts)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		opts:       opts,
		rng:        rand.New(rand.NewSource(opts.seed)),
		validators: validators,
		network:    network,
		finality:   NewFinalityLog(validators),
	}, nil
}

func (s *Simulation) Network() *Network                { return s.network }
func (s *Simulation) Validators() *casper.ValidatorSet { return s.validators }
func (s *Simulation) FinalityLog() *FinalityLog        { return s.finality }

// Round returns the number of rounds run so far.
func (s *Simulation) Round() int { return s.round }

// Run runs the given number of rounds. Each round produces and sends messages
// according to the simulation mode, delivers everything due within the round
// interval and then has every validator update its safe estimates.
//
// Returns the first error encountered, including conflicting finalizations.
func (s *Simulation) Run(rounds int) error {
	for i := 0; i < rounds; i++ {
		if err := s.step(); err != nil {
			return xerrors.Errorf("round %d: %w", s.round, err)
		}
		if err := s.network.DeliverUntil(s.network.Time().Add(s.opts.roundInterval)); err != nil {
			return xerrors.Errorf("round %d: %w", s.round, err)
		}
		for _, v := range s.validators.Sorted() {
			if _, err := s.finality.Record(s.round, v); err != nil {
				return xerrors.Errorf("round %d: %w", s.round, err)
			}
		}
		s.round++
	}
	return s.finality.Verify()
}

func (s *Simulation) step() error {
	ids := s.validators.IDs()
	switch s.opts.mode {
	case RoundRobin:
		sender, receiver := ids[s.round%len(ids)], ids[(s.round+1)%len(ids)]
		return s.produceAndSend(sender, receiver)
	case Random:
		sender := ids[s.rng.Intn(len(ids))]
		receiver := sender
		if len(ids) > 1 {
			for receiver == sender {
				receiver = ids[s.rng.Intn(len(ids))]
			}
		}
		return s.produceAndSend(sender, receiver)
	case Full:
		produced := make([]*casper.Message, 0, len(ids))
		for _, id := range ids {
			m, err := s.network.GetMessageFromValidator(id)
			if err != nil {
				return err
			}
			produced = append(produced, m)
		}
		for _, m := range produced {
			if err := s.network.Broadcast(m); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown message mode: %d", s.opts.mode)
	}
}

func (s *Simulation) produceAndSend(sender, receiver casper.ValidatorID) error {
	m, err := s.network.GetMessageFromValidator(sender)
	if err != nil {
		return err
	}
	if receiver == sender {
		return nil
	}
	return s.network.Send(m, receiver)
}

// Describe summarises the latest message and last finalized message of every
// validator.
func (s *Simulation) Describe() string {
	var b strings.Builder
	for _, v := range s.validators.Sorted() {
		fmt.Fprintf(&b, "%v latest %v finalized %v\n", v, v.LatestMessage(), s.finality.Finalized(v.ID()))
	}
	return b.String()
}
