package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/sim/latency"
)

const (
	defaultSeed          = 0x264803e715714f95 // Seed from Drand.
	defaultRoundInterval = time.Second
)

// Mode selects which validators produce messages in a simulation round and
// who receives them.
type Mode int

const (
	// RoundRobin has one validator per round produce a message, in ascending
	// order of ID, and send it to the next validator.
	RoundRobin Mode = iota
	// Random has a randomly chosen validator produce a message and send it to
	// another randomly chosen validator.
	Random
	// Full has every validator produce a message and broadcast it to all
	// others.
	Full
)

func (m Mode) String() string {
	switch m {
	case RoundRobin:
		return "rrob"
	case Random:
		return "rand"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// ParseMode parses the short name of a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{RoundRobin, Random, Full} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown message mode: %q", s)
}

// Option represents a configurable parameter.
type Option func(*options) error

type options struct {
	// latencyModel models the cross validator communication latency
	// throughout a simulation.
	latencyModel latency.Model
	// roundInterval is the virtual time that passes between rounds.
	roundInterval time.Duration
	mode          Mode
	seed          int64
	// randomEstimates draws initial estimates from the protocol using seed.
	randomEstimates bool
	casperOptions   []casper.Option
}

func newOptions(o ...Option) (*options, error) {
	opts := &options{
		latencyModel:  latency.None,
		roundInterval: defaultRoundInterval,
		mode:          RoundRobin,
		seed:          defaultSeed,
	}
	for _, apply := range o {
		if err := apply(opts); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// WithLatencyModel sets the latency of messages sent through the network.
// Defaults to latency.None if unset.
func WithLatencyModel(lm latency.Model) Option {
	return func(o *options) error {
		if lm == nil {
			return errors.New("latency model cannot be nil")
		}
		o.latencyModel = lm
		return nil
	}
}

// WithRoundInterval sets the virtual time between simulation rounds. Messages
// whose latency exceeds it are delivered in a later round. Defaults to 1s.
func WithRoundInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("round interval must be larger than zero")
		}
		o.roundInterval = d
		return nil
	}
}

// WithMode sets the message mode of a simulation. Defaults to RoundRobin.
func WithMode(m Mode) Option {
	return func(o *options) error {
		switch m {
		case RoundRobin, Random, Full:
			o.mode = m
			return nil
		default:
			return fmt.Errorf("unknown message mode: %d", m)
		}
	}
}

// WithSeed sets the seed of the simulation's source of randomness.
func WithSeed(seed int64) Option {
	return func(o *options) error {
		o.seed = seed
		return nil
	}
}

// WithRandomInitialEstimates makes every validator start from an initial
// estimate drawn from the protocol using the simulation seed.
func WithRandomInitialEstimates() Option {
	return func(o *options) error {
		o.randomEstimates = true
		return nil
	}
}

// WithCasperOptions sets the options applied to the validator set and every
// view of the simulation.
func WithCasperOptions(opts ...casper.Option) Option {
	return func(o *options) error {
		o.casperOptions = append(o.casperOptions, opts...)
		return nil
	}
}
