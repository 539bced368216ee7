package casper

import (
	"errors"
	"math/rand"
)

const defaultMaxCliqueSearchSteps = 1 << 20

// Option represents a configurable parameter.
type Option func(*options) error

type options struct {
	// rng seeds the initial estimate of each validator. A nil rng leaves every
	// validator with the protocol's deterministic default.
	rng              *rand.Rand
	initialEstimates map[ValidatorID]Estimate

	mutualVisibility     bool
	maxCliqueSearchSteps int

	// tracer traces logic logs for debugging and simulation purposes.
	tracer Tracer
}

func newOptions(o ...Option) (*options, error) {
	opts := &options{
		maxCliqueSearchSteps: defaultMaxCliqueSearchSteps,
		tracer:               noopTracer{},
	}
	for _, apply := range o {
		if err := apply(opts); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// WithRandomInitialEstimates draws the initial estimate of every validator
// from the protocol using the given source of randomness. Defaults to the
// protocol's deterministic initial estimate if unset.
func WithRandomInitialEstimates(rng *rand.Rand) Option {
	return func(o *options) error {
		if rng == nil {
			return errors.New("random source cannot be nil")
		}
		o.rng = rng
		return nil
	}
}

// WithInitialEstimate sets the estimate a validator votes for while its view
// yields no estimate of its own. It takes precedence over
// WithRandomInitialEstimates.
func WithInitialEstimate(id ValidatorID, estimate Estimate) Option {
	return func(o *options) error {
		if estimate == nil {
			return errors.New("initial estimate cannot be nil")
		}
		if o.initialEstimates == nil {
			o.initialEstimates = make(map[ValidatorID]Estimate)
		}
		o.initialEstimates[id] = estimate
		return nil
	}
}

// WithMutualVisibility makes the safety oracle connect two validators only if
// each has seen the other agree with the candidate, and the view holds no
// later disagreeing message from either. Disabled by default.
func WithMutualVisibility(enabled bool) Option {
	return func(o *options) error {
		o.mutualVisibility = enabled
		return nil
	}
}

// WithMaxCliqueSearchSteps bounds the number of search frames the safety
// oracle explores. Once exceeded, the best clique found so far is reported and
// the result is marked approximate. Zero disables the bound. Defaults to 2^20.
func WithMaxCliqueSearchSteps(steps int) Option {
	return func(o *options) error {
		if steps < 0 {
			return errors.New("clique search steps cannot be negative")
		}
		o.maxCliqueSearchSteps = steps
		return nil
	}
}

// WithTracer sets the Tracer which receives diagnostic logs about view
// mutation and safety checks. Defaults to no tracer if unspecified.
func WithTracer(t Tracer) Option {
	return func(o *options) error {
		if t == nil {
			return errors.New("tracer cannot be nil")
		}
		o.tracer = t
		return nil
	}
}
