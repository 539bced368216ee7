package sim

import (
	"errors"
	"fmt"

	"github.com/Kubuxu/go-broadcast"
	"github.com/filecoin-project/go-casper/casper"
	"golang.org/x/xerrors"
)

// ErrSafetyViolation signals that two validators finalized conflicting
// messages.
var ErrSafetyViolation = errors.New("validators finalized conflicting messages")

// FinalityEvent records a validator finding a new message safe.
type FinalityEvent struct {
	Round          int
	Validator      casper.ValidatorID
	Message        *casper.Message
	FaultTolerance casper.Weight
}

func (e *FinalityEvent) String() string {
	return fmt.Sprintf("round %d: P%d finalized %v with fault tolerance %d", e.Round, e.Validator, e.Message, e.FaultTolerance)
}

// FinalityLog collects the messages finalized by each validator throughout a
// run and checks them against each other.
type FinalityLog struct {
	validators *casper.ValidatorSet
	// finalized holds the last message finalized by each validator.
	finalized map[casper.ValidatorID]*casper.Message
	events    []*FinalityEvent
	bus       broadcast.Channel[*FinalityEvent]
	err       error
}

func NewFinalityLog(validators *casper.ValidatorSet) *FinalityLog {
	return &FinalityLog{
		validators: validators,
		finalized:  make(map[casper.ValidatorID]*casper.Message),
	}
}

// Record asks the validator to update its safe estimates and logs the result.
// Returns the event if the validator finalized a message it had not
// finalized before, or nil otherwise.
//
// The first error encountered is retained and reported by Verify.
func (fl *FinalityLog) Record(round int, validator *casper.Validator) (*FinalityEvent, error) {
	m, err := validator.UpdateSafeEstimates()
	if err != nil {
		fl.fail(xerrors.Errorf("P%d in round %d: %w", validator.ID(), round, err))
		return nil, err
	}
	if m == nil || m.Equal(fl.finalized[validator.ID()]) {
		return nil, nil
	}
	for _, other := range fl.validators.IDs() {
		prior, found := fl.finalized[other]
		if !found || other == validator.ID() {
			continue
		}
		conflicting, err := m.ConflictsWith(prior)
		if err != nil {
			err := xerrors.Errorf("P%d finalized %v, comparing with P%d: %w", validator.ID(), m, other, err)
			fl.fail(err)
			return nil, err
		}
		if conflicting {
			err := xerrors.Errorf("P%d finalized %v but P%d finalized %v: %w", validator.ID(), m, other, prior, ErrSafetyViolation)
			fl.fail(err)
			return nil, err
		}
	}
	fl.finalized[validator.ID()] = m
	_, tolerance := validator.View().LastFinalized()
	event := &FinalityEvent{
		Round:          round,
		Validator:      validator.ID(),
		Message:        m,
		FaultTolerance: tolerance,
	}
	fl.events = append(fl.events, event)
	fl.bus.Publish(event)
	log.Infow("finalized", "round", round, "validator", validator.ID(), "message", m, "faultTolerance", tolerance)
	return event, nil
}

func (fl *FinalityLog) fail(err error) {
	if fl.err == nil {
		fl.err = err
	}
	log.Errorw("finality check failed", "err", err)
}

// Finalized returns the last message finalized by the given validator, or nil.
func (fl *FinalityLog) Finalized(id casper.ValidatorID) *casper.Message {
	return fl.finalized[id]
}

// Events returns every finality event recorded so far, in order.
func (fl *FinalityLog) Events() []*FinalityEvent {
	return append([]*FinalityEvent(nil), fl.events...)
}

// Subscribe registers ch to receive finality events as they are recorded.
// If ch is full at any point it is dropped from the subscription and closed.
// Returns the last event recorded, if any, and a function to stop the
// subscription.
func (fl *FinalityLog) Subscribe(ch chan<- *FinalityEvent) (last *FinalityEvent, closer func()) {
	return fl.bus.Subscribe(ch)
}

// Verify returns the first error recorded, if any.
func (fl *FinalityLog) Verify() error {
	return fl.err
}
