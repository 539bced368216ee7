package adversary

import (
	"errors"
	"fmt"
	"slices"

	"github.com/filecoin-project/go-casper/casper"
)

// ErrNoFork signals that a Forker returned an estimate that does not conflict
// with the one it was given.
var ErrNoFork = errors.New("fork does not conflict with original")

// Forker derives an estimate that conflicts with the given one.
type Forker func(casper.Estimate) casper.Estimate

// Equivocate is an adversary that controls a validator and splits the network
// by sending each half a different message for the same sequence number.
//
// The controlled validator only keeps the first of each pair in its own view,
// so it keeps building on one side of the split.
type Equivocate struct {
	id   casper.ValidatorID
	host Host
	fork Forker
}

func NewEquivocate(id casper.ValidatorID, host Host, fork Forker) *Equivocate {
	return &Equivocate{
		id:   id,
		host: host,
		fork: fork,
	}
}

func (e *Equivocate) ID() casper.ValidatorID { return e.id }

// Split produces a message from the controlled validator along with a
// conflicting twin carrying the same justification and sequence number. The
// message is sent to the given validators and the twin to every other one.
//
// The twin is built and checked before the validator produces its message, so
// a failed split leaves the validator untouched.
func (e *Equivocate) Split(side []casper.ValidatorID) (one, twin *casper.Message, err error) {
	validator, err := e.host.Validators().Get(e.id)
	if err != nil {
		return nil, nil, err
	}
	if twin, err = e.twinOfNext(validator); err != nil {
		return nil, nil, err
	}
	if one, err = validator.ProduceMessage(); err != nil {
		return nil, nil, err
	}
	if one.SequenceNumber() != twin.SequenceNumber() {
		return nil, nil, fmt.Errorf("validator %d produced %v, not the message %v was forked from", e.id, one, twin)
	}

	for _, m := range []*casper.Message{one, twin} {
		if err := e.host.Inject(m); err != nil {
			return nil, nil, err
		}
	}
	for _, to := range e.host.Validators().IDs() {
		if to == e.id {
			continue
		}
		m := twin
		if slices.Contains(side, to) {
			m = one
		}
		if err := e.host.Send(m, to); err != nil {
			return nil, nil, err
		}
	}
	return one, twin, nil
}

// twinOfNext forks the message the validator would produce next.
func (e *Equivocate) twinOfNext(validator *casper.Validator) (*casper.Message, error) {
	view := validator.View()
	estimate, err := view.Estimate()
	if err != nil {
		return nil, err
	}
	if estimate == nil {
		estimate = validator.InitialEstimate()
	}
	justification, err := casper.NewJustificationFromLatest(view.LatestMessages())
	if err != nil {
		return nil, err
	}
	next, err := casper.NewMessage(view.Protocol(), estimate, justification, e.id, validator.NextSequenceNumber())
	if err != nil {
		return nil, err
	}
	twin, err := casper.NewMessage(view.Protocol(), e.fork(estimate), justification, e.id, next.SequenceNumber())
	if err != nil {
		return nil, fmt.Errorf("forking %v: %w", next, err)
	}
	if conflicts, err := next.ConflictsWith(twin); err != nil {
		return nil, err
	} else if !conflicts {
		return nil, fmt.Errorf("forking %v into %v: %w", next, twin, ErrNoFork)
	}
	return twin, nil
}
