package casper

import (
	"fmt"
	"slices"
)

// Validator is a weighted participant. It owns a View, which only it mutates,
// and the sequence counter of the messages it produces.
type Validator struct {
	id              ValidatorID
	weight          Weight
	view            *View
	nextSequence    uint64
	initialEstimate Estimate
}

func (v *Validator) ID() ValidatorID { return v.id }
func (v *Validator) Weight() Weight  { return v.weight }
func (v *Validator) View() *View     { return v.view }

// NextSequenceNumber returns the sequence number the next produced message
// will carry.
func (v *Validator) NextSequenceNumber() uint64 { return v.nextSequence }

// InitialEstimate returns the estimate the validator votes for while its view
// yields none.
func (v *Validator) InitialEstimate() Estimate { return v.initialEstimate }

// LatestMessage returns the latest message produced by this validator as seen
// by its own view, or nil if it has produced none.
func (v *Validator) LatestMessage() *Message {
	return v.view.LatestMessage(v.id)
}

// ProduceMessage creates a new message voting for the current estimate of the
// validator's view, justified by the view's latest messages, and records it in
// the view. No other validator's state is touched.
func (v *Validator) ProduceMessage() (*Message, error) {
	estimate, err := v.view.Estimate()
	if err != nil {
		return nil, fmt.Errorf("validator %d failed to compute estimate: %w", v.id, err)
	}
	if estimate == nil {
		estimate = v.initialEstimate
	}
	justification, err := NewJustificationFromLatest(v.view.LatestMessages())
	if err != nil {
		return nil, err
	}
	m, err := NewMessage(v.view.protocol, estimate, justification, v.id, v.nextSequence)
	if err != nil {
		return nil, fmt.Errorf("validator %d failed to produce message: %w", v.id, err)
	}
	if err := v.view.AddMessage(m); err != nil {
		return nil, err
	}
	v.nextSequence++
	v.view.opts.tracer.Log("P%d produced %v", v.id, m)
	return m, nil
}

// ReceiveMessages adds messages, along with everything they depend on, to the
// validator's view.
func (v *Validator) ReceiveMessages(messages ...*Message) error {
	for _, m := range messages {
		if err := v.view.AddMessage(m); err != nil {
			return fmt.Errorf("validator %d failed to receive %v: %w", v.id, m, err)
		}
	}
	return nil
}

// UpdateSafeEstimates checks the validator's latest view for a newly safe
// estimate. See View.UpdateSafeEstimates.
func (v *Validator) UpdateSafeEstimates() (*Message, error) {
	return v.view.UpdateSafeEstimates()
}

func (v *Validator) String() string {
	return fmt.Sprintf("validator-%d(%d)", v.id, v.weight)
}

// ValidatorSet is the fixed set of validators of a run. Validators are
// iterated in ascending order of ID, which makes every fork-choice tie-break
// that depends on iteration order deterministic.
type ValidatorSet struct {
	protocol Protocol
	lookup   map[ValidatorID]int
	sorted   []*Validator
	total    Weight
}

// NewValidatorSet creates a validator per entry of weights, each with its own
// empty view of the given protocol.
//
// Each weight must be larger than zero. Options configure initial estimates
// and the safety oracle used by every view.
func NewValidatorSet(protocol Protocol, weights map[ValidatorID]Weight, o ...Option) (*ValidatorSet, error) {
	if protocol == nil {
		return nil, fmt.Errorf("protocol cannot be nil")
	}
	opts, err := newOptions(o...)
	if err != nil {
		return nil, err
	}
	ids := make([]ValidatorID, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	vs := &ValidatorSet{
		protocol: protocol,
		lookup:   make(map[ValidatorID]int, len(ids)),
		sorted:   make([]*Validator, 0, len(ids)),
	}
	for _, id := range ids {
		if err := vs.add(id, weights[id]); err != nil {
			return nil, err
		}
	}
	for _, v := range vs.sorted {
		if estimate, found := opts.initialEstimates[v.id]; found {
			v.initialEstimate = estimate
		} else {
			v.initialEstimate = protocol.InitialEstimate(opts.rng)
		}
		if err := protocol.ValidateEstimate(v.initialEstimate); err != nil {
			return nil, fmt.Errorf("initial estimate of validator %d: %w", v.id, err)
		}
		v.view = newView(protocol, vs, opts)
	}
	for id := range opts.initialEstimates {
		if !vs.Has(id) {
			return nil, fmt.Errorf("initial estimate for validator %d: %w", id, ErrUnknownValidator)
		}
	}
	return vs, nil
}

func (vs *ValidatorSet) add(id ValidatorID, weight Weight) error {
	switch {
	case vs.Has(id):
		return fmt.Errorf("validator %d: %w", id, ErrDuplicateValidator)
	case weight <= 0:
		return fmt.Errorf("validator %d has weight %d: %w", id, weight, ErrInvalidWeight)
	}
	vs.sorted = append(vs.sorted, &Validator{id: id, weight: weight})
	vs.lookup[id] = len(vs.sorted) - 1
	vs.total += weight
	return nil
}

// Protocol returns the protocol shared by every view in the set.
func (vs *ValidatorSet) Protocol() Protocol { return vs.protocol }

// Get returns the validator with the given ID.
func (vs *ValidatorSet) Get(id ValidatorID) (*Validator, error) {
	if index, found := vs.lookup[id]; found {
		return vs.sorted[index], nil
	}
	return nil, fmt.Errorf("validator %d: %w", id, ErrUnknownValidator)
}

// Has checks whether the set contains a validator with the given ID.
func (vs *ValidatorSet) Has(id ValidatorID) bool {
	_, found := vs.lookup[id]
	return found
}

// WeightOf returns the weight of the given validator, or zero if absent.
func (vs *ValidatorSet) WeightOf(id ValidatorID) Weight {
	if index, found := vs.lookup[id]; found {
		return vs.sorted[index].weight
	}
	return 0
}

// Index returns the position of the validator in sorted order.
func (vs *ValidatorSet) Index(id ValidatorID) (int, bool) {
	index, found := vs.lookup[id]
	return index, found
}

// TotalWeight returns the summed weight of all validators.
func (vs *ValidatorSet) TotalWeight() Weight { return vs.total }

// Len returns the number of validators.
func (vs *ValidatorSet) Len() int { return len(vs.sorted) }

// Sorted returns the validators in ascending order of ID.
func (vs *ValidatorSet) Sorted() []*Validator { return slices.Clone(vs.sorted) }

// IDs returns the validator IDs in ascending order.
func (vs *ValidatorSet) IDs() []ValidatorID {
	ids := make([]ValidatorID, len(vs.sorted))
	for i, v := range vs.sorted {
		ids[i] = v.id
	}
	return ids
}

// WeightOfSet sums the weight of the given validators, ignoring unknown ones.
func (vs *ValidatorSet) WeightOfSet(ids ...ValidatorID) Weight {
	var total Weight
	for _, id := range ids {
		total += vs.WeightOf(id)
	}
	return total
}

// Validate checks the internal consistency of the set:
// * validators are in ascending order of ID, without duplicates;
// * every weight is larger than zero;
// * the lookup index matches the sorted order;
// * the cached total matches the sum of weights.
func (vs *ValidatorSet) Validate() error {
	if len(vs.sorted) != len(vs.lookup) {
		return fmt.Errorf("inconsistent validators and lookup map")
	}
	var total Weight
	for index, v := range vs.sorted {
		if lookupIndex, found := vs.lookup[v.id]; !found || index != lookupIndex {
			return fmt.Errorf("lookup index does not match validators for ID: %d", v.id)
		}
		if v.weight <= 0 {
			return fmt.Errorf("validator %d: %w", v.id, ErrInvalidWeight)
		}
		if index > 0 && vs.sorted[index-1].id >= v.id {
			return fmt.Errorf("validator not in order at index: %d", index)
		}
		total += v.weight
	}
	if total != vs.total {
		return fmt.Errorf("total weight does not match validators")
	}
	return nil
}
