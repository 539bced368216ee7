package casper

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/ipfs/go-cid"
)

// View is the set of messages known to one observer, along with the latest
// message of every validator derived from it.
//
// A View is mutated only through AddMessage, which is idempotent and
// monotonic: the latest message of a validator never moves to a lower
// sequence number. Every message in the view has its full dependency closure
// in the view too. A View is not safe for concurrent use; each one must be
// owned by a single logical thread of control.
type View struct {
	protocol   Protocol
	validators *ValidatorSet
	opts       *options
	oracle     *SafetyOracle

	messages map[cid.Cid]*Message
	// bySender holds each validator's messages in arrival order.
	bySender map[ValidatorID][]*Message
	// slots maps each (sender, sequence number) pair to the first message seen
	// for it. A second, different message for the same slot is an equivocation.
	slots        map[slot]cid.Cid
	latest       LatestMessages
	equivocators map[ValidatorID]struct{}

	lastFinalized      *Message
	lastFaultTolerance Weight
}

type slot struct {
	sender   ValidatorID
	sequence uint64
}

// NewView creates an empty view over the given validator set, such as the
// view of a global observer. Seed messages, if any, are added as if by
// AddMessage.
func NewView(validators *ValidatorSet, seed []*Message, o ...Option) (*View, error) {
	if validators == nil {
		return nil, fmt.Errorf("validator set cannot be nil")
	}
	opts, err := newOptions(o...)
	if err != nil {
		return nil, err
	}
	v := newView(validators.protocol, validators, opts)
	for _, m := range seed {
		if err := v.AddMessage(m); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func newView(protocol Protocol, validators *ValidatorSet, opts *options) *View {
	return &View{
		protocol:     protocol,
		validators:   validators,
		opts:         opts,
		oracle:       &SafetyOracle{opts: opts},
		messages:     make(map[cid.Cid]*Message),
		bySender:     make(map[ValidatorID][]*Message),
		slots:        make(map[slot]cid.Cid),
		latest:       make(LatestMessages),
		equivocators: make(map[ValidatorID]struct{}),
	}
}

// Protocol returns the protocol variant of this view.
func (v *View) Protocol() Protocol { return v.protocol }

// Validators returns the validator set this view weighs messages with.
func (v *View) Validators() *ValidatorSet { return v.validators }

// AddMessage records m along with every message it depends on. Adding a
// message that is already known is a no-op.
//
// The latest message of the sender moves to m if m has a higher sequence
// number. Two different messages from the same sender with the same sequence
// number mark the sender as equivocating.
//
// Returns an error, without modifying the view, if m belongs to another
// protocol or any message in its closure comes from an unknown validator.
func (v *View) AddMessage(m *Message) error {
	if m == nil {
		return ErrNilMessage
	}
	if m.protocol.Name() != v.protocol.Name() {
		return fmt.Errorf("%s message added to %s view: %w", m.protocol.Name(), v.protocol.Name(), ErrIncompatibleProtocols)
	}
	if v.Has(m) {
		return nil
	}
	var pending []*Message
	m.walkDependencies(v.Has, func(dep *Message) {
		pending = append(pending, dep)
	})
	for _, p := range pending {
		if p.protocol.Name() != v.protocol.Name() {
			return fmt.Errorf("dependency %v of %s protocol: %w", p, p.protocol.Name(), ErrIncompatibleProtocols)
		}
		if !v.validators.Has(p.sender) {
			return fmt.Errorf("sender of %v: %w", p, ErrUnknownValidator)
		}
	}
	for _, p := range pending {
		v.insert(p)
	}
	return nil
}

func (v *View) insert(m *Message) {
	v.messages[m.id] = m
	v.bySender[m.sender] = append(v.bySender[m.sender], m)

	key := slot{sender: m.sender, sequence: m.sequenceNumber}
	if prior, found := v.slots[key]; found {
		v.markEquivocating(m, prior)
	} else {
		v.slots[key] = m.id
	}

	if current, found := v.latest[m.sender]; !found || m.sequenceNumber > current.sequenceNumber {
		v.latest[m.sender] = m
	}
	metrics.messagesAdded.Add(context.Background(), 1, attrProtocol(v.protocol))
	v.opts.tracer.Log("view added %v", m)
}

func (v *View) markEquivocating(m *Message, prior cid.Cid) {
	if _, already := v.equivocators[m.sender]; already {
		return
	}
	v.equivocators[m.sender] = struct{}{}
	metrics.equivocations.Add(context.Background(), 1, attrProtocol(v.protocol))
	log.Warnw("equivocation detected", "sender", m.sender, "sequence", m.sequenceNumber,
		"first", prior, "second", m.id)
}

// Has checks whether the view contains a message equal to m.
func (v *View) Has(m *Message) bool {
	if m == nil {
		return false
	}
	_, found := v.messages[m.id]
	return found
}

// Get returns the message with the given identifier, if known.
func (v *View) Get(id cid.Cid) (*Message, bool) {
	m, found := v.messages[id]
	return m, found
}

// Len returns the number of messages in the view.
func (v *View) Len() int { return len(v.messages) }

// Messages returns every message in the view, ordered by height, sender,
// sequence number and identifier.
func (v *View) Messages() []*Message {
	all := make([]*Message, 0, len(v.messages))
	for _, m := range v.messages {
		all = append(all, m)
	}
	slices.SortFunc(all, compareMessages)
	return all
}

// MessagesFrom returns the messages of one validator in ascending order of
// sequence number. Equivocating messages share a sequence number and are
// ordered by identifier.
func (v *View) MessagesFrom(id ValidatorID) []*Message {
	msgs := slices.Clone(v.bySender[id])
	slices.SortFunc(msgs, compareMessages)
	return msgs
}

// LatestMessages returns a copy of the latest message of every validator seen,
// equivocating validators included.
func (v *View) LatestMessages() LatestMessages {
	return maps.Clone(v.latest)
}

// LatestMessage returns the latest message of the given validator, or nil.
func (v *View) LatestMessage(id ValidatorID) *Message {
	return v.latest[id]
}

// LatestHonestMessages returns the latest message of every validator that has
// not been seen equivocating. Equivocating validators carry no information
// for estimates and agreement.
func (v *View) LatestHonestMessages() LatestMessages {
	honest := make(LatestMessages, len(v.latest))
	for id, m := range v.latest {
		if _, equivocating := v.equivocators[id]; !equivocating {
			honest[id] = m
		}
	}
	return honest
}

// IsEquivocating checks whether the given validator has been seen
// equivocating.
func (v *View) IsEquivocating(id ValidatorID) bool {
	_, found := v.equivocators[id]
	return found
}

// Equivocators returns the validators seen equivocating in ascending order.
func (v *View) Equivocators() []ValidatorID {
	ids := make([]ValidatorID, 0, len(v.equivocators))
	for id := range v.equivocators {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Estimate returns the current fork-choice of the view. A view without any
// honest latest message has no estimate, signalled by a nil estimate and nil
// error.
func (v *View) Estimate() (Estimate, error) {
	honest := v.LatestHonestMessages()
	if len(honest) == 0 {
		return nil, nil
	}
	return v.protocol.Estimate(honest, v.validators)
}

// LastFinalized returns the last message found safe by UpdateSafeEstimates and
// its fault tolerance, or nil if none has been found.
func (v *View) LastFinalized() (*Message, Weight) {
	return v.lastFinalized, v.lastFaultTolerance
}

// UpdateSafeEstimates runs the safety oracle over candidate messages and
// records the first one found safe as finalized. It returns the last finalized
// message, which is nil if no message has ever been found safe.
//
// For a ChainProtocol the candidates are the chain of the current estimate,
// from its head down to the last finalized message or its ancestors, so that
// the most recent safe message is finalized. Otherwise the candidates are the
// latest honest message of each validator, in ascending order of ID.
//
// Returns ErrFinalityReverted if a message is found safe that conflicts with
// the previously finalized message. The view is left unchanged in that case.
func (v *View) UpdateSafeEstimates() (*Message, error) {
	candidates, chained, err := v.finalityCandidates()
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if chained && v.isFinalizedAncestor(candidate) {
			break
		}
		result, err := v.oracle.CheckEstimateSafety(candidate, v, v.validators)
		if err != nil {
			return nil, err
		}
		if !result.IsSafe() {
			continue
		}
		if v.lastFinalized != nil && v.protocol.Conflicts(v.lastFinalized, candidate) {
			return nil, fmt.Errorf("%v found safe after %v: %w", candidate, v.lastFinalized, ErrFinalityReverted)
		}
		if !candidate.Equal(v.lastFinalized) {
			metrics.finalizations.Add(context.Background(), 1, attrProtocol(v.protocol))
			v.opts.tracer.Log("finalized %v with fault tolerance %d", candidate, result.FaultTolerance)
		}
		v.lastFinalized = candidate
		v.lastFaultTolerance = result.FaultTolerance
		break
	}
	return v.lastFinalized, nil
}

// isFinalizedAncestor checks whether a chain candidate is the last finalized
// message or one it builds on.
func (v *View) isFinalizedAncestor(candidate *Message) bool {
	return v.lastFinalized != nil &&
		candidate.height <= v.lastFinalized.height &&
		!v.protocol.Conflicts(v.lastFinalized, candidate)
}

func (v *View) finalityCandidates() (candidates []*Message, chained bool, err error) {
	if chain, ok := v.protocol.(ChainProtocol); ok {
		estimate, err := v.Estimate()
		if err != nil || estimate == nil {
			return nil, true, err
		}
		return chain.FinalityCandidates(estimate), true, nil
	}
	latest := v.LatestHonestMessages()
	candidates = make([]*Message, 0, len(latest))
	for _, id := range latest.Senders() {
		candidates = append(candidates, latest[id])
	}
	return candidates, false, nil
}
