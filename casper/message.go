package casper

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
)

// Message is the immutable unit of consensus: a vote for an estimate, backed
// by a justification of the latest messages its sender had seen.
//
// Messages are identified by content. Two messages are Equal if they share
// protocol, sender, sequence number, estimate and justification, regardless of
// whether they are the same pointer.
type Message struct {
	protocol       Protocol
	estimate       Estimate
	justification  Justification
	sender         ValidatorID
	sequenceNumber uint64
	height         uint64
	id             cid.Cid
}

// NewMessage validates the estimate against the protocol, derives the message
// height and identity, and returns the new message.
func NewMessage(protocol Protocol, estimate Estimate, justification Justification, sender ValidatorID, sequenceNumber uint64) (*Message, error) {
	if protocol == nil {
		return nil, fmt.Errorf("protocol cannot be nil: %w", ErrInvalidEstimate)
	}
	if estimate == nil {
		return nil, fmt.Errorf("%s: nil estimate: %w", protocol.Name(), ErrInvalidEstimate)
	}
	if err := protocol.ValidateEstimate(estimate); err != nil {
		return nil, err
	}
	for id, m := range justification.latest {
		switch {
		case m == nil:
			return nil, ErrNilMessage
		case m.sender != id:
			return nil, fmt.Errorf("message from %d cited for %d: %w", m.sender, id, ErrJustificationSenderMismatch)
		case m.protocol.Name() != protocol.Name():
			return nil, fmt.Errorf("%s message cites %s message: %w", protocol.Name(), m.protocol.Name(), ErrIncompatibleProtocols)
		}
	}
	m := &Message{
		protocol:       protocol,
		estimate:       estimate,
		justification:  justification.clone(),
		sender:         sender,
		sequenceNumber: sequenceNumber,
		height:         protocol.Height(estimate, justification),
	}
	id, err := m.identify()
	if err != nil {
		return nil, fmt.Errorf("failed to derive message identity: %w", err)
	}
	m.id = id
	return m, nil
}

func (m *Message) Protocol() Protocol           { return m.protocol }
func (m *Message) Estimate() Estimate           { return m.estimate }
func (m *Message) Justification() Justification { return m.justification }
func (m *Message) Sender() ValidatorID          { return m.sender }
func (m *Message) SequenceNumber() uint64       { return m.sequenceNumber }
func (m *Message) Height() uint64               { return m.height }

// ID returns the content identifier of the message.
func (m *Message) ID() cid.Cid { return m.id }

// IsGenesis checks whether the message cites no other message.
func (m *Message) IsGenesis() bool { return m.justification.IsZero() }

// Equal compares two messages by content. Two nil messages are equal.
func (m *Message) Equal(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.id.Equals(other.id)
}

// ConflictsWith reports whether the estimates of the two messages disagree,
// according to their protocol. Returns ErrIncompatibleProtocols if the
// messages belong to different protocol variants.
func (m *Message) ConflictsWith(other *Message) (bool, error) {
	if m == nil || other == nil {
		return false, ErrNilMessage
	}
	if m.protocol.Name() != other.protocol.Name() {
		return false, fmt.Errorf("%s vs %s: %w", m.protocol.Name(), other.protocol.Name(), ErrIncompatibleProtocols)
	}
	return m.protocol.Conflicts(m, other), nil
}

// Clone returns a deep copy of the message. The copy owns its justification
// mapping and estimate, shares the immutable messages they cite, and is Equal
// to the original.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	replica := *m
	replica.justification = m.justification.clone()
	if cloner, ok := m.estimate.(EstimateCloner); ok {
		replica.estimate = cloner.CloneEstimate()
	}
	return &replica
}

// Dependencies returns the transitive closure of the messages this message
// depends on through its justification and estimate, excluding itself. Every
// message appears after all of its own dependencies.
func (m *Message) Dependencies() []*Message {
	var deps []*Message
	m.walkDependencies(nil, func(dep *Message) {
		if dep != m {
			deps = append(deps, dep)
		}
	})
	return deps
}

// walkDependencies visits m and its dependencies in post-order, i.e. each
// message after everything it depends on. Messages for which known returns
// true are neither visited nor descended into.
func (m *Message) walkDependencies(known func(*Message) bool, visit func(*Message)) {
	type frame struct {
		msg      *Message
		children []*Message
		next     int
	}
	seen := map[cid.Cid]struct{}{m.id: {}}
	stack := []*frame{{msg: m, children: m.directDependencies()}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.children) {
			stack = stack[:len(stack)-1]
			visit(top.msg)
			continue
		}
		child := top.children[top.next]
		top.next++
		if _, ok := seen[child.id]; ok {
			continue
		}
		seen[child.id] = struct{}{}
		if known != nil && known(child) {
			continue
		}
		stack = append(stack, &frame{msg: child, children: child.directDependencies()})
	}
}

func (m *Message) directDependencies() []*Message {
	deps := m.justification.Messages()
	if referrer, ok := m.estimate.(EstimateReferrer); ok {
		for _, ref := range referrer.References() {
			if ref != nil {
				deps = append(deps, ref)
			}
		}
	}
	return deps
}

func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d/%d@%d(%s)", m.sender, m.sequenceNumber, m.height, m.estimate)
}

// CompareByID orders messages by their identifier. It is a stable total order
// used to break ties deterministically.
func CompareByID(one, other *Message) int {
	return strings.Compare(one.id.KeyString(), other.id.KeyString())
}

// compareMessages orders messages by height, sender, sequence number and
// finally identifier.
func compareMessages(one, other *Message) int {
	switch {
	case one.height != other.height:
		return cmpUint(one.height, other.height)
	case one.sender != other.sender:
		return cmpUint(uint64(one.sender), uint64(other.sender))
	case one.sequenceNumber != other.sequenceNumber:
		return cmpUint(one.sequenceNumber, other.sequenceNumber)
	default:
		return CompareByID(one, other)
	}
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	return 1
}
