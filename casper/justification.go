package casper

import (
	"fmt"
	"maps"
)

// Justification credits each validator with the single message its author
// considered that validator's latest when the justified message was created.
// The zero value is an empty justification, as carried by genesis messages.
type Justification struct {
	latest map[ValidatorID]*Message
}

// NewJustification builds a justification from messages of distinct senders.
func NewJustification(messages ...*Message) (Justification, error) {
	latest := make(LatestMessages, len(messages))
	for _, m := range messages {
		if m == nil {
			return Justification{}, ErrNilMessage
		}
		if _, found := latest[m.sender]; found {
			return Justification{}, fmt.Errorf("more than one message from validator %d: %w", m.sender, ErrJustificationSenderMismatch)
		}
		latest[m.sender] = m
	}
	return Justification{latest: latest}, nil
}

// NewJustificationFromLatest builds a justification from a latest message
// mapping, typically the one maintained by a View. It fails if a message is
// stored under a validator other than its sender.
func NewJustificationFromLatest(latest LatestMessages) (Justification, error) {
	j := Justification{latest: make(map[ValidatorID]*Message, len(latest))}
	for id, m := range latest {
		switch {
		case m == nil:
			return Justification{}, ErrNilMessage
		case m.sender != id:
			return Justification{}, fmt.Errorf("message from %d stored under %d: %w", m.sender, id, ErrJustificationSenderMismatch)
		}
		j.latest[id] = m
	}
	return j, nil
}

// Get returns the message credited to the given validator, if any.
func (j Justification) Get(id ValidatorID) (*Message, bool) {
	m, found := j.latest[id]
	return m, found
}

// Len returns the number of validators credited with a message.
func (j Justification) Len() int { return len(j.latest) }

// IsZero checks whether the justification is empty.
func (j Justification) IsZero() bool { return len(j.latest) == 0 }

// Senders returns the credited validators in ascending order.
func (j Justification) Senders() []ValidatorID {
	return LatestMessages(j.latest).Senders()
}

// Messages returns the cited messages ordered by sender.
func (j Justification) Messages() []*Message {
	senders := j.Senders()
	messages := make([]*Message, len(senders))
	for i, id := range senders {
		messages[i] = j.latest[id]
	}
	return messages
}

// Latest returns a copy of the sender to message mapping.
func (j Justification) Latest() LatestMessages {
	return maps.Clone(j.latest)
}

// MaxHeight returns the largest height among cited messages, or zero for an
// empty justification.
func (j Justification) MaxHeight() uint64 {
	var highest uint64
	for _, m := range j.latest {
		highest = max(highest, m.height)
	}
	return highest
}

func (j Justification) clone() Justification {
	if j.latest == nil {
		return Justification{}
	}
	return Justification{latest: maps.Clone(j.latest)}
}

// NextHeight returns the height of a message that sits one above every
// message in its justification, with 1 for an empty justification.
func NextHeight(j Justification) uint64 {
	return j.MaxHeight() + 1
}
