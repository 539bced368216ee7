package sim

import (
	"container/heap"
	"time"

	"github.com/filecoin-project/go-casper/casper"
)

type messageInFlight struct {
	source    casper.ValidatorID
	dest      casper.ValidatorID
	payload   *casper.Message
	deliverAt time.Time

	// seq is the position of the message in insertion order.
	seq uint64
}

// before orders deliveries by time, then by insertion.
func (m *messageInFlight) before(other *messageInFlight) bool {
	if m.deliverAt.Equal(other.deliverAt) {
		return m.seq < other.seq
	}
	return m.deliverAt.Before(other.deliverAt)
}

// messageQueue holds the messages in flight, earliest delivery first. Messages
// due at the same time come out in the order they went in, which keeps runs
// reproducible.
type messageQueue struct {
	inFlight deliveries
	next     uint64
}

func newMessageQueue() *messageQueue {
	return &messageQueue{}
}

func (q *messageQueue) Len() int { return len(q.inFlight) }

func (q *messageQueue) Insert(m *messageInFlight) {
	m.seq = q.next
	q.next++
	heap.Push(&q.inFlight, m)
}

// Peek returns the next message due without removing it, or nil if nothing
// is in flight.
func (q *messageQueue) Peek() *messageInFlight {
	if len(q.inFlight) == 0 {
		return nil
	}
	return q.inFlight[0]
}

// Remove removes and returns the next message due, or nil if nothing is in
// flight.
func (q *messageQueue) Remove() *messageInFlight {
	if len(q.inFlight) == 0 {
		return nil
	}
	return heap.Pop(&q.inFlight).(*messageInFlight)
}

var _ heap.Interface = (*deliveries)(nil)

type deliveries []*messageInFlight

func (d deliveries) Len() int           { return len(d) }
func (d deliveries) Less(i, j int) bool { return d[i].before(d[j]) }
func (d deliveries) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }
func (d *deliveries) Push(x any)        { *d = append(*d, x.(*messageInFlight)) }

func (d *deliveries) Pop() any {
	old := *d
	last := old[len(old)-1]
	old[len(old)-1] = nil
	*d = old[:len(old)-1]
	return last
}
