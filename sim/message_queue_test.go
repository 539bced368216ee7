package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageQueue_IsInAscendingOrderOfDeliverAt(t *testing.T) {
	subject := newMessageQueue()

	want1st := &messageInFlight{deliverAt: time.Time{}.Add(time.Second)}
	want2nd := &messageInFlight{deliverAt: want1st.deliverAt.Add(12 * time.Second)}
	want3rd := &messageInFlight{deliverAt: want2nd.deliverAt.Add(17 * time.Second)}
	want4th := &messageInFlight{deliverAt: want3rd.deliverAt.Add(100 * time.Second)}

	subject.Insert(want2nd)
	subject.Insert(want4th)
	subject.Insert(want1st)
	subject.Insert(want3rd)

	require.Equal(t, 4, subject.Len())
	require.Equal(t, want1st, subject.Peek())
	require.Equal(t, want1st, subject.Remove())
	require.Equal(t, want2nd, subject.Remove())
	require.Equal(t, want3rd, subject.Remove())
	require.Equal(t, want4th, subject.Remove())
	require.Zero(t, subject.Len())
}

func TestMessageQueue_ReturnsNilWhenEmpty(t *testing.T) {
	subject := newMessageQueue()
	wantMsg := &messageInFlight{
		source:    0,
		dest:      2,
		deliverAt: time.Time{}.Add(17 * time.Second),
	}

	subject.Insert(wantMsg)

	require.Equal(t, 1, subject.Len())
	require.Equal(t, wantMsg, subject.Remove())
	require.Equal(t, 0, subject.Len())
	require.Nil(t, subject.Remove())
	require.Nil(t, subject.Peek())
}

func TestMessageQueue_EqualDeliverAtIsInInsertionOrder(t *testing.T) {
	const insertions = 5
	subject := newMessageQueue()
	at := time.Time{}.Add(17 * time.Second)
	var want []*messageInFlight
	for i := 0; i < insertions; i++ {
		msg := &messageInFlight{source: 1, dest: 2, deliverAt: at}
		want = append(want, msg)
		subject.Insert(msg)
	}
	require.Equal(t, insertions, subject.Len())
	for i := 0; i < insertions; i++ {
		require.Same(t, want[i], subject.Remove())
	}
	require.Equal(t, 0, subject.Len())
}
