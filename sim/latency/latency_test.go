package latency_test

import (
	"testing"
	"time"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/sim/latency"
	"github.com/stretchr/testify/require"
)

func TestLogNormal(t *testing.T) {
	_, err := latency.NewLogNormal(1413, -time.Second)
	require.ErrorContains(t, err, "negative")

	subject, err := latency.NewLogNormal(1413, time.Second)
	require.NoError(t, err)
	require.Zero(t, subject.Sample(time.Time{}, 1, 1))
	for i := 0; i < 100; i++ {
		require.Positive(t, subject.Sample(time.Time{}, 1, 2))
	}

	replica, err := latency.NewLogNormal(1413, time.Second)
	require.NoError(t, err)
	again, err := latency.NewLogNormal(1413, time.Second)
	require.NoError(t, err)
	require.Equal(t, replica.Sample(time.Time{}, 0, 1), again.Sample(time.Time{}, 0, 1))
}

func TestZipf(t *testing.T) {
	_, err := latency.NewZipf(1413, 1.5, 1, -time.Second)
	require.ErrorContains(t, err, "negative")
	_, err = latency.NewZipf(1413, 0.5, 1, time.Second)
	require.ErrorContains(t, err, "out of band")

	subject, err := latency.NewZipf(1413, 1.5, 1, time.Second)
	require.NoError(t, err)
	require.Zero(t, subject.Sample(time.Time{}, 3, 3))
	for i := 0; i < 100; i++ {
		require.LessOrEqual(t, subject.Sample(time.Time{}, 3, 4), time.Second)
	}
}

func TestFixed(t *testing.T) {
	require.Zero(t, latency.None.Sample(time.Now(), 0, 1))
	require.Equal(t, time.Second, latency.Fixed(time.Second).Sample(time.Now(), 0, 1))
	require.Zero(t, latency.Fixed(time.Second).Sample(time.Now(), 1, 1))
}

func TestPartition(t *testing.T) {
	start := time.Unix(0, 0)
	healAt := start.Add(10 * time.Second)
	subject := latency.NewPartition(latency.Fixed(time.Second), healAt, 0, 1)

	tests := []struct {
		name     string
		at       time.Time
		from, to casper.ValidatorID
		want     time.Duration
	}{
		{name: "same side inside", at: start, from: 0, to: 1, want: time.Second},
		{name: "same side outside", at: start, from: 2, to: 3, want: time.Second},
		{name: "across", at: start, from: 0, to: 2, want: 11 * time.Second},
		{name: "across backwards", at: start.Add(4 * time.Second), from: 3, to: 1, want: 7 * time.Second},
		{name: "healed", at: healAt, from: 0, to: 2, want: time.Second},
		{name: "self", at: start, from: 2, to: 2, want: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, subject.Sample(test.at, test.from, test.to))
		})
	}
}
