package main

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCountdownStopSuppressesCallback(t *testing.T) {
	var fired atomic.Int32

	var timer countdown
	timer.start(5, func() { fired.Add(1) })
	timer.stop()

	time.Sleep(1500 * time.Millisecond)
	require.Zero(t, fired.Load(), "callback fired after stop")
}

func TestCountdownFiresExactlyOnce(t *testing.T) {
	var fired atomic.Int32

	var timer countdown
	timer.start(1, func() { fired.Add(1) })

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, 2500*time.Millisecond, 50*time.Millisecond)

	time.Sleep(1200 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load(), "callback fired more than once")
}

func TestCountdownRestartJoinsPriorRun(t *testing.T) {
	var first, second atomic.Int32

	var timer countdown
	timer.start(5, func() { first.Add(1) })
	timer.start(1, func() { second.Add(1) })

	require.Eventually(t, func() bool {
		return second.Load() == 1
	}, 2500*time.Millisecond, 50*time.Millisecond)

	require.Zero(t, first.Load(), "superseded countdown still fired")
}

func TestCountdownRemaining(t *testing.T) {
	var timer countdown
	timer.start(3, nil)

	time.Sleep(1200 * time.Millisecond)
	remaining := timer.remainingSeconds()
	require.GreaterOrEqual(t, remaining, 1)
	require.LessOrEqual(t, remaining, 2)

	timer.stop()
}

func TestCountdownStopIsIdempotent(t *testing.T) {
	var timer countdown
	timer.stop()

	timer.start(1, nil)
	timer.stop()
	timer.stop()
}
