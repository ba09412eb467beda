package serialsoc

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickersDeferredUntilStart(t *testing.T) {
	var ts tickers
	var n atomic.Int32
	schedule := func(t Task) { _ = t() }

	tk := newTicker(time.Millisecond, func() error {
		n.Add(1)
		return nil
	})
	assert.True(t, ts.add(tk, schedule))
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, n.Load())

	ts.start(schedule)
	assert.Eventually(t, func() bool { return n.Load() >= 2 }, waitTimeout, time.Millisecond)

	ts.stopAll()
	stopped := n.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, n.Load())
	assert.False(t, ts.add(newTicker(time.Millisecond, func() error { return nil }), schedule))
}
