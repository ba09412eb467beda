package serialsoc

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/legamerdc/serialsoc/client"
	"github.com/legamerdc/serialsoc/stream"
	"github.com/legamerdc/serialsoc/wsnet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTerminators(t *testing.T) {
	h := newHarness(t, Config{}, nil, testConn{})
	h.start(t)

	nc, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	defer nc.Close()
	h.rec.waitFor(t, "connect 1")

	h.srv.Schedule(func() error {
		c := h.srv.Conns()[0]
		c.Send("a")
		c.Send("b\n")
		c.Send("c\r")
		c.Send("")
		return nil
	})

	buf := make([]byte, len("a\nb\nc\r\n"))
	require.NoError(t, nc.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, err = io.ReadFull(nc, buf)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\r\n", string(buf))

	h.srv.Close()
	require.NoError(t, h.wait(t))
}

func TestReceiveTerminators(t *testing.T) {
	h := newHarness(t, Config{}, nil, testConn{})
	h.start(t)

	nc, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	h.rec.waitFor(t, "connect 1")

	_, err = nc.Write([]byte("one\ntwo\r\nthree\rfour"))
	require.NoError(t, err)
	require.NoError(t, nc.Close())
	h.rec.waitFor(t, "disconnect 1")

	h.srv.Close()
	require.NoError(t, h.wait(t))
	assert.Equal(t, []string{
		"start",
		"connect 1",
		"recv 1 one",
		"recv 1 two",
		"recv 1 three",
		"recv 1 four",
		"close 1",
		"disconnect 1",
		"server close",
		"stop",
	}, h.rec.events)
}

func TestLineTooLongFails(t *testing.T) {
	h := newHarness(t, Config{MaxLineLength: 16}, nil, testConn{})
	h.start(t)

	nc, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	defer nc.Close()
	h.rec.waitFor(t, "connect 1")

	_, err = nc.Write([]byte("this line is far longer than sixteen bytes\n"))
	require.NoError(t, err)

	assert.ErrorIs(t, h.wait(t), stream.ErrLineTooLong)
	ev := h.rec.events
	assert.Less(t, index(t, ev, "close 1"), index(t, ev, "disconnect 1"))
}

func TestSendAfterDisconnectIgnored(t *testing.T) {
	var kept *Conn
	h := newHarness(t, Config{}, nil, testConn{
		receive: func(c *Conn, _ string) error {
			kept = c
			return nil
		},
	})
	h.start(t)

	c, _ := h.dial(t, 1)
	require.NoError(t, c.Send("hi"))
	h.rec.waitFor(t, "recv 1 hi")
	require.NoError(t, c.Close())
	h.rec.waitFor(t, "disconnect 1")

	h.srv.Schedule(func() error {
		assert.Equal(t, StateDisconnected, kept.State())
		kept.Send("nobody listens")
		kept.Close()
		h.srv.Close()
		return nil
	})
	require.NoError(t, h.wait(t))
	assert.Equal(t, "stop", h.rec.events[len(h.rec.events)-1])
	assert.NotContains(t, h.rec.events[index(t, h.rec.events, "disconnect 1"):], "close 1")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(t, Config{
		Registerer:   reg,
		MetricLabels: prometheus.Labels{"server": "test"},
	}, nil, testConn{
		receive: func(c *Conn, line string) error {
			c.Send(line)
			return nil
		},
	})
	h.start(t)

	c, lines := h.dial(t, 1)
	require.NoError(t, c.Send("x"))
	require.NoError(t, c.Send("y"))
	assert.Equal(t, "x", recvLine(t, lines))
	assert.Equal(t, "y", recvLine(t, lines))

	done := make(chan float64, 1)
	h.srv.Schedule(func() error {
		done <- testutil.ToFloat64(h.srv.metrics.connections)
		return nil
	})
	assert.Equal(t, 1.0, <-done)

	h.srv.Close()
	require.NoError(t, h.wait(t))

	m := h.srv.metrics
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accepted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.linesReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.linesSent))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.failures))
	assert.Greater(t, testutil.ToFloat64(m.tasks), 0.0)

	n, err := testutil.GatherAndCount(reg, "serialsoc_lines_received_total", "serialsoc_task_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNilRegistererStillCounts(t *testing.T) {
	errTask := assert.AnError
	h := newHarness(t, Config{}, nil, testConn{})
	h.srv.Schedule(func() error { return errTask })
	h.run(context.Background())
	assert.Same(t, errTask, h.wait(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.srv.metrics.failures))
}

func TestCompressedStreams(t *testing.T) {
	h := newHarness(t, Config{Streams: stream.Compressed{}}, nil, testConn{
		receive: func(c *Conn, line string) error {
			c.Send("echo " + line)
			return nil
		},
	})
	h.start(t)

	lines := make(client.Lines, 8)
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	c, err := client.DialContext(ctx, "tcp", h.srv.Addr().String(), stream.Compressed{}, lines)
	require.NoError(t, err)
	h.rec.waitFor(t, "connect 1")

	require.NoError(t, c.Send("zstd"))
	assert.Equal(t, "echo zstd", recvLine(t, lines))
	require.NoError(t, c.Close())
	h.rec.waitFor(t, "disconnect 1")

	h.srv.Close()
	require.NoError(t, h.wait(t))
}

func TestWebSocketTransport(t *testing.T) {
	h := newHarness(t, Config{
		Listen: wsnet.ListenFunc(wsnet.Options{Path: "/lines"}),
	}, nil, testConn{
		receive: func(c *Conn, line string) error {
			c.Send("echo " + line)
			return nil
		},
	})
	h.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	nc, err := wsnet.Dial(ctx, "ws://"+h.srv.Addr().String()+"/lines", nil)
	require.NoError(t, err)
	lines := make(client.Lines, 8)
	c, err := client.New(nc, nil, lines)
	require.NoError(t, err)
	h.rec.waitFor(t, "connect 1")

	require.NoError(t, c.Send("over ws"))
	assert.Equal(t, "echo over ws", recvLine(t, lines))
	require.NoError(t, c.Close())
	h.rec.waitFor(t, "disconnect 1")

	h.srv.Close()
	require.NoError(t, h.wait(t))
	assert.Equal(t, []string{
		"start",
		"connect 1",
		"recv 1 over ws",
		"close 1",
		"disconnect 1",
		"server close",
		"stop",
	}, h.rec.events)
}

func TestConnAccessors(t *testing.T) {
	got := make(chan string, 1)
	h := newHarness(t, Config{}, nil, testConn{
		receive: func(c *Conn, _ string) error {
			_, isTest := c.Handler().(*testConn)
			assert.True(t, isTest)
			assert.Equal(t, StateRunning, c.Server().State())
			assert.NotNil(t, c.Logger())
			got <- c.RemoteAddr().String() + " " + c.LocalAddr().String()
			return nil
		},
	})
	h.start(t)

	nc, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	defer nc.Close()
	w := bufio.NewWriter(nc)
	_, _ = w.WriteString("ping\n")
	require.NoError(t, w.Flush())

	select {
	case addrs := <-got:
		assert.Equal(t, nc.LocalAddr().String()+" "+nc.RemoteAddr().String(), addrs)
	case <-time.After(waitTimeout):
		t.Fatal("receive not called")
	}
	h.srv.Close()
	require.NoError(t, h.wait(t))
}
