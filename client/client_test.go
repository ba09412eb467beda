package client

import (
	"bufio"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/legamerdc/serialsoc/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLinesRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// 简单的回显对端
	go func() {
		sc, err := ln.Accept()
		if err != nil {
			return
		}
		defer sc.Close()
		br := bufio.NewReader(sc)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			if _, err := sc.Write([]byte("echo " + line)); err != nil {
				return
			}
		}
	}()

	lines := make(Lines, 8)
	c, err := Dial("tcp", ln.Addr().String(), lines)
	require.NoError(t, err)

	require.NoError(t, c.Send("hello"))
	require.NoError(t, c.Send("world\n"))
	assert.Equal(t, "echo hello", recv(t, lines))
	assert.Equal(t, "echo world", recv(t, lines))

	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not finish")
	}
	assert.NoError(t, c.Err())
	_, ok := <-lines
	assert.False(t, ok)
}

func TestNewOverPipe(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	lines := make(Lines, 1)
	c, err := New(a, nil, lines)
	require.NoError(t, err)

	go func() { _, _ = b.Write([]byte("from peer\r\n")) }()
	assert.Equal(t, "from peer", recv(t, lines))
	require.NoError(t, c.Close())
	<-c.Done()
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case l, ok := <-ch:
		require.True(t, ok, "channel closed")
		return l
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for line")
	}
	return ""
}

type closeTracker struct {
	stream.LineReader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

// writerFails 构造读端成功、写端失败的工厂
type writerFails struct{ r *closeTracker }

func (f writerFails) NewReader(c net.Conn) (stream.LineReader, error) {
	f.r.LineReader = stream.NewLineReader(c, 0)
	return f.r, nil
}

func (writerFails) NewWriter(net.Conn) (stream.LineWriter, error) {
	return nil, errors.New("no writer")
}

func TestNewReleasesReaderOnWriterFailure(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	r := &closeTracker{}
	_, err := New(a, writerFails{r: r}, make(Lines, 1))
	require.EqualError(t, err, "no writer")
	assert.True(t, r.closed)
}
