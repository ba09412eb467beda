// Package client 是 serialsoc 服务端的按行客户端。
package client

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/legamerdc/serialsoc/stream"
)

// Handler 的回调都在同一个读 goroutine 上依次执行
type Handler interface {
	OnOpen(c *Client)
	OnLine(c *Client, line string)
	OnClose(c *Client, err error)
}

type Client struct {
	conn net.Conn
	r    stream.LineReader
	w    stream.LineWriter
	mu   sync.Mutex
	done chan struct{}
	err  error
}

// Dial 以默认的 stream.Plain 连接服务端
func Dial(network, address string, h Handler) (*Client, error) {
	return DialContext(context.Background(), network, address, nil, h)
}

// DialContext 使用 f 构造读写端，f 需与服务端的 Streams 配置一致
func DialContext(ctx context.Context, network, address string, f stream.Factory, h Handler) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	c, err := New(nc, f, h)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// New 在已建立的连接上启动客户端
func New(nc net.Conn, f stream.Factory, h Handler) (*Client, error) {
	if f == nil {
		f = stream.Plain{}
	}
	r, err := f.NewReader(nc)
	if err != nil {
		return nil, err
	}
	w, err := f.NewWriter(nc)
	if err != nil {
		// 归还读端持有的资源，如池化的解码器
		if cl, ok := r.(io.Closer); ok {
			_ = cl.Close()
		}
		return nil, err
	}
	c := &Client{conn: nc, r: r, w: w, done: make(chan struct{})}
	go c.readLoop(h)
	return c, nil
}

func (c *Client) readLoop(h Handler) {
	defer close(c.done)
	h.OnOpen(c)
	var err error
	for {
		var line string
		line, err = c.r.ReadLine()
		if err != nil {
			break
		}
		h.OnLine(c, line)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		err = nil
	}
	c.err = err
	h.OnClose(c, err)
}

// Send 发送一行，缺少行结束符时补 "\n"
func (c *Client) Send(line string) error {
	if !strings.HasSuffix(line, "\n") && !strings.HasSuffix(line, "\r") {
		line += "\n"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.WriteString(line); err != nil {
		return err
	}
	return c.w.Flush()
}

// Done 在读循环结束（OnClose 返回）后关闭
func (c *Client) Done() <-chan struct{} { return c.done }

// Err 返回读循环的结束原因，正常断开为 nil；仅在 Done 关闭后有效
func (c *Client) Err() error { return c.err }

func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

func (c *Client) Close() error { return c.conn.Close() }

// Lines 把收到的行转发到通道，连接结束时关闭通道
type Lines chan string

func (Lines) OnOpen(*Client) {}

func (l Lines) OnLine(_ *Client, line string) { l <- line }

func (l Lines) OnClose(*Client, error) { close(l) }
