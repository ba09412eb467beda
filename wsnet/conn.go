package wsnet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGrace = time.Second

// Conn 将 *websocket.Conn 适配为字节流：
// 读到的每条消息后追加 '\n'；写入按 '\n' 切分，每行一条文本消息。
type Conn struct {
	ws *websocket.Conn

	r      io.Reader // 当前消息
	needNL bool

	wmu  sync.Mutex
	wbuf []byte

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *Conn { return &Conn{ws: ws} }

// Dial 连接 WebSocket 服务端，返回可交给 client.New 的 net.Conn
func Dial(ctx context.Context, url string, header http.Header) (net.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return newConn(ws), nil
}

// Read 只允许单个 goroutine 调用
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if c.needNL {
			c.needNL = false
			p[0] = '\n'
			return 1, nil
		}
		if c.r == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, mapReadErr(err)
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if errors.Is(err, io.EOF) {
			c.r = nil
			c.needNL = true
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// mapReadErr 对端发送关闭帧或连接中断均视为流结束
func mapReadErr(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return io.EOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}

// Write 缓存不完整的行，直到遇到 '\n'
func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.wbuf = append(c.wbuf, p...)
	for {
		i := bytes.IndexByte(c.wbuf, '\n')
		if i < 0 {
			break
		}
		msg := bytes.TrimSuffix(c.wbuf[:i], []byte{'\r'})
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.wbuf = c.wbuf[:0]
			return 0, err
		}
		c.wbuf = c.wbuf[i+1:]
	}
	if len(c.wbuf) == 0 {
		c.wbuf = nil
	}
	return len(p), nil
}

// Close 发送关闭帧后关闭底层连接；重复调用返回 net.ErrClosed
func (c *Conn) Close() error {
	err := error(&net.OpError{Op: "close", Net: "ws", Addr: c.RemoteAddr(), Err: net.ErrClosed})
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) LocalAddr() net.Addr { return c.ws.LocalAddr() }

func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }

func (c *Conn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
