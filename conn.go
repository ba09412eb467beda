package serialsoc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/legamerdc/serialsoc/stream"
)

// Conn 表示服务端接受的一条连接。
// 状态机：Created → Connected → (Receive*) → Closed → Disconnected
type Conn struct {
	id  uint64
	srv *Server
	nc  net.Conn
	r   stream.LineReader
	h   Handler
	log *slog.Logger

	wmu      sync.Mutex
	w        stream.LineWriter
	released bool

	state  atomic.Int32
	closed bool // 只在控制 goroutine 上访问
}

// newConn 在控制 goroutine 上调用；失败时由调用方关闭 nc，且不触发任何回调
func newConn(s *Server, id uint64, nc net.Conn) (*Conn, error) {
	c := &Conn{
		id:  id,
		srv: s,
		nc:  nc,
		log: s.log.With("conn", id, "remote", nc.RemoteAddr().String()),
	}
	var err error
	if c.r, err = s.cfg.Streams.NewReader(nc); err != nil {
		return nil, fmt.Errorf("serialsoc: conn %d: new reader: %w", id, err)
	}
	if c.w, err = s.cfg.Streams.NewWriter(nc); err != nil {
		c.release()
		return nil, fmt.Errorf("serialsoc: conn %d: new writer: %w", id, err)
	}
	if c.h, err = s.cfg.NewHandler(c); err != nil {
		c.release()
		return nil, err
	}
	if c.h == nil {
		c.release()
		return nil, fmt.Errorf("serialsoc: conn %d: nil handler: %w", id, ErrInvalidArgument)
	}
	return c, nil
}

// start 先投递登记任务再启动读循环，保证 OnConnect 先于任何 Receive，
// 且下一次排空队列后连接一定在在线集合中
func (c *Conn) start() {
	c.srv.readers.Add(1)
	c.srv.exec.schedule(c.connect)
	go c.readLoop()
}

func (c *Conn) connect() error {
	c.srv.conns.add(c)
	c.srv.metrics.connections.Inc()
	c.state.Store(int32(StateConnected))
	c.log.Debug("serialsoc.conn.connected")
	return c.h.OnConnect(c)
}

// readLoop 阻塞读行，每行投递一个 Receive 任务。
// 结束后保证 OnClose 已排队，再投递 OnDisconnect 作为该连接最后一个事件。
func (c *Conn) readLoop() {
	defer c.srv.readers.Done()
	for {
		line, err := c.r.ReadLine()
		if err != nil {
			if isExpectedClose(err) {
				c.log.Debug("serialsoc.conn.read_end", "error", err)
			} else {
				c.srv.exec.schedule(func() error {
					return fmt.Errorf("serialsoc: conn %d: read: %w", c.id, err)
				})
			}
			break
		}
		c.srv.exec.schedule(func() error { return c.receive(line) })
	}
	c.Close()
	c.srv.exec.schedule(c.disconnect)
}

// receive 已关闭的连接丢弃迟到的行
func (c *Conn) receive(line string) error {
	if c.closed {
		return nil
	}
	c.srv.metrics.linesReceived.Inc()
	return c.h.Receive(c, line)
}

func (c *Conn) disconnect() error {
	c.srv.conns.remove(c)
	c.srv.metrics.connections.Dec()
	c.release()
	c.state.Store(int32(StateDisconnected))
	c.log.Debug("serialsoc.conn.disconnected")
	return c.h.OnDisconnect(c)
}

// Close 开始断开连接：在控制 goroutine 上执行 OnClose（此时仍可 Send），
// 随后关闭底层连接。任意 goroutine 可调用，可重复调用。
func (c *Conn) Close() {
	c.srv.exec.schedule(func() error {
		if c.closed {
			return nil
		}
		c.closed = true
		c.state.Store(int32(StateClosed))
		return c.h.OnClose(c)
	})
	c.srv.exec.schedule(c.closeTransport)
}

func (c *Conn) closeTransport() error {
	if err := c.nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("serialsoc: conn %d: close: %w", c.id, err)
	}
	return nil
}

// Send 发送一行。缺少行结束符时补 "\n"，随后立即 Flush。
// 连接已关闭或正在关闭导致的写错误被忽略。
func (c *Conn) Send(message string) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.released {
		return
	}
	if !strings.HasSuffix(message, "\n") && !strings.HasSuffix(message, "\r") {
		message += "\n"
	}
	_, err := c.w.WriteString(message)
	if err == nil {
		err = c.w.Flush()
	}
	if err != nil {
		c.log.Debug("serialsoc.conn.send_dropped", "error", err)
		return
	}
	c.srv.metrics.linesSent.Inc()
}

// release 关闭实现了 io.Closer 的读写端，之后 Send 不再写出
func (c *Conn) release() {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.released {
		return
	}
	c.released = true
	if cl, ok := c.w.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			c.log.Debug("serialsoc.conn.writer_close", "error", err)
		}
	}
	if cl, ok := c.r.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			c.log.Debug("serialsoc.conn.reader_close", "error", err)
		}
	}
}

// ID 为服务端内自增的连接编号，从 1 开始
func (c *Conn) ID() uint64 { return c.id }

// Server 返回连接所属的服务端
func (c *Conn) Server() *Server { return c.srv }

// Handler 返回 NewHandler 为该连接构造的回调对象
func (c *Conn) Handler() Handler { return c.h }

// RemoteAddr 返回对端地址
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// LocalAddr 返回本端地址
func (c *Conn) LocalAddr() net.Addr { return c.nc.LocalAddr() }

// State 返回连接当前状态，任意 goroutine 可调用
func (c *Conn) State() State { return State(c.state.Load()) }

// Logger 返回带有 conn 与 remote 字段的日志器
func (c *Conn) Logger() *slog.Logger { return c.log }
