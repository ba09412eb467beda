// Package wsnet 把 WebSocket 连接适配为 net.Listener / net.Conn，
// 使 serialsoc 服务端可以直接服务浏览器等 WebSocket 对端。
//
// 每条文本消息视为一行；发送时每行一条消息，不带行结束符。
package wsnet

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Options 为 WebSocket 监听配置
type Options struct {
	Path            string // 升级路径，默认 "/"
	ReadBufferSize  int
	WriteBufferSize int
	// CheckOrigin 为 nil 时使用 gorilla 的同源检查
	CheckOrigin func(r *http.Request) bool
}

// Listener 在 HTTP 服务上接受 WebSocket 升级，Accept 依次返回升级后的连接
type Listener struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader
	path     string

	conns chan net.Conn
	errc  chan error
	done  chan struct{}
	once  sync.Once

	mu       sync.Mutex
	serveErr error
}

// Listen 绑定 address 并开始处理 HTTP 升级请求
func Listen(ctx context.Context, network, address string, opts Options) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	l := &Listener{
		ln: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     opts.CheckOrigin,
		},
		path:  opts.Path,
		conns: make(chan net.Conn),
		errc:  make(chan error, 1),
		done:  make(chan struct{}),
	}
	l.srv = &http.Server{Handler: l, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.errc <- err
		}
	}()
	return l, nil
}

// ListenFunc 返回可用作 serialsoc.Config.Listen 的绑定函数
func ListenFunc(opts Options) func(ctx context.Context, network, address string) (net.Listener, error) {
	return func(ctx context.Context, network, address string) (net.Listener, error) {
		return Listen(ctx, network, address, opts)
	}
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != l.path {
		http.NotFound(w, r)
		return
	}
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写回错误响应
		return
	}
	c := newConn(ws)
	select {
	case l.conns <- c:
	case <-l.done:
		_ = c.Close()
	}
}

// Accept 等待下一条升级完成的连接；Close 之后返回 net.ErrClosed
func (l *Listener) Accept() (net.Conn, error) {
	l.mu.Lock()
	serveErr := l.serveErr
	l.mu.Unlock()
	if serveErr != nil {
		return nil, serveErr
	}
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, &net.OpError{Op: "accept", Net: "ws", Addr: l.Addr(), Err: net.ErrClosed}
	case err := <-l.errc:
		l.mu.Lock()
		l.serveErr = err
		l.mu.Unlock()
		return nil, err
	}
}

// Close 停止接受新连接。已经交给 Accept 调用方的连接不受影响。
func (l *Listener) Close() error {
	err := error(&net.OpError{Op: "close", Net: "ws", Addr: l.Addr(), Err: net.ErrClosed})
	l.once.Do(func() {
		close(l.done)
		err = l.srv.Close()
	})
	return err
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }
