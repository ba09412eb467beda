package serialsoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/legamerdc/serialsoc/internal/netutil"
)

// State 为服务端或连接的生命周期状态，只前进不回退
type State int32

const (
	StateCreated State = iota
	// 服务端：正在绑定监听端点
	StateStarted
	// 服务端：消费任务队列
	StateRunning
	// 服务端：关闭流程进行中
	StateClosing
	// 服务端：Run 已返回
	StateStopped
	// 连接：已登记并执行 OnConnect
	StateConnected
	// 连接：OnClose 已执行
	StateClosed
	// 连接：OnDisconnect 已执行
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateStopped:
		return "stopped"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Server 接受连接并把所有事件串行到调用 Run 的 goroutine 上
type Server struct {
	cfg     Config
	h       ServerHandler
	log     *slog.Logger
	metrics *metrics
	exec    *executor
	ticks   tickers

	state   atomic.Int32
	closing atomic.Bool // 只在控制 goroutine 上写入
	addr    atomic.Value

	ln         net.Listener
	acceptDone chan struct{}
	readers    sync.WaitGroup

	// 以下字段只在控制 goroutine 上访问
	conns    connSet
	uncaught error
	nextID   uint64
}

// NewServer 构造未启动的 Server 实例。h 为 nil 时使用 NopServerHandler。
func NewServer(cfg Config, h ServerHandler) (*Server, error) {
	if cfg.NewHandler == nil {
		return nil, ErrInvalidArgument
	}
	if h == nil {
		h = NopServerHandler{}
	}
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:     cfg,
		h:       h,
		log:     cfg.Logger,
		metrics: newMetrics(cfg.Registerer, cfg.MetricLabels),
		conns:   newConnSet(),
	}
	s.exec = newExecutor(s.runTask)
	return s, nil
}

// Serve 等价于 NewServer 后调用 Run
func Serve(ctx context.Context, cfg Config, h ServerHandler) error {
	s, err := NewServer(cfg, h)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// Run 在当前 goroutine 上执行服务端完整生命周期，直到关闭完成。
//
// 绑定失败时立即返回且不触发任何回调。之后运行到 Close 被调用、ctx 取消、
// 监听端点失败或出现未捕获失败为止，随后执行完整的关闭流程：
// OnClose、关闭所有连接、等待所有读循环退出、OnStop。
// 若期间出现过未捕获失败，返回第一个。
func (s *Server) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarted)) {
		return ErrServerStarted
	}
	ln, err := s.cfg.Listen(ctx, s.cfg.Network, s.cfg.Address)
	if err != nil {
		s.ticks.stopAll()
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("serialsoc: listen: %w", err)
	}
	s.ln = ln
	s.addr.Store(ln.Addr())
	s.log.Info("serialsoc.listening", "network", ln.Addr().Network(), "addr", ln.Addr().String())

	s.acceptDone = make(chan struct{})
	go s.acceptLoop()
	s.ticks.start(s.Schedule)
	s.state.Store(int32(StateRunning))
	// OnStart 直接执行，先于队列中已有的任何任务
	s.runTask(func() error { return s.h.OnStart(s) })

	for !s.closing.Load() && s.uncaught == nil {
		if err := s.exec.runNext(ctx); err != nil {
			s.fail(err)
		}
	}
	s.shutdown()

	s.state.Store(int32(StateStopped))
	s.log.Info("serialsoc.stopped", "error", s.uncaught)
	return s.uncaught
}

// shutdown 各阶段排空队列后再进入下一阶段：
// 监听端点 → accept goroutine → OnClose → 关闭连接 → 读循环 → OnStop
func (s *Server) shutdown() {
	s.state.Store(int32(StateClosing))
	s.closing.Store(true)
	s.log.Info("serialsoc.closing", "conns", s.conns.len(), "pending", s.exec.len())

	s.runTask(s.closeListener)
	<-s.acceptDone
	s.ticks.stopAll()
	s.exec.schedule(func() error { return s.h.OnClose(s) })
	s.exec.drain()

	for _, c := range s.conns.snapshot() {
		c.Close()
	}
	s.exec.drain()

	s.readers.Wait()
	s.exec.drain()

	s.exec.schedule(func() error { return s.h.OnStop(s) })
	s.exec.drain()
}

func (s *Server) closeListener() error {
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("serialsoc: close listener: %w", err)
	}
	return nil
}

// acceptLoop 阻塞 accept，每个新连接投递一个构造任务
func (s *Server) acceptLoop() {
	defer close(s.acceptDone)
	for !s.closing.Load() {
		nc, err := s.ln.Accept()
		if err != nil {
			if s.closing.Load() && errors.Is(err, net.ErrClosed) {
				s.log.Debug("serialsoc.accept.closed")
				return
			}
			s.exec.schedule(func() error { return fmt.Errorf("serialsoc: accept: %w", err) })
			return
		}
		s.metrics.accepted.Inc()
		s.exec.schedule(func() error { return s.open(nc) })
	}
}

// open 在控制 goroutine 上构造连接并启动其读循环；关闭中直接关闭原始连接
func (s *Server) open(nc net.Conn) error {
	if s.closing.Load() {
		_ = nc.Close()
		return nil
	}
	if err := netutil.Tune(nc, s.cfg.NoDelay, s.cfg.ReadBuffer, s.cfg.WriteBuffer); err != nil {
		s.log.Debug("serialsoc.accept.tune_failed", "remote", nc.RemoteAddr().String(), "error", err)
	}
	s.nextID++
	c, err := newConn(s, s.nextID, nc)
	if err != nil {
		_ = nc.Close()
		return err
	}
	c.start()
	return nil
}

// runTask 执行一个任务，失败交给 fail
func (s *Server) runTask(t Task) {
	start := time.Now()
	err := call(t)
	s.metrics.tasks.Inc()
	s.metrics.taskDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.fail(err)
	}
}

// fail 记录第一个未捕获失败，并对每个失败调用 OnException。
// OnException 自身的失败只写日志，不再记录或上报。
func (s *Server) fail(err error) {
	// 错误类型可能不可比较，不能用 == 判断是否为第一个
	first := s.uncaught == nil
	if first {
		s.uncaught = err
	}
	s.metrics.failures.Inc()
	s.log.Error("serialsoc.failure", "error", err, "first", first)
	if herr := call(func() error { return s.h.OnException(s, err) }); herr != nil {
		s.log.Error("serialsoc.on_exception.failed", "error", herr, "cause", err)
	}
}

// Close 开始关闭服务端。任意 goroutine 可调用，可重复调用。
func (s *Server) Close() {
	s.exec.schedule(func() error {
		s.closing.Store(true)
		return nil
	})
}

// Schedule 将 t 投递到控制 goroutine 执行。任意 goroutine 可调用。
func (s *Server) Schedule(t Task) {
	if t == nil {
		return
	}
	s.exec.schedule(t)
}

// Every 每隔 interval 投递一次 t，直到返回的 stop 被调用或关闭开始。
// Run 之前注册的周期任务在 Run 开始后才启动。
func (s *Server) Every(interval time.Duration, t Task) (stop func()) {
	if interval <= 0 || t == nil {
		return func() {}
	}
	tk := newTicker(interval, t)
	if !s.ticks.add(tk, s.Schedule) {
		return func() {}
	}
	return tk.stop
}

// Conns 返回在线连接的快照，只能在控制 goroutine 上调用
func (s *Server) Conns() []*Conn { return s.conns.snapshot() }

// Addr 返回监听地址，绑定之前为 nil
func (s *Server) Addr() net.Addr {
	if a, ok := s.addr.Load().(net.Addr); ok {
		return a
	}
	return nil
}

// State 返回服务端当前状态，任意 goroutine 可调用
func (s *Server) State() State { return State(s.state.Load()) }

// Logger 返回服务端使用的日志器
func (s *Server) Logger() *slog.Logger { return s.log }
