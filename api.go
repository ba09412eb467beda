// Package serialsoc 提供按行收发的套接字服务端。
//
// 所有事件（启动、连接、收到一行、关闭、断开、停止、异常）都在调用
// Server.Run 的 goroutine（控制 goroutine）上逐个执行；accept 与每条连接的
// 读循环只向任务队列投递任务，从不直接修改共享状态，因此回调无需加锁。
package serialsoc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/legamerdc/serialsoc/stream"
	"github.com/prometheus/client_golang/prometheus"
)

// Task 是投递到控制 goroutine 上执行的操作；返回的错误按未捕获失败处理。
type Task func() error

// ListenFunc 绑定监听端点
type ListenFunc func(ctx context.Context, network, address string) (net.Listener, error)

// Config 为服务端配置
type Config struct {
	Network       string        // 监听网络，如 "tcp"
	Address       string        // 监听地址，如 ":8080"
	ReusePort     bool          // 默认 Listen 是否设置 SO_REUSEPORT
	KeepAlive     time.Duration // 默认 Listen 的 TCP keep-alive 周期
	NoDelay       bool          // 已接受连接的 TCP_NODELAY
	ReadBuffer    int           // SO_RCVBUF，0 保持系统默认
	WriteBuffer   int           // SO_SNDBUF，0 保持系统默认
	MaxLineLength int           // 默认 Streams 的单行上限

	// Listen 绑定监听端点，nil 时使用 net.ListenConfig
	Listen ListenFunc
	// Streams 将连接适配为按行读写，nil 时为 stream.Plain
	Streams stream.Factory
	// NewHandler 为每条新连接构造回调对象（必填）
	NewHandler func(c *Conn) (Handler, error)

	Logger       *slog.Logger
	Registerer   prometheus.Registerer // nil 时指标不注册
	MetricLabels prometheus.Labels
}

// DefaultConfig 提供一组可工作的默认值
func DefaultConfig() Config {
	return Config{
		Network:       "tcp",
		Address:       ":0",
		KeepAlive:     15 * time.Second,
		NoDelay:       true,
		MaxLineLength: stream.DefaultMaxLine, // 64 KiB
	}
}

// withDefaults 填充零值字段；布尔字段按调用方给定值使用
func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.Network == "" {
		cfg.Network = def.Network
	}
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = def.MaxLineLength
	}
	if cfg.Listen == nil {
		lc := net.ListenConfig{KeepAlive: cfg.KeepAlive, Control: listenControl(cfg.ReusePort)}
		cfg.Listen = lc.Listen
	}
	if cfg.Streams == nil {
		cfg.Streams = stream.Plain{MaxLine: cfg.MaxLineLength}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "serialsoc")
	}
	return cfg
}
