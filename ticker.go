package serialsoc

import (
	"sync"
	"time"
)

// ticker 周期性地把 task 投递到控制 goroutine
type ticker struct {
	interval time.Duration
	task     Task
	stopCh   chan struct{}
	once     sync.Once
}

func newTicker(interval time.Duration, task Task) *ticker {
	return &ticker{interval: interval, task: task, stopCh: make(chan struct{})}
}

func (tk *ticker) run(schedule func(Task)) {
	t := time.NewTicker(tk.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			schedule(tk.task)
		case <-tk.stopCh:
			return
		}
	}
}

func (tk *ticker) stop() { tk.once.Do(func() { close(tk.stopCh) }) }

// tickers 管理 Server.Every 创建的全部 ticker。
// Run 开始前登记的 ticker 延迟到 Run 时启动，保证 OnStart 仍是第一个事件。
type tickers struct {
	mu      sync.Mutex
	list    []*ticker
	running bool
	stopped bool
	wg      sync.WaitGroup
}

func (ts *tickers) add(tk *ticker, schedule func(Task)) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.stopped {
		return false
	}
	ts.list = append(ts.list, tk)
	if ts.running {
		ts.launch(tk, schedule)
	}
	return true
}

func (ts *tickers) start(schedule func(Task)) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.running || ts.stopped {
		return
	}
	ts.running = true
	for _, tk := range ts.list {
		ts.launch(tk, schedule)
	}
}

func (ts *tickers) launch(tk *ticker, schedule func(Task)) {
	ts.wg.Add(1)
	go func() {
		defer ts.wg.Done()
		tk.run(schedule)
	}()
}

// stopAll 停止并等待全部 ticker goroutine 退出
func (ts *tickers) stopAll() {
	ts.mu.Lock()
	ts.stopped = true
	for _, tk := range ts.list {
		tk.stop()
	}
	ts.list = nil
	ts.mu.Unlock()
	ts.wg.Wait()
}
