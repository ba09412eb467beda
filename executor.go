package serialsoc

import (
	"context"
	"sync"

	"github.com/legamerdc/serialsoc/internal/ring"
)

// executor 是无界 FIFO 任务队列，任意 goroutine 可投递，
// 仅控制 goroutine 消费，任务之间从不重叠执行。
type executor struct {
	mu   sync.Mutex
	q    *ring.Queue[Task]
	wake chan struct{} // 单槽唤醒信号，作用同 poller 的 eventfd
	exec func(Task)
}

func newExecutor(exec func(Task)) *executor {
	return &executor{
		q:    ring.New[Task](64),
		wake: make(chan struct{}, 1),
		exec: exec,
	}
}

// schedule 追加到队尾，从不阻塞
func (e *executor) schedule(t Task) {
	e.mu.Lock()
	e.q.Push(t)
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *executor) poll() (Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.Pop()
}

func (e *executor) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.Len()
}

// runNext 阻塞直到取出并执行一个任务。
// ctx 取消后即使队列非空也不再执行，返回 ctx.Err()；剩余任务由 drain 处理。
func (e *executor) runNext(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t, ok := e.poll(); ok {
			e.exec(t)
			return nil
		}
		select {
		case <-e.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain 执行队列中的全部任务，包括执行过程中新投递的，直到观察到队列为空
func (e *executor) drain() {
	for {
		t, ok := e.poll()
		if !ok {
			return
		}
		e.exec(t)
	}
}
