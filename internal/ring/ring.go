package ring

// Queue 是按 2 的幂次扩容的无界 FIFO 环形队列。
// 不做并发保护，由调用方加锁。
type Queue[T any] struct {
	buf      []T
	mask     int
	readPos  int
	writePos int
}

// New 返回初始容量为 2 的幂次的队列。若 capacity 非 2 的幂则向上取整。
func New[T any](capacity int) *Queue[T] {
	capPow2 := 1
	for capPow2 < capacity {
		capPow2 <<= 1
	}
	return &Queue[T]{buf: make([]T, capPow2), mask: capPow2 - 1}
}

func (q *Queue[T]) Cap() int { return len(q.buf) }

func (q *Queue[T]) Len() int { return q.writePos - q.readPos }

func (q *Queue[T]) Free() int { return q.Cap() - q.Len() }

// Push 追加到队尾；空间不足时容量翻倍。
func (q *Queue[T]) Push(v T) {
	if q.Free() == 0 {
		q.grow()
	}
	q.buf[q.writePos&q.mask] = v
	q.writePos++
}

// Pop 取出队首元素；队列为空时 ok=false。
func (q *Queue[T]) Pop() (v T, ok bool) {
	if q.Len() == 0 {
		return v, false
	}
	i := q.readPos & q.mask
	v = q.buf[i]
	var zero T
	q.buf[i] = zero // 释放引用
	q.readPos++
	if q.readPos == q.writePos {
		q.readPos, q.writePos = 0, 0
	}
	return v, true
}

func (q *Queue[T]) grow() {
	n := q.Len()
	buf := make([]T, len(q.buf)<<1)
	start := q.readPos & q.mask
	l := copy(buf, q.buf[start:])
	if l < n {
		copy(buf[l:n], q.buf[:n-l])
	}
	q.buf = buf
	q.mask = len(buf) - 1
	q.readPos = 0
	q.writePos = n
}
