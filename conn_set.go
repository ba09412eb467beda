package serialsoc

// connSet 为在线连接集合：map 定位 + 稠密切片存储，删除时与末尾交换。
// 只在控制 goroutine 上使用，不加锁。
type connSet struct {
	index map[*Conn]int
	conns []*Conn
}

func newConnSet() connSet {
	return connSet{index: make(map[*Conn]int), conns: make([]*Conn, 0, 64)}
}

func (cs *connSet) add(c *Conn) {
	if _, ok := cs.index[c]; ok {
		return
	}
	cs.index[c] = len(cs.conns)
	cs.conns = append(cs.conns, c)
}

func (cs *connSet) remove(c *Conn) bool {
	idx, ok := cs.index[c]
	if !ok {
		return false
	}
	last := len(cs.conns) - 1
	cs.conns[idx] = cs.conns[last]
	cs.conns[last] = nil
	cs.conns = cs.conns[:last]
	if idx < len(cs.conns) {
		cs.index[cs.conns[idx]] = idx
	}
	delete(cs.index, c)
	return true
}

func (cs *connSet) len() int { return len(cs.conns) }

// snapshot 返回副本，遍历期间集合可被回调修改
func (cs *connSet) snapshot() []*Conn {
	out := make([]*Conn, len(cs.conns))
	copy(out, cs.conns)
	return out
}
