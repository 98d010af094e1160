package sigchan

// Chan 非阻塞信号 channel，只通知事件发生，不携带数据。
// 缓冲满时多次 Emit 会合并为一次。
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel，bufferSize 小于 1 时按 1 处理
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{
		c: make(chan struct{}, bufferSize),
	}
}

// Emit 发送信号，返回是否真正入队（false 表示已和未消费的信号合并）
func (c *Chan) Emit() bool {
	select {
	case c.c <- struct{}{}:
		return true
	default:
		return false
	}
}

// C 返回只读 channel（用于 select）
func (c *Chan) C() <-chan struct{} {
	return c.c
}

// Pending 当前尚未消费的信号数
func (c *Chan) Pending() int {
	return len(c.c)
}

// Drain 丢弃所有未消费的信号，返回丢弃的数量
func (c *Chan) Drain() int {
	n := 0
	for {
		select {
		case <-c.c:
			n++
		default:
			return n
		}
	}
}
