package cache

import "sync"

// Watcher 是一个进程内的变更通知枢纽。
// 宝藏数据发生提交后的变更时，所有订阅者都会收到一次信号，
// 扫描会话借此在下一个扫描周期前立即感知变化。
type Watcher struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

// NewWatcher 创建一个新的通知枢纽。
func NewWatcher() *Watcher {
	return &Watcher{subs: make(map[int]chan struct{})}
}

// Subscribe 注册一个订阅者，返回信号通道和取消函数。
// 信号通道的容量为1，重复的通知会被合并。
func (w *Watcher) Subscribe() (<-chan struct{}, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	ch := make(chan struct{}, 1)
	w.subs[id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
	return ch, cancel
}

// Notify 向所有订阅者发送一次非阻塞通知。
func (w *Watcher) Notify() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ch := range w.subs {
		select {
		case ch <- struct{}{}:
		default:
			// 订阅者已有待处理的通知，无需重复
		}
	}
}

// DefaultWatcher 是宝藏模块的全局通知枢纽。
var DefaultWatcher = NewWatcher()
