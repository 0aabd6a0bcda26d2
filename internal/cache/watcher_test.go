package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatcherNotifySubscribers(t *testing.T) {
	w := NewWatcher()
	ch1, cancel1 := w.Subscribe()
	ch2, cancel2 := w.Subscribe()
	defer cancel1()
	defer cancel2()

	w.Notify()

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("订阅者1未收到通知")
	}
	select {
	case <-ch2:
	case <-time.After(time.Second):
		t.Fatal("订阅者2未收到通知")
	}
}

func TestWatcherCoalescesNotifications(t *testing.T) {
	w := NewWatcher()
	ch, cancel := w.Subscribe()
	defer cancel()

	// 连续通知不会阻塞，也不会堆积
	for i := 0; i < 10; i++ {
		w.Notify()
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("重复通知未被合并")
	default:
	}
}

func TestWatcherCancelStopsDelivery(t *testing.T) {
	w := NewWatcher()
	ch, cancel := w.Subscribe()
	cancel()

	w.Notify()

	select {
	case <-ch:
		t.Fatal("取消后仍收到通知")
	default:
	}
}

func TestWatcherNotifyWithoutSubscribers(t *testing.T) {
	w := NewWatcher()
	assert.NotPanics(t, func() { w.Notify() })
}
