package lock

import (
	"context"
	"sync"
)

// ResourceLocker 资源级互斥锁。
// 同一 resourceID 上的 Acquire 互斥；不同 resourceID 完全独立。
// release 必须在持锁方完成“校验 + 提交”之后调用。
type ResourceLocker interface {
	Acquire(ctx context.Context, resourceID string) (release func(), err error)
}

// LocalLocker 进程内实现（单实例 / 开发环境 / 测试）。
// 多实例部署时进程内锁不具备跨进程互斥能力，必须使用 RedisLocker。
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Acquire(ctx context.Context, resourceID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	m, ok := l.locks[resourceID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[resourceID] = m
	}
	l.mu.Unlock()

	// 调度操作都是短平快的单次执行，阻塞等待即可
	m.Lock()
	return m.Unlock, nil
}
