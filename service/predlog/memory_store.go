/*
 * @module service/predlog/memory_store
 * @description 预测/反馈日志的内存实现,用于单元测试和无Redis环境的降级运行
 * @architecture 适配器模式 - 与Redis实现共享Store接口
 * @stateFlow 写入(记录过期时间) -> 读取时惰性过期 -> 近期窗口环形裁剪
 * @rules 行为与Redis实现保持一致:过期条目读取返回未找到
 * @dependencies sync, time
 * @refs service/predlog/store.go, testutil/test_helper.go
 */

package predlog

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore 内存日志存储
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	recent    [][]byte
	maxRecent int
	now       func() time.Time // 可注入时钟,便于测试TTL
}

// NewMemoryStore 创建内存日志存储
func NewMemoryStore(maxRecent int) *MemoryStore {
	if maxRecent <= 0 {
		maxRecent = 5000
	}
	return &MemoryStore{
		entries:   make(map[string]memoryEntry),
		maxRecent: maxRecent,
		now:       time.Now,
	}
}

// SetClock 注入时钟函数,仅测试使用
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Put 写入带TTL的条目
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	m.entries[key] = memoryEntry{value: cp, expiresAt: m.now().Add(ttl)}
	return nil
}

// Get 读取条目,惰性清理过期键
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// AppendRecent 追加条目到近期窗口
func (m *MemoryStore) AppendRecent(ctx context.Context, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	m.recent = append([][]byte{cp}, m.recent...)
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[:m.maxRecent]
	}
	return nil
}

// Recent 返回近期窗口条目,最新在前
func (m *MemoryStore) Recent(ctx context.Context, limit int) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}
	out := make([][]byte, limit)
	copy(out, m.recent[:limit])
	return out, nil
}

// Close 无资源需要释放
func (m *MemoryStore) Close() error {
	return nil
}
