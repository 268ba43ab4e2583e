package xaggr

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/omeyang/xflow/pkg/flow/xsrcopt"
)

// maxSize 缓存最大记录数上限。
const maxSize = 1 << 24

// Config 定义流缓存配置。
type Config struct {
	// Size 最大记录数，必须大于 0 且不超过 16,777,216。
	Size int

	// ActiveTimeout 记录从首个报文起的最长存活时间，到期后导出。
	// 0 表示只在淘汰、Flush 或 Close 时导出。
	ActiveTimeout time.Duration
}

// Exporter 接收离开缓存的记录。
type Exporter func(ctx context.Context, r Record)

type options struct {
	exporter Exporter
}

// Option 配置 [New]。
type Option func(*options)

// WithExporter 设置导出回调，nil 被忽略（记录被丢弃）。
func WithExporter(fn Exporter) Option {
	return func(o *options) {
		if fn != nil {
			o.exporter = fn
		}
	}
}

type pending struct {
	rec    *Record
	reason Reason
}

// Cache 按聚合方式合并报文计数的流缓存。
// 必须通过 [New] 创建。Close 之后 Add 只分类，不再记录。
type Cache struct {
	classifier xsrcopt.Classifier
	exporter   Exporter
	timeout    time.Duration

	// mu 保护 Get-修改-Add 的复合操作和记录计数
	mu  sync.Mutex
	lru *expirable.LRU[Key, *Record]

	// 淘汰回调可能来自后台清理 goroutine，只追加到 pending，不读写记录计数
	pendMu   sync.Mutex
	pend     []pending
	flushing atomic.Bool

	closed    atomic.Bool
	closeOnce sync.Once
}

// New 创建流缓存。
func New(cfg Config, classifier xsrcopt.Classifier, opts ...Option) (*Cache, error) {
	if cfg.Size <= 0 {
		return nil, ErrInvalidSize
	}
	if cfg.Size > maxSize {
		return nil, ErrSizeExceedsMax
	}
	if cfg.ActiveTimeout < 0 {
		return nil, ErrInvalidTimeout
	}
	if classifier == nil {
		return nil, ErrNilClassifier
	}

	o := &options{exporter: func(context.Context, Record) {}}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	c := &Cache{
		classifier: classifier,
		exporter:   o.exporter,
		timeout:    cfg.ActiveTimeout,
	}
	c.lru = expirable.NewLRU(cfg.Size, c.onEvict, cfg.ActiveTimeout)
	return c, nil
}

// onEvict 在 LRU 内部锁中同步执行，不得调用 c.lru 的任何方法。
// 原因按 [Reason] 描述的优先级判定：超时优先于触发淘汰的操作。
func (c *Cache) onEvict(_ Key, rec *Record) {
	reason := ReasonEvicted
	switch {
	case c.timeout > 0 && time.Since(rec.First) >= c.timeout:
		reason = ReasonTimeout
	case c.flushing.Load():
		reason = ReasonFlush
	}
	c.pendMu.Lock()
	c.pend = append(c.pend, pending{rec: rec, reason: reason})
	c.pendMu.Unlock()
}

// Add 分类报文并把计数合并到对应记录，返回聚合方式。
func (c *Cache) Add(ctx context.Context, p Packet) xsrcopt.Mode {
	mode := c.classifier.Classify(p.Family, p.Src, p.Dst)
	if c.closed.Load() {
		return mode
	}
	key := KeyOf(mode, p)
	now := time.Now()

	c.mu.Lock()
	// Close 在持有 mu 时完成最后一次导出并置位 closed，必须在锁内复查
	if c.closed.Load() {
		c.mu.Unlock()
		return mode
	}
	rec, ok := c.lru.Get(key)
	if !ok {
		// 已过期但尚未被后台清理的旧记录：先移除使其进入导出队列，再建新记录
		c.lru.Remove(key)
		rec = &Record{Key: key, ID: key.ID(), First: now}
		c.lru.Add(key, rec)
	}
	rec.Packets++
	rec.Bytes += p.Bytes
	rec.Last = now
	out := c.drainLocked()
	c.mu.Unlock()

	c.export(ctx, out)
	return mode
}

// Flush 导出并清空所有记录。
func (c *Cache) Flush(ctx context.Context) {
	if c.closed.Load() {
		return
	}
	c.export(ctx, c.purge(false))
}

// purge 在 mu 内取出全部记录。closing 为 true 时在同一临界区内置位 closed，
// 之后的 Add 不会再写入已完成最后导出的缓存。
func (c *Cache) purge(closing bool) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return nil
	}
	if closing {
		c.closed.Store(true)
	}
	c.flushing.Store(true)
	// 按从旧到新的顺序导出；Keys 不含已过期条目，剩余的由 Purge 兜底
	for _, k := range c.lru.Keys() {
		c.lru.Remove(k)
	}
	c.lru.Purge()
	c.flushing.Store(false)
	return c.drainLocked()
}

// drainLocked 取出待导出记录的快照。调用方必须持有 c.mu。
func (c *Cache) drainLocked() []Record {
	c.pendMu.Lock()
	pend := c.pend
	c.pend = nil
	c.pendMu.Unlock()

	if len(pend) == 0 {
		return nil
	}
	out := make([]Record, len(pend))
	for i, p := range pend {
		out[i] = *p.rec
		out[i].Reason = p.reason
	}
	return out
}

func (c *Cache) export(ctx context.Context, recs []Record) {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, r := range recs {
		c.exporter(ctx, r)
	}
}

// Len 返回当前记录数，可能包含已过期但尚未清理的记录。
func (c *Cache) Len() int {
	if c.closed.Load() {
		return 0
	}
	return c.lru.Len()
}

// Close 导出所有记录并停止后台清理 goroutine，幂等。
func (c *Cache) Close(ctx context.Context) {
	c.closeOnce.Do(func() {
		out := c.purge(true)
		stopCleanupGoroutine(c.lru)
		c.export(ctx, out)
	})
}
