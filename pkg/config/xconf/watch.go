package xconf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/fsnotify/fsnotify"

	"github.com/omeyang/xflow/pkg/flow/xsrcopt"
	"github.com/omeyang/xflow/pkg/observability/xlog"
)

// ReloadFunc 在每次重载后调用。成功时 s 和 t 为新配置和新表，
// 失败时二者为 nil，Holder 中保留旧表。
type ReloadFunc func(s *Settings, t *xsrcopt.Table, err error)

// ReloadObserver 观测每次重载，例如 xmetrics.Metrics。
// StartReload 返回的 end 在重载结束时调用一次。
type ReloadObserver interface {
	StartReload(ctx context.Context) (context.Context, func(err error))
}

// WatchOption 监视器配置选项
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce  time.Duration
	attempts  uint
	delay     time.Duration
	onReload  ReloadFunc
	logger    xlog.Logger
	observer  ReloadObserver
	buildOpts []xsrcopt.Option
}

func defaultWatchOptions() *watchOptions {
	return &watchOptions{
		debounce: 100 * time.Millisecond,
		attempts: 3,
		delay:    50 * time.Millisecond,
	}
}

// WithDebounce 设置防抖时间，窗口内的多次变更只触发一次重载。默认 100ms。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithRetry 设置读取失败时的总尝试次数和固定间隔。默认 3 次、50ms。
// attempts 为 0 时只尝试一次。
func WithRetry(attempts uint, delay time.Duration) WatchOption {
	return func(o *watchOptions) {
		o.attempts = max(attempts, 1)
		if delay >= 0 {
			o.delay = delay
		}
	}
}

// WithOnReload 设置重载回调。
func WithOnReload(fn ReloadFunc) WatchOption {
	return func(o *watchOptions) {
		o.onReload = fn
	}
}

// WithLogger 记录每次重载结果。
func WithLogger(l xlog.Logger) WatchOption {
	return func(o *watchOptions) {
		if l != nil {
			o.logger = l.With(xlog.Component("xconf"))
		}
	}
}

// WithObserver 设置重载观测者（指标、追踪）。
func WithObserver(obs ReloadObserver) WatchOption {
	return func(o *watchOptions) {
		o.observer = obs
	}
}

// WithBuildOptions 设置重建表时传给 xsrcopt.Build 的选项（如诊断 Reporter）。
func WithBuildOptions(opts ...xsrcopt.Option) WatchOption {
	return func(o *watchOptions) {
		o.buildOpts = append(o.buildOpts, opts...)
	}
}

// Watcher 配置文件监视器，变更后重建表并替换到 Holder。
type Watcher struct {
	path    string
	holder  *xsrcopt.Holder
	watcher *fsnotify.Watcher
	opts    *watchOptions

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
}

// Watch 创建配置文件监视器，需要调用 Start 或 StartAsync 开始监视。
//
// 监视的是文件所在目录而不是文件本身：编辑器保存时可能先删除再创建，
// 直接监视文件会丢失后续事件。
//
// 示例:
//
//	s, err := xconf.Load(path)
//	if err != nil { ... }
//	holder := xsrcopt.NewHolder(s.BuildTable(ctx))
//	w, err := xconf.Watch(path, holder, xconf.WithLogger(logger))
//	if err != nil { ... }
//	defer w.Stop()
//	w.StartAsync()
func Watch(path string, holder *xsrcopt.Holder, opts ...WatchOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if holder == nil {
		return nil, ErrNilHolder
	}
	if _, err := DetectFormat(path); err != nil {
		return nil, err
	}

	options := defaultWatchOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		closeErr := fsWatcher.Close()
		return nil, errors.Join(
			fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err),
			closeErr,
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:    path,
		holder:  holder,
		watcher: fsWatcher,
		opts:    options,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}, nil
}

// Start 启动监视并阻塞到 Stop 被调用。
func (w *Watcher) Start() {
	if !w.markRunning() {
		return
	}
	w.run()
}

// StartAsync 在后台 goroutine 中监视，立即返回。
func (w *Watcher) StartAsync() {
	if !w.markRunning() {
		return
	}
	go w.run()
}

func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视，幂等。Stop 不等待监视循环退出，因此可以在回调中调用；
// 需要等待时使用 Done。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	w.cancel()
	if !w.running {
		close(w.done)
	}
	return w.watcher.Close()
}

// Done 在监视循环退出后关闭。
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// run 运行监视循环。防抖定时器和重载都在本 goroutine 中执行，
// 因此 Done 关闭后不会再有回调。
func (w *Watcher) run() {
	defer close(w.done)

	filename := filepath.Base(w.path)
	timer := time.NewTimer(w.opts.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if relevant(event, filename) {
				timer.Reset(w.opts.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.notify(nil, nil, fmt.Errorf("xconf: watch error: %w", err))

		case <-timer.C:
			_, _, _ = w.Reload(w.ctx)
		}
	}
}

// relevant 只关心目标文件可能表示内容更新的事件：
// Write 直接修改，Create 新建，Rename 原子写入（写临时文件后 rename）。
func relevant(event fsnotify.Event, filename string) bool {
	if filepath.Base(event.Name) != filename {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// Reload 立即重新读取配置、重建表并替换到 Holder。
// 读取和解析失败按 WithRetry 重试；格式不支持不重试。失败时保留旧表。
func (w *Watcher) Reload(ctx context.Context) (s *Settings, t *xsrcopt.Table, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if w.opts.observer != nil {
		var end func(error)
		ctx, end = w.opts.observer.StartReload(ctx)
		defer func() { end(err) }()
	}

	err = retry.New(
		retry.Context(ctx),
		retry.Attempts(w.opts.attempts),
		retry.Delay(w.opts.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrUnsupportedFormat) && !errors.Is(err, ErrEmptyPath)
		}),
	).Do(func() (loadErr error) {
		s, loadErr = Load(w.path)
		return loadErr
	})
	if err != nil {
		w.notify(nil, nil, err)
		return nil, nil, err
	}

	t = s.BuildTable(ctx, w.opts.buildOpts...)
	w.holder.Store(t)
	w.notify(s, t, nil)
	return s, t, nil
}

func (w *Watcher) notify(s *Settings, t *xsrcopt.Table, err error) {
	if l := w.opts.logger; l != nil {
		if err != nil {
			l.Warn(w.ctx, "config reload failed, keeping previous table",
				slog.String(xlog.KeyPath, w.path), xlog.Err(err))
		} else {
			l.Info(w.ctx, "config reloaded",
				slog.String(xlog.KeyPath, w.path), slog.Int(xlog.KeyCount, t.Len()))
		}
	}
	if w.opts.onReload != nil {
		w.opts.onReload(s, t, err)
	}
}
