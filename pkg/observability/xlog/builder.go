package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 日志轮转默认值
const (
	// DefaultMaxSizeMB 单个日志文件最大大小（MB）
	DefaultMaxSizeMB = 100

	// DefaultMaxBackups 保留的备份文件数量
	DefaultMaxBackups = 7

	// DefaultMaxAgeDays 保留备份的天数
	DefaultMaxAgeDays = 30
)

// RotationOption 日志轮转选项
type RotationOption func(*lumberjack.Logger)

// WithMaxSize 设置单个日志文件最大大小（MB）
func WithMaxSize(mb int) RotationOption {
	return func(l *lumberjack.Logger) { l.MaxSize = mb }
}

// WithMaxBackups 设置保留的备份文件数量
func WithMaxBackups(n int) RotationOption {
	return func(l *lumberjack.Logger) { l.MaxBackups = n }
}

// WithCompress 设置是否 gzip 压缩备份文件
func WithCompress(compress bool) RotationOption {
	return func(l *lumberjack.Logger) { l.Compress = compress }
}

// Builder 日志配置构建器
//
// first-error-wins：遇到第一个配置错误后，Build 返回该错误。
type Builder struct {
	output    io.Writer
	closer    io.Closer
	levelVar  *slog.LevelVar
	format    string
	addSource bool
	attrs     []slog.Attr
	err       error
}

// New 创建配置构建器，默认 stderr、Info 级别、text 格式
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	return &Builder{
		output:   os.Stderr,
		levelVar: levelVar,
		format:   "text",
	}
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w == nil {
		b.setErr(fmt.Errorf("xlog: nil output"))
		return b
	}
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空值使用默认 text
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.setErr(fmt.Errorf("xlog: unknown format %q", format))
	}
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetAttrs 设置每条日志都携带的固定属性（如组件名）
func (b *Builder) SetAttrs(attrs ...slog.Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// SetRotation 将日志写入 filename 并按大小轮转
//
// 基于 lumberjack，默认 DefaultMaxSizeMB / DefaultMaxBackups / DefaultMaxAgeDays。
// 文件在 Build 返回的 cleanup 中关闭。
func (b *Builder) SetRotation(filename string, opts ...RotationOption) *Builder {
	if strings.TrimSpace(filename) == "" {
		b.setErr(fmt.Errorf("xlog: empty rotation filename"))
		return b
	}
	lj := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAgeDays,
	}
	for _, opt := range opts {
		opt(lj)
	}
	if lj.MaxSize <= 0 {
		b.setErr(fmt.Errorf("xlog: invalid rotation max size %d", lj.MaxSize))
		return b
	}
	b.output = lj
	b.closer = lj
	return b
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build 构建 Logger 实例
//
// 返回值：
//   - LoggerWithLevel: 日志实例，同时支持动态级别控制
//   - func() error: 清理函数，用于关闭轮转文件，可重复调用
//   - error: 配置错误
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:     b.levelVar,
		AddSource: b.addSource,
	}

	var handler slog.Handler
	switch b.format {
	case "json":
		handler = slog.NewJSONHandler(b.output, opts)
	default:
		handler = slog.NewTextHandler(b.output, opts)
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}

	logger := &xlogger{
		handler:   handler,
		levelVar:  b.levelVar,
		addSource: b.addSource,
	}

	var once sync.Once
	closer := b.closer
	cleanup := func() error {
		var err error
		once.Do(func() {
			if closer != nil {
				err = closer.Close()
			}
		})
		return err
	}

	return logger, cleanup, nil
}
