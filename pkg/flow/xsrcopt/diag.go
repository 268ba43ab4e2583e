package xsrcopt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/omeyang/xflow/pkg/observability/xlog"
)

// DiagKind 是构建期诊断的类别。
type DiagKind uint8

const (
	// DiagEntryAdded 主 CIDR 解析成功，条目已加入表。
	DiagEntryAdded DiagKind = iota
	// DiagExclusionAdded 排除项已加入条目。
	DiagExclusionAdded
	// DiagInvalidCIDR 主 CIDR 或排除项解析失败。
	// 主 CIDR 失败时条目仍占位但永不匹配；排除项失败时该项被跳过。
	DiagInvalidCIDR
	// DiagFamilyMismatch 排除项地址族与主 CIDR 不同，已丢弃。
	DiagFamilyMismatch
	// DiagNotSubset 排除项不在主 CIDR 内，仍按配置生效。
	DiagNotSubset
	// DiagCapacity 超过条目或排除项上限，超出部分已丢弃。
	DiagCapacity
)

// String 返回诊断类别名称，用于日志和指标标签。
func (k DiagKind) String() string {
	switch k {
	case DiagEntryAdded:
		return "entry_added"
	case DiagExclusionAdded:
		return "exclusion_added"
	case DiagInvalidCIDR:
		return "invalid_cidr"
	case DiagFamilyMismatch:
		return "family_mismatch"
	case DiagNotSubset:
		return "not_subset"
	case DiagCapacity:
		return "capacity"
	default:
		return "DiagKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// IsProblem 报告该类别是否表示配置问题（而非正常的添加通知）。
func (k DiagKind) IsProblem() bool {
	return k >= DiagInvalidCIDR
}

// Diagnostic 是构建表时产生的一条诊断。诊断从不中断构建。
type Diagnostic struct {
	Kind DiagKind
	// Entry 是配置列表中的位置（从 0 开始）。
	Entry int
	// Exclusion 是排除项序号（从 0 开始），-1 表示主 CIDR。
	Exclusion int
	// Token 是触发诊断的原始文本。
	Token string
	// Err 仅在 Kind.IsProblem() 时非 nil，支持 errors.Is。
	Err error
}

// Message 返回面向运维的简短描述。
func (d Diagnostic) Message() string {
	switch d.Kind {
	case DiagEntryAdded:
		return "adding network for source optimization"
	case DiagExclusionAdded:
		return "excluding network from source optimization"
	case DiagInvalidCIDR:
		if d.Exclusion < 0 {
			return "invalid network range, entry will never match"
		}
		return "invalid network exclude range, skipped"
	case DiagFamilyMismatch:
		return "invalid network exclude range, family does not match main range"
	case DiagNotSubset:
		return "network exclude range is not part of main range, applied as configured"
	case DiagCapacity:
		return "too many network ranges, dropped"
	default:
		return d.Kind.String()
	}
}

// String 返回单行文本形式，便于命令行输出。
func (d Diagnostic) String() string {
	pos := "entry " + strconv.Itoa(d.Entry)
	if d.Exclusion >= 0 {
		pos += " exclusion " + strconv.Itoa(d.Exclusion)
	}
	s := fmt.Sprintf("%s [%s] %s: %q", pos, d.Kind, d.Message(), d.Token)
	if d.Err != nil {
		s += ": " + d.Err.Error()
	}
	return s
}

// Reporter 接收构建期诊断。Build 在单个 goroutine 中同步调用 Report。
type Reporter interface {
	Report(ctx context.Context, d Diagnostic)
}

// ReporterFunc 将普通函数适配为 Reporter。
type ReporterFunc func(ctx context.Context, d Diagnostic)

// Report 调用 f。
func (f ReporterFunc) Report(ctx context.Context, d Diagnostic) { f(ctx, d) }

// NopReporter 丢弃所有诊断。
type NopReporter struct{}

// Report 空实现。
func (NopReporter) Report(context.Context, Diagnostic) {}

// MultiReporter 将诊断依次转发给多个 Reporter，nil 元素被跳过。
func MultiReporter(rs ...Reporter) Reporter {
	return ReporterFunc(func(ctx context.Context, d Diagnostic) {
		for _, r := range rs {
			if r != nil {
				r.Report(ctx, d)
			}
		}
	})
}

// Collector 收集诊断，并发安全。
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Report 记录一条诊断。
func (c *Collector) Report(_ context.Context, d Diagnostic) {
	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.mu.Unlock()
}

// Diagnostics 返回已收集诊断的副本。
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.diags...)
}

// Problems 返回 Kind.IsProblem() 为真的诊断。
func (c *Collector) Problems() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Diagnostic
	for _, d := range c.diags {
		if d.Kind.IsProblem() {
			out = append(out, d)
		}
	}
	return out
}

// NewLogReporter 返回写入 xlog 的 Reporter：添加通知记为 Info，问题记为 Warn。
// logger 为 nil 时返回 [NopReporter]。
func NewLogReporter(logger xlog.Logger) Reporter {
	if logger == nil {
		return NopReporter{}
	}
	return &logReporter{logger: logger.With(xlog.Component("srcopt"))}
}

type logReporter struct {
	logger xlog.Logger
}

func (r *logReporter) Report(ctx context.Context, d Diagnostic) {
	attrs := []slog.Attr{
		slog.String("kind", d.Kind.String()),
		slog.Int("entry", d.Entry),
		slog.String("range", d.Token),
	}
	if d.Exclusion >= 0 {
		attrs = append(attrs, slog.Int("exclusion", d.Exclusion))
	}
	if d.Err != nil {
		attrs = append(attrs, xlog.Err(d.Err))
	}
	if d.Kind.IsProblem() {
		r.logger.Warn(ctx, d.Message(), attrs...)
		return
	}
	r.logger.Info(ctx, d.Message(), attrs...)
}
