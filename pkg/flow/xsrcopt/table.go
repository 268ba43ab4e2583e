package xsrcopt

import (
	"context"
	"fmt"
	"strings"

	"github.com/omeyang/xflow/pkg/util/xnet"
)

// Entry 是一个网络条目：一个主 CIDR 加上按配置顺序排列的排除项。
//
// 排除项存放在固定容量数组中，由显式计数 n 标记结束，
// 因此 "/0" 排除项是合法值（排除整个主范围），不会被误当作列表终止符。
type Entry struct {
	cidr       xnet.CIDR
	exclusions [MaxExclusions]xnet.CIDR
	n          int
}

// CIDR 返回主 CIDR。主 CIDR 解析失败的条目返回零值（永不匹配）。
func (e *Entry) CIDR() xnet.CIDR { return e.cidr }

// Exclusions 返回排除项副本。
func (e *Entry) Exclusions() []xnet.CIDR {
	return append([]xnet.CIDR(nil), e.exclusions[:e.n]...)
}

// Matches 报告 a 是否落在主 CIDR 内（不考虑排除项）。
func (e *Entry) Matches(a xnet.Addr) bool { return e.cidr.Contains(a) }

// Excludes 报告 a 是否命中任一排除项，按配置顺序检查，命中即返回。
func (e *Entry) Excludes(a xnet.Addr) bool {
	for i := 0; i < e.n; i++ {
		if e.exclusions[i].Contains(a) {
			return true
		}
	}
	return false
}

// Table 是按配置顺序排列的网络条目表。
//
// Table 由 [Build] 一次性构建，此后不可变，可被任意多个 goroutine 并发读取，
// 无需加锁。需要替换整张表时使用 [Holder]。
type Table struct {
	entries []Entry
	limit   int
}

// Build 从配置字符串构建条目表，从不失败。
//
// 每个字符串形如 "main_cidr[,exclude_cidr]*"，各段去除首尾空白。
// 空白字符串和空的排除段被跳过。limit 原样保存，当前不参与匹配。
//
// 问题以诊断形式报告给 [WithReporter] 指定的 Reporter：
//   - 主 CIDR 无效：条目仍占位但永不匹配，其排除项照常解析（随后因地址族不符被丢弃）
//   - 排除项无效或地址族不符：丢弃该项，继续处理后续排除项
//   - 排除项不在主范围内：保留并按字面生效
//   - 超过条目/排除项上限：丢弃超出部分
func Build(ctx context.Context, limit int, specs []string, opts ...Option) *Table {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	t := &Table{
		entries: make([]Entry, 0, min(len(specs), o.maxEntries)),
		limit:   limit,
	}
	for i, spec := range specs {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		if len(t.entries) >= o.maxEntries {
			o.reporter.Report(ctx, Diagnostic{
				Kind:      DiagCapacity,
				Entry:     i,
				Exclusion: -1,
				Token:     spec,
				Err:       fmt.Errorf("%w: at most %d entries", ErrCapacity, o.maxEntries),
			})
			continue
		}
		t.entries = append(t.entries, Entry{})
		buildEntry(ctx, &t.entries[len(t.entries)-1], i, spec, o)
	}
	return t
}

// buildEntry 原地填充 e，避免复制较大的 Entry。
func buildEntry(ctx context.Context, e *Entry, idx int, spec string, o *options) {
	tokens := strings.Split(spec, ",")

	main := strings.TrimSpace(tokens[0])
	c, err := xnet.ParseCIDR(main)
	if err != nil {
		o.reporter.Report(ctx, Diagnostic{Kind: DiagInvalidCIDR, Entry: idx, Exclusion: -1, Token: main, Err: err})
	} else {
		e.cidr = c
		o.reporter.Report(ctx, Diagnostic{Kind: DiagEntryAdded, Entry: idx, Exclusion: -1, Token: main})
	}

	for j, tok := range tokens[1:] {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		d := Diagnostic{Entry: idx, Exclusion: j, Token: tok}

		x, err := xnet.ParseCIDR(tok)
		switch {
		case err != nil:
			d.Kind, d.Err = DiagInvalidCIDR, err
		case x.Family() != e.cidr.Family():
			d.Kind = DiagFamilyMismatch
			d.Err = fmt.Errorf("%w: %s exclusion in %s entry", ErrFamilyMismatch, x.Family(), e.cidr.Family())
		case e.n >= o.maxExclusions:
			d.Kind = DiagCapacity
			d.Err = fmt.Errorf("%w: at most %d exclusions per entry", ErrCapacity, o.maxExclusions)
		default:
			e.exclusions[e.n] = x
			e.n++
			d.Kind = DiagExclusionAdded
			if !e.cidr.Covers(x) {
				d.Kind = DiagNotSubset
				d.Err = fmt.Errorf("%w: %s not within %s", ErrNotSubset, x, e.cidr)
			}
		}
		o.reporter.Report(ctx, d)
	}
}

// Len 返回条目数（包括主 CIDR 无效的占位条目）。
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Limit 返回构建时传入的 limit。
func (t *Table) Limit() int {
	if t == nil {
		return 0
	}
	return t.limit
}

// Entry 返回第 i 个条目的副本。
func (t *Table) Entry(i int) (Entry, bool) {
	if t == nil || i < 0 || i >= len(t.entries) {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Entries 返回所有条目的副本。
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	return append([]Entry(nil), t.entries...)
}
