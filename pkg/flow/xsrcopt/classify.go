package xsrcopt

import (
	"sync/atomic"

	"github.com/omeyang/xflow/pkg/util/xnet"
)

// Classifier 根据报文地址决定流缓存的聚合方式。
// 实现必须可被多个报文处理 goroutine 并发调用。
type Classifier interface {
	Classify(family xnet.Family, src, dst xnet.Addr) Mode
}

// 编译时接口检查
var (
	_ Classifier = (*Table)(nil)
	_ Classifier = (*Holder)(nil)
)

// Classify 返回报文的聚合方式。
//
// 按配置顺序遍历条目，第一个主 CIDR 包含源地址或目的地址的条目决定结果，
// 源地址优先：
//   - 源地址在主范围内：命中排除项返回 ModeDestination，否则 ModeSource
//   - 否则目的地址在主范围内：命中排除项返回 ModeSource，否则 ModeDestination
//
// 排除项反转聚合键，而不是关闭聚合。没有条目匹配、表为空或 nil、
// family 为 Unspecified 时返回 ModeNone。地址族与条目不同永不匹配。
//
// 纯函数：不分配内存、不加锁、不修改表。
func (t *Table) Classify(family xnet.Family, src, dst xnet.Addr) Mode {
	if t == nil || family == xnet.Unspecified {
		return ModeNone
	}
	for i := range t.entries {
		e := &t.entries[i]
		if e.cidr.Family() != family {
			continue
		}
		var (
			mode Mode
			addr xnet.Addr
		)
		switch {
		case e.cidr.Contains(src):
			mode, addr = ModeSource, src
		case e.cidr.Contains(dst):
			mode, addr = ModeDestination, dst
		default:
			continue
		}
		if e.Excludes(addr) {
			return mode.Invert()
		}
		return mode
	}
	return ModeNone
}

// Holder 持有当前生效的 Table，支持整表原子替换（配置热加载）。
//
// 每张 Table 自身不可变；Store 之后新的 Classify 调用看到新表，
// 正在执行的调用继续使用旧表。零值可用，未 Store 前所有报文返回 ModeNone。
type Holder struct {
	p atomic.Pointer[Table]
}

// NewHolder 创建持有 t 的 Holder。
func NewHolder(t *Table) *Holder {
	h := &Holder{}
	h.p.Store(t)
	return h
}

// Load 返回当前表，可能为 nil。
func (h *Holder) Load() *Table { return h.p.Load() }

// Store 替换当前表并返回旧表。
func (h *Holder) Store(t *Table) *Table { return h.p.Swap(t) }

// Classify 使用当前表分类。
func (h *Holder) Classify(family xnet.Family, src, dst xnet.Addr) Mode {
	return h.p.Load().Classify(family, src, dst)
}
