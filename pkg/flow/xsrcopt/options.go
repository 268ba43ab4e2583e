package xsrcopt

// 容量硬上限。条目和排除项都存放在固定容量的容器中，分类路径不分配内存。
const (
	// MaxEntries 单张表最多的网络条目数。
	MaxEntries = 64

	// MaxExclusions 单个条目最多的排除项数。
	MaxExclusions = 16
)

type options struct {
	reporter      Reporter
	maxEntries    int
	maxExclusions int
}

func defaultOptions() *options {
	return &options{
		reporter:      NopReporter{},
		maxEntries:    MaxEntries,
		maxExclusions: MaxExclusions,
	}
}

// Option 配置 [Build]。
type Option func(*options)

// WithReporter 设置构建期诊断的接收方，nil 被忽略。
func WithReporter(r Reporter) Option {
	return func(o *options) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithMaxEntries 降低条目上限。n <= 0 被忽略，超过 [MaxEntries] 按 MaxEntries 处理。
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = min(n, MaxEntries)
		}
	}
}

// WithMaxExclusions 降低每个条目的排除项上限。
// n <= 0 被忽略，超过 [MaxExclusions] 按 MaxExclusions 处理。
func WithMaxExclusions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxExclusions = min(n, MaxExclusions)
		}
	}
}
