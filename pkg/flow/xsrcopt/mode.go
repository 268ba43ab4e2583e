package xsrcopt

import "strconv"

// Mode 是流缓存的聚合方式。
type Mode uint8

const (
	// ModeNone 不聚合，流记录按完整五元组区分。
	ModeNone Mode = iota
	// ModeSource 按源地址聚合。
	ModeSource
	// ModeDestination 按目的地址聚合。
	ModeDestination
)

// String 返回聚合方式的简短名称，用于日志和指标标签。
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeSource:
		return "src"
	case ModeDestination:
		return "dst"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Invert 交换源与目的，ModeNone 保持不变。
// 地址命中条目的排除项时，Classify 用它反转聚合键。
func (m Mode) Invert() Mode {
	switch m {
	case ModeSource:
		return ModeDestination
	case ModeDestination:
		return ModeSource
	default:
		return m
	}
}
