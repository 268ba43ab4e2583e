package xsrcopt

import "errors"

// 构建期诊断携带的错误。解析失败使用 xnet.ErrInvalidCIDR / xnet.ErrInvalidAddress。
var (
	// ErrFamilyMismatch 表示排除项与主 CIDR 的地址族不同，该排除项被丢弃。
	ErrFamilyMismatch = errors.New("xsrcopt: exclusion family does not match main range")

	// ErrNotSubset 表示排除项不完全落在主 CIDR 内，该排除项仍按配置生效。
	ErrNotSubset = errors.New("xsrcopt: exclusion is not a subset of main range")

	// ErrCapacity 表示条目或排除项超过上限，超出部分被丢弃。
	ErrCapacity = errors.New("xsrcopt: capacity exceeded")
)
