package xnet

import "errors"

var (
	// ErrInvalidAddress 表示文本既不是合法 IPv4 也不是合法 IPv6 地址。
	ErrInvalidAddress = errors.New("xnet: invalid IP address")

	// ErrInvalidCIDR 表示无效的 "address/prefix" 字符串：
	// 缺少分隔符、前缀非法或越界、地址部分解析失败。
	ErrInvalidCIDR = errors.New("xnet: invalid CIDR")
)
