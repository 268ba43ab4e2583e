package xnet

// Family 表示地址族。
type Family uint8

const (
	// Unspecified 表示解析失败或未配置的地址族。
	// 永远不作为通配符参与匹配。
	Unspecified Family = iota
	// IPv4 表示 IPv4 地址族。
	IPv4
	// IPv6 表示 IPv6 地址族。
	IPv6
)

// String 返回地址族的可读名称。
func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "unspecified"
	}
}

// Bits 返回地址族的地址位宽，Unspecified 返回 0。
func (f Family) Bits() int {
	switch f {
	case IPv4:
		return 32
	case IPv6:
		return 128
	default:
		return 0
	}
}
