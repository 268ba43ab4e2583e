package xnet

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"
)

// Addr 是按地址族区分的二进制地址。
//
// IPv4 以主机字节序的 uint32 保存（数值上高位为第一个八位组），
// IPv6 以 16 字节不透明序列保存，按字节比较，不做字节序转换。
// 零值的地址族为 [Unspecified]。
//
// Addr 是可比较的值类型，可直接用作 map key。
type Addr struct {
	family Family
	v4     uint32
	v6     [16]byte
}

// AddrFrom4 从主机字节序的 uint32 创建 IPv4 地址。
func AddrFrom4(v uint32) Addr {
	return Addr{family: IPv4, v4: v}
}

// AddrFrom16 从 16 字节创建 IPv6 地址。
// 即使内容是 IPv4-mapped 形式，结果也是 IPv6 地址族。
func AddrFrom16(b [16]byte) Addr {
	return Addr{family: IPv6, v6: b}
}

// ParseAddr 将文本地址转换为二进制形式。
//
// 先按点分十进制 IPv4 解析，失败后按冒号十六进制 IPv6 解析。
// "::ffff:1.2.3.4" 属于 IPv6 地址族。带 zone 的地址（如 "fe80::1%eth0"）被拒绝。
// 两者都失败时返回包装 [ErrInvalidAddress] 的错误。
func ParseAddr(s string) (Addr, error) {
	if strings.Contains(s, "%") {
		return Addr{}, fmt.Errorf("%w: zone is not allowed: %q", ErrInvalidAddress, s)
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return AddrFromNetip(ip), nil
}

// MustParseAddr 与 ParseAddr 相同，失败时 panic。仅用于测试和常量初始化。
func MustParseAddr(s string) Addr {
	a, err := ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddrFromNetip 将 [netip.Addr] 转为 Addr。
// Is4 地址转为 IPv4，其余有效地址（包括 IPv4-mapped）转为 IPv6，
// 无效地址返回零值。zone 信息被丢弃。
func AddrFromNetip(ip netip.Addr) Addr {
	switch {
	case ip.Is4():
		b := ip.As4()
		return AddrFrom4(binary.BigEndian.Uint32(b[:]))
	case ip.Is6():
		return AddrFrom16(ip.As16())
	default:
		return Addr{}
	}
}

// Netip 将 Addr 转为 [netip.Addr]，Unspecified 返回零值。
func (a Addr) Netip() netip.Addr {
	switch a.family {
	case IPv4:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], a.v4)
		return netip.AddrFrom4(b)
	case IPv6:
		return netip.AddrFrom16(a.v6)
	default:
		return netip.Addr{}
	}
}

// Family 返回地址族。
func (a Addr) Family() Family { return a.family }

// IsValid 报告地址族是否已确定。
func (a Addr) IsValid() bool { return a.family != Unspecified }

// V4 返回主机字节序的 IPv4 值，非 IPv4 地址返回 (0, false)。
func (a Addr) V4() (uint32, bool) {
	if a.family != IPv4 {
		return 0, false
	}
	return a.v4, true
}

// V6 返回 IPv6 的 16 字节，非 IPv6 地址返回 (零值, false)。
func (a Addr) V6() ([16]byte, bool) {
	if a.family != IPv6 {
		return [16]byte{}, false
	}
	return a.v6, true
}

// String 返回地址的标准文本形式，Unspecified 返回 "invalid IP"。
func (a Addr) String() string {
	if a.family == Unspecified {
		return "invalid IP"
	}
	return a.Netip().String()
}
