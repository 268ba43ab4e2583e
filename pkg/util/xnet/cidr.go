package xnet

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"go4.org/netipx"
)

// CIDR 是解析后的网络描述：地址族、原始地址、前缀掩码。
//
// 地址按解析结果原样保存，不预先做掩码；掩码在 [CIDR.Contains] 比较时应用。
// 掩码与地址使用相同的 [Addr] 表示：IPv4 为主机序 uint32，IPv6 为前缀长度个
// 连续前导 1 位的 16 字节序列。
//
// 零值 CIDR 的地址族为 [Unspecified]，不匹配任何地址。
type CIDR struct {
	addr Addr
	mask Addr
	bits int
}

// ParseCIDR 解析 "address/prefix-length" 形式的字符串。
//
// 在第一个 '/' 处拆分；前缀长度必须是非空十进制数字串（不接受符号），
// IPv4 不超过 32，IPv6 不超过 128。失败时返回包装 [ErrInvalidCIDR] 的错误，
// 地址部分无效时同时包装 [ErrInvalidAddress]。
func ParseCIDR(s string) (CIDR, error) {
	addrPart, prefixPart, ok := strings.Cut(s, "/")
	if !ok {
		return CIDR{}, fmt.Errorf("%w: missing '/' in %q", ErrInvalidCIDR, s)
	}
	bits, err := parsePrefixLen(prefixPart)
	if err != nil {
		return CIDR{}, fmt.Errorf("%w: %q: %w", ErrInvalidCIDR, s, err)
	}
	addr, err := ParseAddr(addrPart)
	if err != nil {
		return CIDR{}, fmt.Errorf("%w: %w", ErrInvalidCIDR, err)
	}
	if bits > addr.family.Bits() {
		return CIDR{}, fmt.Errorf("%w: prefix length %d out of range for %s", ErrInvalidCIDR, bits, addr.family)
	}
	return CIDR{addr: addr, mask: maskOf(addr.family, bits), bits: bits}, nil
}

// MustParseCIDR 与 ParseCIDR 相同，失败时 panic。仅用于测试和常量初始化。
func MustParseCIDR(s string) CIDR {
	c, err := ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return c
}

// parsePrefixLen 只接受纯数字，拒绝 "+8"、"-1"、" 8" 和空串。
func parsePrefixLen(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty prefix length")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("prefix length %q is not a non-negative integer", s)
		}
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("prefix length %q: %w", s, err)
	}
	return int(n), nil
}

// maskOf 生成前缀长度为 bits 的掩码。调用方保证 bits 不越界。
func maskOf(f Family, bits int) Addr {
	switch f {
	case IPv4:
		if bits == 0 {
			return AddrFrom4(0)
		}
		return AddrFrom4(^uint32(0) << (32 - bits))
	case IPv6:
		var m [16]byte
		full := bits / 8
		for i := 0; i < full; i++ {
			m[i] = 0xFF
		}
		if rem := bits % 8; rem != 0 {
			m[full] = byte(0xFF << (8 - rem))
		}
		return AddrFrom16(m)
	default:
		return Addr{}
	}
}

// Family 返回地址族。
func (c CIDR) Family() Family { return c.addr.family }

// Addr 返回未做掩码的原始地址。
func (c CIDR) Addr() Addr { return c.addr }

// Mask 返回前缀掩码。
func (c CIDR) Mask() Addr { return c.mask }

// Bits 返回前缀长度。
func (c CIDR) Bits() int { return c.bits }

// IsValid 报告 c 是否来自一次成功的解析。
func (c CIDR) IsValid() bool { return c.addr.family != Unspecified }

// Contains 报告 a 是否落在 c 内。
// 候选地址和 c 的地址都先与掩码按位与再比较；地址族不同或 c 无效时返回 false。
// 不分配内存。
func (c CIDR) Contains(a Addr) bool {
	if a.family != c.addr.family {
		return false
	}
	switch a.family {
	case IPv4:
		return a.v4&c.mask.v4 == c.addr.v4&c.mask.v4
	case IPv6:
		for i := 0; i < len(a.v6); i++ {
			if a.v6[i]&c.mask.v6[i] != c.addr.v6[i]&c.mask.v6[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Prefix 返回掩码后的 [netip.Prefix]，无效 CIDR 返回零值。
func (c CIDR) Prefix() netip.Prefix {
	if !c.IsValid() {
		return netip.Prefix{}
	}
	return netip.PrefixFrom(c.addr.Netip(), c.bits).Masked()
}

// Range 返回 c 覆盖的地址区间，无效 CIDR 返回零值 [netipx.IPRange]。
func (c CIDR) Range() netipx.IPRange {
	if !c.IsValid() {
		return netipx.IPRange{}
	}
	return netipx.RangeOfPrefix(c.Prefix())
}

// Covers 报告 other 覆盖的区间是否完全落在 c 内。
// 地址族不同或任一方无效时返回 false。
func (c CIDR) Covers(other CIDR) bool {
	if !c.IsValid() || other.Family() != c.Family() {
		return false
	}
	outer, inner := c.Range(), other.Range()
	return outer.Contains(inner.From()) && outer.Contains(inner.To())
}

// String 返回 "address/bits" 形式，地址部分保留原始（未掩码）值。
func (c CIDR) String() string {
	if !c.IsValid() {
		return "invalid CIDR"
	}
	return c.addr.String() + "/" + strconv.Itoa(c.bits)
}
