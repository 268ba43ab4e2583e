package xnet

import (
	"fmt"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCIDR(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantFamily Family
		wantBits   int
		wantString string
		wantPrefix string
	}{
		{name: "IPv4 /8", input: "10.0.0.0/8", wantFamily: IPv4, wantBits: 8, wantString: "10.0.0.0/8", wantPrefix: "10.0.0.0/8"},
		{name: "IPv4 unmasked address kept", input: "10.1.2.3/8", wantFamily: IPv4, wantBits: 8, wantString: "10.1.2.3/8", wantPrefix: "10.0.0.0/8"},
		{name: "IPv4 /0", input: "0.0.0.0/0", wantFamily: IPv4, wantBits: 0, wantString: "0.0.0.0/0", wantPrefix: "0.0.0.0/0"},
		{name: "IPv4 /32", input: "192.168.1.1/32", wantFamily: IPv4, wantBits: 32, wantString: "192.168.1.1/32", wantPrefix: "192.168.1.1/32"},
		{name: "IPv6 /32", input: "2001:db8::/32", wantFamily: IPv6, wantBits: 32, wantString: "2001:db8::/32", wantPrefix: "2001:db8::/32"},
		{name: "IPv6 /127", input: "2001:db8::1/127", wantFamily: IPv6, wantBits: 127, wantString: "2001:db8::1/127", wantPrefix: "2001:db8::/127"},
		{name: "IPv6 /128", input: "::1/128", wantFamily: IPv6, wantBits: 128, wantString: "::1/128", wantPrefix: "::1/128"},
		{name: "leading zeros in prefix", input: "10.0.0.0/008", wantFamily: IPv4, wantBits: 8, wantString: "10.0.0.0/8", wantPrefix: "10.0.0.0/8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCIDR(tt.input)
			require.NoError(t, err)
			assert.True(t, c.IsValid())
			assert.Equal(t, tt.wantFamily, c.Family())
			assert.Equal(t, tt.wantBits, c.Bits())
			assert.Equal(t, tt.wantString, c.String())
			assert.Equal(t, tt.wantPrefix, c.Prefix().String())
		})
	}
}

func TestParseCIDRErrors(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantAddrErr bool
	}{
		{name: "missing slash", input: "10.0.0.0"},
		{name: "empty prefix", input: "10.0.0.0/"},
		{name: "negative prefix", input: "10.0.0.0/-1"},
		{name: "signed prefix", input: "10.0.0.0/+8"},
		{name: "spaced prefix", input: "10.0.0.0/ 8"},
		{name: "IPv4 prefix too long", input: "10.0.0.0/33"},
		{name: "IPv6 prefix too long", input: "2001:db8::/129"},
		{name: "huge prefix", input: "10.0.0.0/99999999"},
		{name: "second slash", input: "10.0.0.0/8/9"},
		{name: "mask notation", input: "10.0.0.0/255.0.0.0"},
		{name: "bad address", input: "10.0.0/8", wantAddrErr: true},
		{name: "empty address", input: "/8", wantAddrErr: true},
		{name: "zone", input: "fe80::1%eth0/64", wantAddrErr: true},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCIDR(tt.input)
			assert.ErrorIs(t, err, ErrInvalidCIDR)
			if tt.wantAddrErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
			}
			assert.False(t, c.IsValid())
		})
	}
}

func TestCIDRMaskIPv4LeadingOnes(t *testing.T) {
	for n := 0; n <= 32; n++ {
		c := MustParseCIDR(fmt.Sprintf("203.0.113.7/%d", n))
		m, ok := c.Mask().V4()
		require.True(t, ok)
		assert.Equal(t, n, bits.LeadingZeros32(^m), "prefix %d", n)
		assert.Equal(t, n, bits.OnesCount32(m), "prefix %d", n)
	}
}

func TestCIDRMaskIPv6LeadingOnes(t *testing.T) {
	for n := 0; n <= 128; n++ {
		c := MustParseCIDR(fmt.Sprintf("2001:db8::1/%d", n))
		m, ok := c.Mask().V6()
		require.True(t, ok)

		leading, total := 0, 0
		inOnes := true
		for _, b := range m {
			total += bits.OnesCount8(b)
			if !inOnes {
				continue
			}
			l := bits.LeadingZeros8(^b)
			leading += l
			if l < 8 {
				inOnes = false
			}
		}
		assert.Equal(t, n, leading, "prefix %d", n)
		assert.Equal(t, n, total, "prefix %d", n)
	}
}

func TestCIDRContains(t *testing.T) {
	tests := []struct {
		cidr string
		addr string
		want bool
	}{
		{"10.0.0.0/8", "10.0.0.0", true},
		{"10.0.0.0/8", "10.255.255.255", true},
		{"10.0.0.0/8", "11.0.0.0", false},
		{"10.1.2.3/8", "10.200.0.1", true},
		{"10.0.1.0/24", "10.0.1.23", true},
		{"10.0.1.0/24", "10.0.2.23", false},
		{"0.0.0.0/0", "1.1.1.1", true},
		{"0.0.0.0/0", "255.255.255.255", true},
		{"192.168.1.1/32", "192.168.1.1", true},
		{"192.168.1.1/32", "192.168.1.2", false},
		{"2001:db8::/32", "2001:db8:abcd::ff", true},
		{"2001:db8::/32", "2001:db9::1", false},
		{"2001:db8::/33", "2001:db8:7fff::1", true},
		{"2001:db8::/33", "2001:db8:8000::1", false},
		{"::/0", "fe80::1", true},
		// 地址族不同永不匹配
		{"0.0.0.0/0", "::", false},
		{"::/0", "10.0.0.1", false},
		{"::ffff:0:0/96", "10.0.0.1", false},
		{"10.0.0.0/8", "::ffff:10.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.cidr+"_"+tt.addr, func(t *testing.T) {
			c := MustParseCIDR(tt.cidr)
			a := MustParseAddr(tt.addr)
			assert.Equal(t, tt.want, c.Contains(a))
		})
	}
}

func TestCIDRZeroValueNeverMatches(t *testing.T) {
	var c CIDR
	assert.False(t, c.Contains(MustParseAddr("0.0.0.0")))
	assert.False(t, c.Contains(MustParseAddr("::")))
	assert.False(t, c.Contains(Addr{}))
	assert.Equal(t, "invalid CIDR", c.String())
	assert.False(t, c.Prefix().IsValid())
	assert.False(t, c.Range().IsValid())
	assert.False(t, c.Covers(MustParseCIDR("10.0.0.0/8")))
}

func TestCIDRRange(t *testing.T) {
	r := MustParseCIDR("2001:db8::/32").Range()
	assert.Equal(t, "2001:db8::", r.From().String())
	assert.Equal(t, "2001:db8:ffff:ffff:ffff:ffff:ffff:ffff", r.To().String())

	r = MustParseCIDR("10.1.2.3/16").Range()
	assert.Equal(t, "10.1.0.0", r.From().String())
	assert.Equal(t, "10.1.255.255", r.To().String())
}

func TestCIDRCovers(t *testing.T) {
	tests := []struct {
		outer, inner string
		want         bool
	}{
		{"10.0.0.0/8", "10.0.1.0/24", true},
		{"10.0.0.0/8", "10.0.0.0/8", true},
		{"10.0.0.0/8", "10.9.9.9/32", true},
		{"10.0.0.0/8", "11.0.0.0/24", false},
		{"10.0.0.0/8", "0.0.0.0/0", false},
		{"10.0.0.0/8", "10.0.0.0/7", false},
		{"2001:db8::/32", "2001:db8:abcd::/48", true},
		{"2001:db8::/32", "2001:db9::/48", false},
		{"10.0.0.0/8", "::/0", false},
	}

	for _, tt := range tests {
		t.Run(tt.outer+"_"+tt.inner, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParseCIDR(tt.outer).Covers(MustParseCIDR(tt.inner)))
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParseCIDR("bad") })
	assert.Panics(t, func() { MustParseAddr("bad") })
}
