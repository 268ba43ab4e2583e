package xaggr

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/omeyang/xflow/pkg/flow/xsrcopt"
	"github.com/omeyang/xflow/pkg/util/xnet"
)

// Packet 是进入流缓存的一个报文的摘要。
type Packet struct {
	Family  xnet.Family
	Src     xnet.Addr
	Dst     xnet.Addr
	SrcPort uint16
	DstPort uint16
	Proto   uint8
	Bytes   uint64
}

// Key 是流缓存的键。聚合时被折叠的字段保持零值。
type Key struct {
	Mode    xsrcopt.Mode
	Family  xnet.Family
	Src     xnet.Addr
	Dst     xnet.Addr
	SrcPort uint16
	DstPort uint16
	Proto   uint8
}

// KeyOf 按聚合方式从报文派生流键。
func KeyOf(mode xsrcopt.Mode, p Packet) Key {
	k := Key{Mode: mode, Family: p.Family}
	switch mode {
	case xsrcopt.ModeSource:
		k.Src = p.Src
	case xsrcopt.ModeDestination:
		k.Dst = p.Dst
	default:
		k.Src, k.Dst = p.Src, p.Dst
		k.SrcPort, k.DstPort = p.SrcPort, p.DstPort
		k.Proto = p.Proto
	}
	return k
}

// keyWireSize 键的定长编码：mode(1) family(1) src(16) dst(16) ports(4) proto(1)
const keyWireSize = 39

// ID 返回流键的 64 位稳定标识（xxhash），同一个键在不同进程中结果相同。
func (k Key) ID() uint64 {
	var buf [keyWireSize]byte
	buf[0] = byte(k.Mode)
	buf[1] = byte(k.Family)
	putAddr(buf[2:18], k.Src)
	putAddr(buf[18:34], k.Dst)
	binary.BigEndian.PutUint16(buf[34:36], k.SrcPort)
	binary.BigEndian.PutUint16(buf[36:38], k.DstPort)
	buf[38] = k.Proto
	return xxhash.Sum64(buf[:])
}

// putAddr IPv4 写入前 4 字节（网络序），IPv6 写入全部 16 字节，零值保持全零。
func putAddr(dst []byte, a xnet.Addr) {
	if v, ok := a.V4(); ok {
		binary.BigEndian.PutUint32(dst, v)
		return
	}
	if v, ok := a.V6(); ok {
		copy(dst, v[:])
	}
}

// String 返回便于日志阅读的形式。
func (k Key) String() string {
	switch k.Mode {
	case xsrcopt.ModeSource:
		return fmt.Sprintf("src %s", k.Src)
	case xsrcopt.ModeDestination:
		return fmt.Sprintf("dst %s", k.Dst)
	default:
		return fmt.Sprintf("%s:%d -> %s:%d proto %d", k.Src, k.SrcPort, k.Dst, k.DstPort, k.Proto)
	}
}

// Record 是一条聚合后的流记录。
type Record struct {
	Key     Key
	ID      uint64
	Packets uint64
	Bytes   uint64
	First   time.Time
	Last    time.Time
	// Reason 说明记录离开缓存的原因。
	Reason Reason
}

// Reason 是记录被导出的原因。
//
// 原因按记录年龄优先判定：存活时间已达到 ActiveTimeout 的记录总是标记为
// ReasonTimeout，即使实际由容量淘汰、Flush 或 Close 触发；
// 其余记录在 Flush/Close 中标记为 ReasonFlush，否则为 ReasonEvicted。
type Reason uint8

const (
	// ReasonEvicted 缓存已满，淘汰最久未访问且未超时的记录。
	ReasonEvicted Reason = iota
	// ReasonTimeout 超过活动超时，优先于其他原因。
	ReasonTimeout
	// ReasonFlush 由 Flush 或 Close 主动导出的未超时记录。
	ReasonFlush
)

// String 返回原因名称。
func (r Reason) String() string {
	switch r {
	case ReasonEvicted:
		return "evicted"
	case ReasonTimeout:
		return "timeout"
	case ReasonFlush:
		return "flush"
	default:
		return fmt.Sprintf("Reason(%d)", r)
	}
}
