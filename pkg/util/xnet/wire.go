package xnet

import "fmt"

// WireCIDR 是 CIDR 的序列化格式，用于配置导出和命令行展示。
// Start/End 为掩码后的区间端点，反序列化时只读取 CIDR 字段。
type WireCIDR struct {
	CIDR   string `json:"cidr" yaml:"cidr"`
	Family string `json:"family,omitempty" yaml:"family,omitempty"`
	Start  string `json:"start,omitempty" yaml:"start,omitempty"`
	End    string `json:"end,omitempty" yaml:"end,omitempty"`
}

// WireCIDRFrom 从 CIDR 创建 WireCIDR。
// 无效 CIDR 返回包装 [ErrInvalidCIDR] 的错误。
func WireCIDRFrom(c CIDR) (WireCIDR, error) {
	if !c.IsValid() {
		return WireCIDR{}, fmt.Errorf("%w: zero value", ErrInvalidCIDR)
	}
	r := c.Range()
	return WireCIDR{
		CIDR:   c.String(),
		Family: c.Family().String(),
		Start:  r.From().String(),
		End:    r.To().String(),
	}, nil
}

// ToCIDR 将 WireCIDR 解析回 CIDR。
func (w WireCIDR) ToCIDR() (CIDR, error) {
	return ParseCIDR(w.CIDR)
}

// IsZero 报告 w 是否为零值。
func (w WireCIDR) IsZero() bool {
	return w == WireCIDR{}
}

// String 返回 "cidr (start-end)"，端点缺失时只返回 cidr。
func (w WireCIDR) String() string {
	if w.Start == "" || w.End == "" {
		return w.CIDR
	}
	return w.CIDR + " (" + w.Start + "-" + w.End + ")"
}
