package xaggr

import "errors"

var (
	// ErrInvalidSize 表示缓存容量配置无效。
	ErrInvalidSize = errors.New("xaggr: size must be greater than 0")

	// ErrSizeExceedsMax 表示缓存容量超过上限。
	ErrSizeExceedsMax = errors.New("xaggr: size must not exceed 16777216")

	// ErrInvalidTimeout 表示活动超时为负值。
	ErrInvalidTimeout = errors.New("xaggr: active timeout must not be negative")

	// ErrNilClassifier 表示未提供分类器。
	ErrNilClassifier = errors.New("xaggr: nil classifier")
)
