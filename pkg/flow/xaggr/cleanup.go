package xaggr

import (
	"reflect"
	"unsafe"
)

// stopCleanupGoroutine 停止 expirable.LRU 内部的过期清理 goroutine。
// 返回 false 表示降级为无操作（上游结构变化或通道已关闭）。
//
// 设计决策: golang-lru/v2@v2.0.7 在 TTL > 0 时启动后台清理 goroutine，
// 但没有公开的 Close。这里通过 reflect + unsafe 关闭内部 done 通道。
// TestStopCleanupGoroutine_UpstreamStruct 在上游字段变化时失败。
//
// 维护须知: 升级 golang-lru 时检查上游是否已提供 Close，有则改为直接调用。
func stopCleanupGoroutine(lru any) (stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			stopped = false
		}
	}()

	v := reflect.ValueOf(lru)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return false
	}
	done := v.Elem().FieldByName("done")
	if !done.IsValid() || done.IsNil() || done.Type() != reflect.TypeOf(make(chan struct{})) {
		return false
	}
	ch := *(*chan struct{})(unsafe.Pointer(done.UnsafeAddr())) //nolint:gosec // 有意访问上游未导出字段
	close(ch)
	return true
}
