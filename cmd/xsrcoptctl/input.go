package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// errUnsupportedCompression 输入文件扩展名表示压缩但无法识别。
var errUnsupportedCompression = errors.New("unsupported compression")

// openInput 打开报文输入。"" 和 "-" 表示 stdin；
// .gz 与 .zst 文件按扩展名透明解压，其余按纯文本读取。
// 返回的 close 函数负责关闭解压器和底层文件。
// zstd 使用单并发同步解码，不在后台留下 goroutine。
func openInput(path string, stdin io.Reader) (io.Reader, func() error, error) {
	if path == "" || path == "-" {
		return stdin, func() error { return nil }, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	br := bufio.NewReader(f)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gz":
		zr, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		return zr, func() error {
			return errors.Join(zr.Close(), f.Close())
		}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		return zr, func() error {
			zr.Close()
			return f.Close()
		}, nil
	case ".bz2", ".xz", ".lz4":
		_ = f.Close()
		return nil, nil, fmt.Errorf("%w: %s", errUnsupportedCompression, ext)
	default:
		return br, f.Close, nil
	}
}
