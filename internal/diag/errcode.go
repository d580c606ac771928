package diag

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"mojifix/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/计数汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
	CodeDecode    Code = "decode"
	CodeInvariant Code = "invariant"
	CodeConfig    Code = "config"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrUndecodable) {
		return CodeDecode
	}
	if errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrUnknownComponent) ||
		errors.Is(err, contract.ErrUnknownEncoding) {
		return CodeConfig
	}
	if errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	var lerr *os.LinkError
	if errors.As(err, &lerr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
