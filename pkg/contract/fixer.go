package contract

import "context"

// Fixer: 对单个文件的文本做一次纯文本修复。
// 约束：
//   - 无 I/O、无跨文件状态（实现内部的只读表/缓存除外）；
//   - 无改动时原样返回 text，Note 为空；
//   - 返回的 error 只表示实现自身故障；"没有可修的"不是错误。
type Fixer interface {
	Name() string
	Fix(ctx context.Context, id FileID, text string) (string, Note, error)
}

// Note: 一次修复的摘要，进入报告行（例如 "mojibake×2"）。
type Note string
