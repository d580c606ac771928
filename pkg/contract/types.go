package contract

import "io"

// FileID: 逻辑文件标识（规范化路径，跨平台一致）。
type FileID string

// Source: Reader 产出的单个候选文件。
// 约束：
// - ID 稳定且去平台差异化（见 NormalizeFileID）；
// - Rel 为相对其 root 的 '/' 分隔路径，用于报告与镜像输出；单文件 root 时为基名；
// - Open 延迟打开，由 pipeline 在 worker 内调用；
// - Err 非空表示枚举阶段已失败（如子目录不可读），该条目只用于诊断，不可 Open。
type Source struct {
	ID   FileID
	Path string
	Rel  string
	Open func() (io.ReadCloser, error)
	Err  error
}

// Stdin 返回 Source 是否代表标准输入。
func (s Source) Stdin() bool { return s.ID == StdinID }

// StdinID: 根为 "-" 时使用的固定标识。
const StdinID FileID = "stdin"
