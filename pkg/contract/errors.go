package contract

import "errors"

// 最小错误分类（用于日志分类与上层策略判定）。
var (
	// ErrPathInvalid: 目标路径无效/越界（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidInput: 输入或选项非法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrUndecodable: 文件字节在所有尝试的编码下都无法解码。
	ErrUndecodable = errors.New("undecodable")
	// ErrUnknownEncoding: 配置了不支持的编码名称。
	ErrUnknownEncoding = errors.New("unknown encoding")
	// ErrUnknownComponent: 注册表中不存在该组件名。
	ErrUnknownComponent = errors.New("unknown component")
)
