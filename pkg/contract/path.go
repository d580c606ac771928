package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 反斜杠统一为正斜杠
// - 清理多余分隔符与 . / .. 片段
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// RelOf 返回 p 相对 root 的 '/' 分隔路径；p 不在 root 之下时返回 p 的基名。
func RelOf(root, p string) string {
	r := string(NormalizeFileID(root))
	s := string(NormalizeFileID(p))
	if s == r {
		return path.Base(s)
	}
	prefix := r + "/"
	if r == "/" {
		prefix = "/"
	}
	if r == "." && !strings.HasPrefix(s, "/") && s != ".." && !strings.HasPrefix(s, "../") {
		return s
	}
	if strings.HasPrefix(s, prefix) {
		return strings.TrimPrefix(s, prefix)
	}
	return path.Base(s)
}
