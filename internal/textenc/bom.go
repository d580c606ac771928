package textenc

import (
	"fmt"
	"strings"

	"mojifix/pkg/contract"
)

// BOMPolicy: 写出时的 BOM 归一策略。
type BOMPolicy string

const (
	// BOMAlways: 输出一律带 BOM；缺失 BOM 的文件即使内容未变也要重写。
	BOMAlways BOMPolicy = "always"
	// BOMPreserve: 保持输入状态。
	BOMPreserve BOMPolicy = "preserve"
	// BOMStrip: 输出一律不带 BOM；带 BOM 的文件即使内容未变也要重写。
	BOMStrip BOMPolicy = "strip"
)

// ParseBOMPolicy 解析策略名；空串取 always。
func ParseBOMPolicy(s string) (BOMPolicy, error) {
	switch p := BOMPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return BOMAlways, nil
	case BOMAlways, BOMPreserve, BOMStrip:
		return p, nil
	default:
		return "", fmt.Errorf("%w: bom policy %q", contract.ErrInvalidInput, s)
	}
}

// WantBOM 返回在该策略下输出是否带 BOM。
func (p BOMPolicy) WantBOM(hadBOM bool) bool {
	switch p {
	case BOMStrip:
		return false
	case BOMPreserve:
		return hadBOM
	default:
		return true
	}
}

// ForcesRewrite 报告仅因 BOM 归一就需要重写的情形。
func (p BOMPolicy) ForcesRewrite(hadBOM bool) bool {
	return p.WantBOM(hadBOM) != hadBOM
}

// Encode 将文本编码为 UTF-8 字节，按需前置 BOM。
func Encode(text string, withBOM bool) []byte {
	if !withBOM {
		return []byte(text)
	}
	out := make([]byte, 0, len(BOM)+len(text))
	out = append(out, BOM...)
	return append(out, text...)
}
