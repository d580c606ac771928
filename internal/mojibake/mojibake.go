// Package mojibake 逆转"UTF-8 字节被当作单字节编码读入再以 UTF-8 写回"造成的乱码链。
//
// 每一层解包：把当前文本按单字节编码逐 rune 编回字节，再把字节按 UTF-8 解码。
// 只有当结果的 rune 数严格变少时才接受该层（真实的乱码层总是把多字节序列
// 还原为更少的字符）；解包失败或长度不减即停止。整个过程是纯函数，不返回错误。
package mojibake

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"mojifix/internal/textenc"
	"mojifix/pkg/contract"
)

// MaxLayers: 单次 Repair 最多尝试的解包次数。
const MaxLayers = 5

// Hypothesis: 被认为造成误读的单字节编码（另一端固定为 UTF-8）。
type Hypothesis struct {
	Name string
	cm   *charmap.Charmap
}

var (
	// Latin1: ISO-8859-1 基本单字节映射。
	Latin1 = Hypothesis{Name: "latin1", cm: charmap.ISO8859_1}
	// Windows1252: Windows 扩展单字节映射（0x80–0x9F 区间含 €‘’“” 等）。
	Windows1252 = Hypothesis{Name: "windows-1252", cm: charmap.Windows1252}
)

// HypothesisFor 按名称构造假设；空串取 Windows1252。
func HypothesisFor(name string) (Hypothesis, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return Windows1252, nil
	case "latin1", "iso-8859-1":
		return Latin1, nil
	case "windows-1252", "cp1252":
		return Windows1252, nil
	}
	cm, err := textenc.Lookup(name)
	if err != nil {
		return Hypothesis{}, fmt.Errorf("mojibake hypothesis: %w", err)
	}
	return Hypothesis{Name: strings.ToLower(strings.TrimSpace(name)), cm: cm}, nil
}

// Unwrap 执行一层解包。任一 rune 无法编码或字节不是合法 UTF-8 时 ok=false。
func (h Hypothesis) Unwrap(text string) (string, bool) {
	if h.cm == nil {
		return "", false
	}
	b, ok := textenc.EncodeStrict(h.cm, text)
	if !ok || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// Result: 一次 Repair 的结果。
type Result struct {
	Text     string
	Layers   int   // 被接受的解包层数
	Attempts int   // 实际调用 Unwrap 的次数（<= 上限）
	Lengths  []int // 输入及每个被接受候选的 rune 数，严格递减
	Changed  bool
}

// Repair 以默认上限 MaxLayers 执行解包链。
func Repair(text string, h Hypothesis) Result {
	return RepairN(text, h, MaxLayers)
}

// RepairN 执行最多 limit 次解包（越界时取 MaxLayers）。
// 首次解包即失败或不缩短时返回原文，Layers=0。
func RepairN(text string, h Hypothesis, limit int) Result {
	if limit <= 0 || limit > MaxLayers {
		limit = MaxLayers
	}
	cur := text
	curLen := utf8.RuneCountInString(cur)
	res := Result{Lengths: []int{curLen}}
	for res.Attempts < limit {
		res.Attempts++
		next, ok := h.Unwrap(cur)
		if !ok {
			break
		}
		n := utf8.RuneCountInString(next)
		if n >= curLen {
			break
		}
		cur, curLen = next, n
		res.Layers++
		res.Lengths = append(res.Lengths, n)
	}
	res.Text = cur
	res.Changed = cur != text
	return res
}

// Note 把结果格式化为报告摘要；未改动时为空。
func (r Result) Note() contract.Note {
	if r.Layers == 0 {
		return ""
	}
	return contract.Note(fmt.Sprintf("mojibake×%d", r.Layers))
}
