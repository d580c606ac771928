// Package textenc 负责字节与文本之间的最佳努力转换：
// UTF-8 BOM 识别与剥离、严格 UTF-8 校验、单字节编码的严格编解码。
package textenc

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"mojifix/pkg/contract"
)

// BOM: UTF-8 字节序标记。
var BOM = []byte{0xEF, 0xBB, 0xBF}

// UTF8 为解码结果中 Encoding 字段的固定名。
const UTF8 = "utf-8"

// charmaps: 支持的单字节编码（名称小写）。
var charmaps = map[string]*charmap.Charmap{
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1258": charmap.Windows1258,
	"cp1258":       charmap.Windows1258,
	"windows-874":  charmap.Windows874,
}

// Lookup 按名称返回单字节编码（大小写不敏感）。
func Lookup(name string) (*charmap.Charmap, error) {
	cm, ok := charmaps[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", contract.ErrUnknownEncoding, name)
	}
	return cm, nil
}

// EncodeStrict 将 s 逐 rune 编码为 cm 下的字节；任一 rune 不可表示即失败。
func EncodeStrict(cm *charmap.Charmap, s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := cm.EncodeRune(r)
		if !ok {
			return nil, false
		}
		out = append(out, b)
	}
	return out, true
}

// DecodeStrict 将 b 逐字节按 cm 解码；cm 未定义的字节（映射为 U+FFFD）即失败。
func DecodeStrict(cm *charmap.Charmap, b []byte) (string, bool) {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		r := cm.DecodeByte(c)
		if r == utf8.RuneError {
			return "", false
		}
		sb.WriteRune(r)
	}
	return sb.String(), true
}

// Decoded: 一次最佳努力解码的结果。
type Decoded struct {
	Text     string
	BOM      bool   // 原始字节是否以 UTF-8 BOM 开头（已剥离）
	Encoding string // 实际采用的编码名
}

// Decode 按 "UTF-8（剥离一个前导 BOM）→ 各 fallback 单字节编码" 顺序尝试。
// 全部失败时返回 ErrUndecodable；fallbacks 为空时非 UTF-8 字节一律不可解码。
func Decode(raw []byte, fallbacks []string) (Decoded, error) {
	hasBOM := bytes.HasPrefix(raw, BOM)
	body := raw
	if hasBOM {
		body = raw[len(BOM):]
	}
	if utf8.Valid(body) {
		return Decoded{Text: string(body), BOM: hasBOM, Encoding: UTF8}, nil
	}
	for _, name := range fallbacks {
		cm, err := Lookup(name)
		if err != nil {
			return Decoded{}, err
		}
		// 回退解码按整段原始字节进行（BOM 在单字节编码下没有意义）
		if s, ok := DecodeStrict(cm, raw); ok {
			return Decoded{Text: s, BOM: false, Encoding: strings.ToLower(name)}, nil
		}
	}
	return Decoded{}, fmt.Errorf("%w: not valid utf-8 and %d fallback(s) failed", contract.ErrUndecodable, len(fallbacks))
}
