// Package transliterate 把带变音符号的拉丁字母转写为 ASCII（Tiếng Việt → Tieng Viet）。
package transliterate

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mojifix/pkg/contract"
)

// Options 为 transliterate 修复器的配置。
type Options struct {
	// AllowExts: 仅处理这些扩展名；为空不限制。
	AllowExts []string `mapstructure:"allow_exts"`
}

// Fixer 只改动拉丁字母及紧随其后的组合附加符，其余字符原样保留。
type Fixer struct {
	allow contract.ExtSet
}

// New 构造修复器。
func New(opts *Options) *Fixer {
	if opts == nil {
		opts = &Options{}
	}
	return &Fixer{allow: contract.NewExtSet(opts.AllowExts)}
}

// Name 实现 contract.Fixer。
func (f *Fixer) Name() string { return "transliterate" }

// Fix 实现 contract.Fixer。
func (f *Fixer) Fix(ctx context.Context, id contract.FileID, text string) (string, contract.Note, error) {
	if err := ctx.Err(); err != nil {
		return text, "", err
	}
	if !f.allow.Allows(string(id)) {
		return text, "", nil
	}
	out, n := String(text)
	if n == 0 {
		return text, "", nil
	}
	return out, contract.Note(fmt.Sprintf("translit×%d", n)), nil
}

// specials: NFD 不会分解的字母。
var specials = map[rune]string{
	'đ': "d",
	'Đ': "D",
}

// String 转写 s，返回结果与改动的字符数。
func String(s string) (string, int) {
	if isASCII(s) {
		return s, 0
	}
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	var sb strings.Builder
	sb.Grow(len(s))
	changed := 0
	afterLatin := false
	for _, r := range s {
		if r < utf8.RuneSelf {
			sb.WriteRune(r)
			afterLatin = unicode.IsLetter(r)
			continue
		}
		if rep, ok := specials[r]; ok {
			sb.WriteString(rep)
			changed++
			afterLatin = true
			continue
		}
		if afterLatin && unicode.Is(unicode.Mn, r) {
			// 已分解形式的附加符
			changed++
			continue
		}
		if unicode.IsLetter(r) && unicode.Is(unicode.Latin, r) {
			afterLatin = true
			if out, _, err := transform.String(strip, string(r)); err == nil && out != string(r) {
				sb.WriteString(out)
				changed++
				continue
			}
			sb.WriteRune(r)
			continue
		}
		afterLatin = false
		sb.WriteRune(r)
	}
	return sb.String(), changed
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
