// Package header 剥离文件开头由 BOM 多次误读累积出的残骸。
package header

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"mojifix/pkg/contract"
)

// 策略名。
const (
	StrategyKnown    = "known"
	StrategyNonASCII = "non_ascii"
	StrategyAnchor   = "anchor"
)

// KnownPatterns: 文件头常见的 BOM 残骸（BOM 被按单字节编码误读后的各种形态）。
var KnownPatterns = []string{
	"\ufeff",
	"ï»¿",
	"A¯A»A¿",
	"Ã¯Â»Â¿",
	"AƒA¯A‚A»A‚A¿",
	"AƒAƒA‚A¯AƒA‚A‚A»AƒA‚A‚A¿",
	"ï»¿A¯A»A¿AƒA¯A‚A»A‚A¿AƒAƒA‚A¯AƒA‚A‚A»AƒA‚A‚A¿",
}

// DefaultAnchors: 合法文件开头的标记（C#、Razor、HTML、JS、Go）。
var DefaultAnchors = []string{
	"using ",
	"namespace ",
	"@model",
	"@page",
	"@using",
	"@addTagHelper",
	"@inherits",
	"@{",
	"<!DOCTYPE",
	"<html",
	"<head",
	"<body",
	"//",
	"/*",
	"package ",
	"<!--",
	"<",
}

// Options 为 header 修复器的配置。
type Options struct {
	// Strategies: 依序执行的策略；为空取 ["known"]。
	Strategies []string `mapstructure:"strategies"`
	// ExtraPatterns: 追加到 known 策略的残骸前缀。
	ExtraPatterns []string `mapstructure:"extra_patterns"`
	// Anchors: anchor 策略使用的标记；为空取 DefaultAnchors。
	Anchors []string `mapstructure:"anchors"`
	// AllowExts: 仅处理这些扩展名；为空不限制。
	AllowExts []string `mapstructure:"allow_exts"`
}

type stripFunc func(string) string

// Fixer 剥离文件开头的编码残骸。只修改文本开头，不触碰其余内容。
type Fixer struct {
	names []string
	steps []stripFunc
	allow contract.ExtSet
}

// New 校验选项并构造修复器。
func New(opts *Options) (*Fixer, error) {
	if opts == nil {
		opts = &Options{}
	}
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = []string{StrategyKnown}
	}
	f := &Fixer{allow: contract.NewExtSet(opts.AllowExts)}
	for _, s := range strategies {
		name := strings.ToLower(strings.TrimSpace(s))
		switch name {
		case StrategyKnown:
			pats, err := knownPatterns(opts.ExtraPatterns)
			if err != nil {
				return nil, err
			}
			f.steps = append(f.steps, func(t string) string { return stripKnown(t, pats) })
		case StrategyNonASCII:
			f.steps = append(f.steps, stripNonASCII)
		case StrategyAnchor:
			anchors := opts.Anchors
			if len(anchors) == 0 {
				anchors = DefaultAnchors
			}
			for _, a := range anchors {
				if a == "" {
					return nil, fmt.Errorf("%w: header: empty anchor", contract.ErrInvalidInput)
				}
			}
			f.steps = append(f.steps, func(t string) string { return stripBeforeAnchor(t, anchors) })
		default:
			return nil, fmt.Errorf("%w: header: unknown strategy %q", contract.ErrInvalidInput, s)
		}
		f.names = append(f.names, name)
	}
	return f, nil
}

// Name 实现 contract.Fixer。
func (f *Fixer) Name() string { return "header" }

// Fix 依序执行各策略；Note 记录生效的策略与剥离的字符数。
func (f *Fixer) Fix(ctx context.Context, id contract.FileID, text string) (string, contract.Note, error) {
	if err := ctx.Err(); err != nil {
		return text, "", err
	}
	if !f.allow.Allows(string(id)) {
		return text, "", nil
	}
	out := text
	var hit []string
	for i, step := range f.steps {
		next := step(out)
		if n := utf8.RuneCountInString(out) - utf8.RuneCountInString(next); n > 0 {
			hit = append(hit, fmt.Sprintf("%s-%d", f.names[i], n))
		}
		out = next
	}
	if len(hit) == 0 {
		return text, "", nil
	}
	return out, contract.Note("header:" + strings.Join(hit, ",")), nil
}

// knownPatterns 合并内置与追加的模式，按长度降序以优先匹配最长前缀。
func knownPatterns(extra []string) ([]string, error) {
	pats := make([]string, 0, len(KnownPatterns)+len(extra))
	pats = append(pats, KnownPatterns...)
	for _, p := range extra {
		if p == "" {
			return nil, fmt.Errorf("%w: header: empty extra pattern", contract.ErrInvalidInput)
		}
		pats = append(pats, p)
	}
	sort.SliceStable(pats, func(i, j int) bool { return len(pats[i]) > len(pats[j]) })
	return pats, nil
}

// stripKnown 反复剥离匹配的前缀，直到没有模式命中。
func stripKnown(text string, pats []string) string {
	for {
		stripped := false
		for _, p := range pats {
			if strings.HasPrefix(text, p) {
				text = text[len(p):]
				stripped = true
				break
			}
		}
		if !stripped {
			return text
		}
	}
}

// stripNonASCII 剥离开头连续的非 ASCII 字符；
// 若随后是 "A" 紧跟非 ASCII（"Aƒ" 一类残骸），连同 A 一起继续剥离。
func stripNonASCII(text string) string {
	text = trimNonASCII(text)
	for len(text) > 1 && text[0] == 'A' && text[1] >= utf8.RuneSelf {
		text = trimNonASCII(text[1:])
	}
	return text
}

func trimNonASCII(text string) string {
	for i, r := range text {
		if r < utf8.RuneSelf {
			return text[i:]
		}
	}
	return ""
}

// stripBeforeAnchor 删除最早出现的标记之前的内容；前缀只含空白时保持不变。
func stripBeforeAnchor(text string, anchors []string) string {
	first := -1
	for _, a := range anchors {
		if i := strings.Index(text, a); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	if first <= 0 || strings.TrimSpace(text[:first]) == "" {
		return text
	}
	return text[first:]
}
