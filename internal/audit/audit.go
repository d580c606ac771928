// Package audit 统计修复后文本中仍落在可疑码位区间内的字符。
package audit

import (
	"fmt"
	"strconv"
	"strings"

	"mojifix/pkg/contract"
)

// Range: 闭区间 [From, To]。
type Range struct {
	From rune
	To   rune
}

// DefaultRange: Latin-1 之外的 BMP 字符（U+0100..U+FFFF）。
var DefaultRange = Range{From: 0x0100, To: 0xFFFF}

// ParseRange 解析 "U+0100"/"0x100"/"256" 形式的两端；空串取默认端点。
func ParseRange(from, to string) (Range, error) {
	r := DefaultRange
	var err error
	if strings.TrimSpace(from) != "" {
		if r.From, err = parseRune(from); err != nil {
			return Range{}, err
		}
	}
	if strings.TrimSpace(to) != "" {
		if r.To, err = parseRune(to); err != nil {
			return Range{}, err
		}
	}
	if r.From > r.To {
		return Range{}, fmt.Errorf("%w: audit range %U > %U", contract.ErrInvalidInput, r.From, r.To)
	}
	return r, nil
}

func parseRune(s string) (rune, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	base := 10
	switch {
	case strings.HasPrefix(t, "U+"):
		t, base = t[2:], 16
	case strings.HasPrefix(t, "0X"):
		t, base = t[2:], 16
	}
	v, err := strconv.ParseUint(t, base, 32)
	if err != nil || v > 0x10FFFF {
		return 0, fmt.Errorf("%w: code point %q", contract.ErrInvalidInput, s)
	}
	return rune(v), nil
}

// Contains 报告 r 是否落在区间内。
func (rg Range) Contains(r rune) bool { return r >= rg.From && r <= rg.To }

func (rg Range) String() string { return fmt.Sprintf("%U..%U", rg.From, rg.To) }

// Finding: 单个文件的残留统计。
type Finding struct {
	Count int
	First rune // 第一个命中的字符
	Line  int  // First 所在行（从 1 起）
}

// Check 扫描 text；没有命中时 ok=false。
func Check(text string, rg Range) (f Finding, ok bool) {
	line := 1
	for _, r := range text {
		if r == '\n' {
			line++
			continue
		}
		if !rg.Contains(r) {
			continue
		}
		if f.Count == 0 {
			f.First, f.Line = r, line
		}
		f.Count++
	}
	return f, f.Count > 0
}

func (f Finding) String() string {
	return fmt.Sprintf("%d 个可疑字符，首个 %q (%U) 于第 %d 行", f.Count, f.First, f.First, f.Line)
}
