package contract

import (
	"path"
	"strings"
)

// ExtSet: 允许的扩展名集合（小写、含点）。nil 表示不限制。
type ExtSet map[string]struct{}

// NewExtSet 由配置构造集合；exts 为 nil 或空时返回 nil（不限制）。
func NewExtSet(exts []string) ExtSet {
	if len(exts) == 0 {
		return nil
	}
	s := make(ExtSet, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		s[e] = struct{}{}
	}
	return s
}

// Allows 报告 name（路径或 FileID）的扩展名是否在集合内。
func (s ExtSet) Allows(name string) bool {
	if s == nil {
		return true
	}
	_, ok := s[strings.ToLower(path.Ext(name))]
	return ok
}
