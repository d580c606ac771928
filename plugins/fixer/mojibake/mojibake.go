// Package mojibake 将乱码解包启发式包装为 contract.Fixer。
package mojibake

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	core "mojifix/internal/mojibake"
	"mojifix/pkg/contract"
)

// 粒度。
const (
	GranularityText = "text"
	GranularityLine = "line"
)

// DefaultCacheSize: line 粒度下行级结果缓存的默认容量。
const DefaultCacheSize = 4096

// Options 为 mojibake 修复器的配置。
type Options struct {
	// Encoding: 误读所用的单字节编码（latin1 | windows-1252），默认 windows-1252。
	Encoding string `mapstructure:"encoding"`
	// MaxLayers: 1..5，默认 5。
	MaxLayers int `mapstructure:"max_layers"`
	// Granularity: text（整段）或 line（逐行独立解包）。
	Granularity string `mapstructure:"granularity"`
	// CacheSize: line 粒度的 LRU 容量；<=0 取默认值。
	CacheSize int `mapstructure:"cache_size"`
	// AllowExts: 仅处理这些扩展名；为空不限制。
	AllowExts []string `mapstructure:"allow_exts"`
}

type lineResult struct {
	text   string
	layers int
}

// Fixer 对整段或逐行执行解包链。
type Fixer struct {
	h         core.Hypothesis
	maxLayers int
	perLine   bool
	cache     *lru.Cache[string, lineResult]
	allow     contract.ExtSet
}

// New 校验选项并构造修复器。
func New(opts *Options) (*Fixer, error) {
	if opts == nil {
		opts = &Options{}
	}
	h, err := core.HypothesisFor(opts.Encoding)
	if err != nil {
		return nil, err
	}
	limit := opts.MaxLayers
	if limit == 0 {
		limit = core.MaxLayers
	}
	if limit < 1 || limit > core.MaxLayers {
		return nil, fmt.Errorf("%w: mojibake: max_layers must be 1..%d, got %d", contract.ErrInvalidInput, core.MaxLayers, opts.MaxLayers)
	}
	f := &Fixer{h: h, maxLayers: limit, allow: contract.NewExtSet(opts.AllowExts)}
	switch g := strings.ToLower(strings.TrimSpace(opts.Granularity)); g {
	case "", GranularityText:
	case GranularityLine:
		size := opts.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		c, err := lru.New[string, lineResult](size)
		if err != nil {
			return nil, fmt.Errorf("mojibake: line cache: %w", err)
		}
		f.perLine, f.cache = true, c
	default:
		return nil, fmt.Errorf("%w: mojibake: unknown granularity %q", contract.ErrInvalidInput, opts.Granularity)
	}
	return f, nil
}

// Name 实现 contract.Fixer。
func (f *Fixer) Name() string { return "mojibake" }

// Fix 实现 contract.Fixer。line 粒度时 Note 中的层数取各行最大值。
func (f *Fixer) Fix(ctx context.Context, id contract.FileID, text string) (string, contract.Note, error) {
	if err := ctx.Err(); err != nil {
		return text, "", err
	}
	if !f.allow.Allows(string(id)) {
		return text, "", nil
	}
	if !f.perLine {
		r := core.RepairN(text, f.h, f.maxLayers)
		if !r.Changed {
			return text, "", nil
		}
		return r.Text, r.Note(), nil
	}
	return f.fixLines(ctx, text)
}

func (f *Fixer) fixLines(ctx context.Context, text string) (string, contract.Note, error) {
	lines := strings.SplitAfter(text, "\n")
	var sb strings.Builder
	sb.Grow(len(text))
	maxLayers, touched := 0, 0
	for _, ln := range lines {
		if err := ctx.Err(); err != nil {
			return text, "", err
		}
		res := f.repairLine(ln)
		if res.layers > 0 {
			touched++
			if res.layers > maxLayers {
				maxLayers = res.layers
			}
		}
		sb.WriteString(res.text)
	}
	if touched == 0 {
		return text, "", nil
	}
	return sb.String(), contract.Note(fmt.Sprintf("mojibake×%d(%d lines)", maxLayers, touched)), nil
}

// repairLine 仅缓存含非 ASCII 的行；纯 ASCII 行解包必然不缩短。
func (f *Fixer) repairLine(ln string) lineResult {
	if isASCII(ln) {
		return lineResult{text: ln}
	}
	if v, ok := f.cache.Get(ln); ok {
		return v
	}
	r := core.RepairN(ln, f.h, f.maxLayers)
	v := lineResult{text: r.Text, layers: r.Layers}
	f.cache.Add(ln, v)
	return v
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
