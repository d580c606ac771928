// Package terms 按有序字面量表做顺序子串替换（界面文案翻译、已知损坏串的显式修正）。
package terms

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mojifix/pkg/contract"
)

//go:embed tables/*.yaml
var builtinFS embed.FS

// Pair: 一条替换规则。
type Pair struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to" yaml:"to"`
}

// Table: 不可变的有序替换表。
type Table []Pair

// Options 为 terms 修复器的配置。表的拼接顺序：Builtin → TablePath → Inline。
type Options struct {
	// Builtin: 内置表名（见 BuiltinNames）。
	Builtin []string `mapstructure:"builtin"`
	// TablePath: YAML 映射文件，按文件中的键顺序生效。
	TablePath string `mapstructure:"table_path"`
	// Inline: 直接写在配置里的规则。
	Inline []Pair `mapstructure:"inline"`
	// AllowExts: 仅处理这些扩展名；为空不限制。
	AllowExts []string `mapstructure:"allow_exts"`
}

// Fixer 依表序对全文做 ReplaceAll。
type Fixer struct {
	table Table
	allow contract.ExtSet
}

// New 加载并合并各来源的表；重复的 from 保留先出现的一条。
func New(opts *Options) (*Fixer, error) {
	if opts == nil {
		opts = &Options{}
	}
	var all Table
	for _, name := range opts.Builtin {
		t, err := Builtin(name)
		if err != nil {
			return nil, err
		}
		all = append(all, t...)
	}
	if p := strings.TrimSpace(opts.TablePath); p != "" {
		t, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, t...)
	}
	all = append(all, opts.Inline...)
	t, err := all.compact()
	if err != nil {
		return nil, err
	}
	return &Fixer{table: t, allow: contract.NewExtSet(opts.AllowExts)}, nil
}

// Name 实现 contract.Fixer。
func (f *Fixer) Name() string { return "terms" }

// Len 返回生效规则数。
func (f *Fixer) Len() int { return len(f.table) }

// Fix 顺序替换；Note 记录总替换次数。
func (f *Fixer) Fix(ctx context.Context, id contract.FileID, text string) (string, contract.Note, error) {
	if err := ctx.Err(); err != nil {
		return text, "", err
	}
	if !f.allow.Allows(string(id)) {
		return text, "", nil
	}
	out, n := f.table.Apply(text)
	if n == 0 {
		return text, "", nil
	}
	return out, contract.Note(fmt.Sprintf("terms×%d", n)), nil
}

// Apply 依序执行替换，返回结果与替换次数。
func (t Table) Apply(text string) (string, int) {
	total := 0
	for _, p := range t {
		if n := strings.Count(text, p.From); n > 0 {
			text = strings.ReplaceAll(text, p.From, p.To)
			total += n
		}
	}
	return text, total
}

// compact 校验并去重（保序）。
func (t Table) compact() (Table, error) {
	seen := make(map[string]struct{}, len(t))
	out := make(Table, 0, len(t))
	for i, p := range t {
		if p.From == "" {
			return nil, fmt.Errorf("%w: terms: entry %d has empty from", contract.ErrInvalidInput, i)
		}
		if _, dup := seen[p.From]; dup {
			continue
		}
		seen[p.From] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// BuiltinNames 返回内置表名（排序）。
func BuiltinNames() []string {
	ents, _ := builtinFS.ReadDir("tables")
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Builtin 读取内置表。
func Builtin(name string) (Table, error) {
	b, err := builtinFS.ReadFile("tables/" + strings.TrimSpace(name) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: terms builtin %q (have %s)", contract.ErrUnknownComponent, name, strings.Join(BuiltinNames(), ", "))
	}
	return Load(bytes.NewReader(b))
}

// LoadFile 读取 YAML 表文件。
func LoadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("terms: open table: %w", err)
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("terms: %s: %w", path, err)
	}
	return t, nil
}

// Load 解析 YAML 映射（from: to）。使用节点树以保留键的书写顺序；空文档得到空表。
func Load(r io.Reader) (Table, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: terms yaml: %v", contract.ErrInvalidInput, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: terms yaml: line %d: want a mapping of from: to", contract.ErrInvalidInput, m.Line)
	}
	t := make(Table, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: terms yaml: line %d: key and value must be scalars", contract.ErrInvalidInput, k.Line)
		}
		t = append(t, Pair{From: k.Value, To: v.Value})
	}
	return t, nil
}
