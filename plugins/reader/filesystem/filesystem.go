package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"mojifix/pkg/contract"
)

// 默认值：Web 项目的标记与源码文件，跳过构建输出目录。
var (
	DefaultExtensions      = []string{".cshtml", ".cs", ".js"}
	DefaultExcludeDirNames = []string{"bin", "obj"}
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `mapstructure:"buf_size"`
	// Extensions: 目录遍历时只产出这些扩展名的文件；nil 取默认，含 "*" 表示不限制。
	// 显式列出的单文件 root 不受此限制。
	Extensions []string `mapstructure:"extensions"`
	// ExcludeDirNames: 跳过这些目录名（基名、大小写不敏感）；nil 取默认 [bin, obj]。
	ExcludeDirNames []string `mapstructure:"exclude_dir_names"`
	// Include: doublestar 模式，匹配相对 root 的路径；非空时文件须至少命中一个。
	Include []string `mapstructure:"include"`
	// Exclude: doublestar 模式；命中的文件或目录被跳过。
	Exclude []string `mapstructure:"exclude"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
type FileSystem struct {
	bufSize int
	exts    contract.ExtSet
	// 以小写形式保存，比较时按小写基名匹配。
	excludeDir map[string]struct{}
	include    []string
	exclude    []string
}

// New 创建 FileSystem Reader；glob 模式非法时返回 ErrInvalidInput。
func New(opts *Options) (*FileSystem, error) {
	const defaultBuf = 64 * 1024
	if opts == nil {
		opts = &Options{}
	}
	r := &FileSystem{bufSize: defaultBuf, excludeDir: make(map[string]struct{})}
	if opts.BufSize > 0 {
		r.bufSize = opts.BufSize
	}

	exts := opts.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	r.exts = contract.NewExtSet(exts)
	for _, e := range exts {
		if strings.TrimSpace(e) == "*" {
			r.exts = nil
			break
		}
	}

	dirs := opts.ExcludeDirNames
	if dirs == nil {
		dirs = DefaultExcludeDirNames
	}
	for _, name := range dirs {
		name = strings.Trim(strings.TrimSpace(name), `/\`)
		if name == "" {
			continue
		}
		r.excludeDir[strings.ToLower(name)] = struct{}{}
	}

	var err error
	if r.include, err = cleanPatterns("include", opts.Include); err != nil {
		return nil, err
	}
	if r.exclude, err = cleanPatterns("exclude", opts.Exclude); err != nil {
		return nil, err
	}
	return r, nil
}

func cleanPatterns(field string, pats []string) ([]string, error) {
	out := make([]string, 0, len(pats))
	for _, p := range pats {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: reader %s pattern %q", contract.ErrInvalidInput, field, p)
		}
		out = append(out, p)
	}
	return out, nil
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Iterate 遍历 roots，按稳定顺序对每个候选文件调用 yield。
// roots 为空或仅为 "-" 时产出 STDIN。枚举失败的条目以 Source.Err 上报，不中断遍历；
// yield 返回的错误与 ctx 取消会立即中止。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(src contract.Source) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		return yield(contract.Source{
			ID:   contract.StdinID,
			Path: "-",
			Rel:  string(contract.StdinID),
			Open: func() (io.ReadCloser, error) {
				// 不关闭进程的 STDIN
				return newBufferedCloser(io.NopCloser(os.Stdin), r.bufSize), nil
			},
		})
	}
	// 禁止与其他根混用 "-"
	for _, s := range roots {
		if s == "-" {
			return fmt.Errorf("%w: stdin '-' cannot be mixed with other roots", contract.ErrInvalidInput)
		}
	}

	for _, root := range roots {
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield func(contract.Source) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Lstat(root)
	if err != nil {
		return yield(r.failed(root, root, err))
	}
	// 仅跟随到常规文件；目录符号链接不跟随（忽略）
	if info.Mode()&os.ModeSymlink != 0 {
		t, err := os.Stat(root)
		if err != nil {
			return yield(r.failed(root, root, err))
		}
		if t.Mode().IsRegular() {
			return yield(r.source(root, root))
		}
		return nil
	}

	if info.IsDir() {
		return r.walkDir(ctx, root, root, yield)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return yield(r.source(root, root))
}

func (r *FileSystem) walkDir(ctx context.Context, root, dir string, yield func(contract.Source) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield(r.failed(root, dir, err))
	}
	// 稳定顺序：字典序
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	// 先目录（不跟随目录符号链接）
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if matchesAny(r.exclude, contract.RelOf(root, p)) {
			continue
		}
		if err := r.walkDir(ctx, root, p, yield); err != nil {
			return err
		}
	}
	// 再文件（允许指向常规文件的符号链接；目录符号链接忽略）
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if !r.exts.Allows(e.Name()) {
			continue
		}
		rel := contract.RelOf(root, p)
		if len(r.include) > 0 && !matchesAny(r.include, rel) {
			continue
		}
		if matchesAny(r.exclude, rel) {
			continue
		}
		if e.Type()&os.ModeSymlink != 0 {
			t, err := os.Stat(p)
			if err != nil {
				if err := yield(r.failed(root, p, err)); err != nil {
					return err
				}
				continue
			}
			if !t.Mode().IsRegular() {
				continue
			}
		} else if !e.Type().IsRegular() {
			// 设备、FIFO 等跳过
			continue
		}
		if err := yield(r.source(root, p)); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) source(root, p string) contract.Source {
	return contract.Source{
		ID:   contract.NormalizeFileID(p),
		Path: p,
		Rel:  contract.RelOf(root, p),
		Open: func() (io.ReadCloser, error) {
			f, err := os.Open(p)
			if err != nil {
				return nil, err
			}
			return newBufferedCloser(f, r.bufSize), nil
		},
	}
}

func (r *FileSystem) failed(root, p string, err error) contract.Source {
	return contract.Source{ID: contract.NormalizeFileID(p), Path: p, Rel: contract.RelOf(root, p), Err: err}
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
