package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mojifix/pkg/contract"
)

// Options 为文件系统 Writer 的配置。
type Options struct {
	// OutputDir: 为空时原地改写 Source.Path；非空时按 Source.Rel 镜像到该目录下。
	OutputDir string `mapstructure:"output_dir"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。nil 取默认 true。
	Atomic *bool `mapstructure:"atomic"`
	// PermFile/PermDir: 新建文件/目录的权限；为 0 取 0644/0755。已存在的文件保持原权限。
	PermFile os.FileMode `mapstructure:"perm_file"`
	PermDir  os.FileMode `mapstructure:"perm_dir"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `mapstructure:"buf_size"`
}

// FS 实现 contract.Writer。
type FS struct {
	root    string
	atomic  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
	// stdout 为 nil 时在写入时取 os.Stdout。
	stdout io.Writer
}

// New 创建文件系统 Writer。OutputDir 已存在但不是目录时返回 ErrInvalidInput。
func New(opts *Options) (*FS, error) {
	if opts == nil {
		opts = &Options{}
	}
	root := strings.TrimSpace(opts.OutputDir)
	if root != "" {
		if info, err := os.Stat(root); err == nil && !info.IsDir() {
			return nil, fmt.Errorf("%w: output_dir %q is not a directory", contract.ErrInvalidInput, root)
		}
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	return &FS{root: root, atomic: atomic, permF: pf, permD: pd, bufSize: bsz}, nil
}

var _ contract.Writer = (*FS)(nil)

// InPlace 报告是否原地改写。
func (w *FS) InPlace() bool { return w.root == "" }

// Write 将 r 的全部字节写入 src 对应的目标；STDIN 来源写到 STDOUT。
func (w *FS) Write(ctx context.Context, src contract.Source, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if src.Stdin() {
		out := w.stdout
		if out == nil {
			out = os.Stdout
		}
		_, err := io.Copy(out, readerWithCtx(ctx, r))
		return err
	}

	dest, err := w.destOf(src)
	if err != nil {
		return err
	}
	perm := w.permF
	if info, err := os.Stat(dest); err == nil {
		perm = info.Mode().Perm()
	} else if info, err := os.Stat(src.Path); err == nil && src.Path != "" {
		perm = info.Mode().Perm()
	}
	if !w.InPlace() {
		if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
			return err
		}
	}

	if w.atomic {
		return w.writeAtomic(ctx, dest, perm, r)
	}
	return w.writeOverwrite(ctx, dest, perm, r)
}

// destOf 计算目标路径。原地模式下解析符号链接，改写链接指向的文件而不是替换链接本身。
func (w *FS) destOf(src contract.Source) (string, error) {
	if w.InPlace() {
		if strings.TrimSpace(src.Path) == "" {
			return "", contract.ErrPathInvalid
		}
		if resolved, err := filepath.EvalSymlinks(src.Path); err == nil {
			return resolved, nil
		}
		return src.Path, nil
	}
	return w.mapPath(src.Rel)
}

// mapPath: Clean + Join + 越界校验。rel 为 '/' 分隔。
func (w *FS) mapPath(rel string) (string, error) {
	if strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", contract.ErrPathInvalid
	}
	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel == "." || rel == "" {
		return "", contract.ErrPathInvalid
	}
	if filepath.IsAbs(rel) {
		return "", contract.ErrPathInvalid
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	if vol := filepath.VolumeName(rel); vol != "" {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(w.root, rel), nil
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, perm os.FileMode, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func (w *FS) writeAtomic(ctx context.Context, dest string, perm os.FileMode, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".mojifix-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	// CreateTemp 固定 0600，这里改回目标权限
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fail(err)
	}

	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := osReplace(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// 最佳努力：同步父目录，提升崩溃安全性
	_ = syncDir(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
