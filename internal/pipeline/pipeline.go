package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"mojifix/internal/audit"
	"mojifix/internal/diag"
	"mojifix/internal/textenc"
	"mojifix/pkg/contract"
)

// - 单点并发：仅此层管理并发与背压；Reader/Fixer/Writer 均为同步实现。
// - 文件互相独立：单个文件的失败只进入报告，不取消整体；只有取消与枚举期错误中止运行。
// - 报告顺序与并发无关：结果收集后按 FileID 排序。

// Components 聚合运行所需的组件。
type Components struct {
	Reader contract.Reader
	Fixers []contract.Fixer
	// Writer: DryRun 或 ScanOnly 时可为空。
	Writer contract.Writer
}

// Settings 运行期配置。
type Settings struct {
	Inputs      []string
	Concurrency int
	// DryRun: 计算并报告全部变化，但不写出。
	DryRun bool
	// ScanOnly: 只解码与审计，不执行 fixer、不写出。
	ScanOnly bool
	// Fallbacks: 非 UTF-8 文件依序尝试的单字节编码。
	Fallbacks []string
	BOM       textenc.BOMPolicy
	// Audit: 是否对最终文本做残留检查。
	Audit      bool
	AuditRange audit.Range
}

// Run 执行：Reader → (worker 池) 读取 → 解码 → Fixer 链 → 编码 → Writer → 审计。
// 返回的 Report 总是非空（取消时为已完成部分）。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (*Report, error) {
	if err := sanity(comp, &set); err != nil {
		return newReport(nil, set.DryRun), fmt.Errorf("sanity: %w", err)
	}
	if logger == nil {
		logger = diag.NewNop()
	}

	pool, err := ants.NewPool(set.Concurrency, ants.WithNonblocking(false), ants.WithExpiryDuration(10*time.Second))
	if err != nil {
		return newReport(nil, set.DryRun), fmt.Errorf("worker pool: %w", err)
	}
	defer pool.Release()

	results := make(chan FileResult, set.Concurrency*2)
	var files []FileResult
	g, gctx := errgroup.WithContext(ctx)

	// 收集者：唯一写 files 的 goroutine
	g.Go(func() error {
		for r := range results {
			files = append(files, r)
		}
		return nil
	})

	// 生产者：枚举并提交；Submit 在池满时阻塞，形成自然背压
	g.Go(func() error {
		defer close(results)
		var wg sync.WaitGroup
		rtimer := logger.Start("reader", "iterate")
		n := int64(0)
		ierr := comp.Reader.Iterate(gctx, set.Inputs, func(src contract.Source) error {
			n++
			wg.Add(1)
			if serr := pool.Submit(func() {
				defer wg.Done()
				results <- processSafe(gctx, comp, set, logger, src)
			}); serr != nil {
				wg.Done()
				return fmt.Errorf("submit %s: %w", src.ID, serr)
			}
			return nil
		})
		wg.Wait()
		if ierr != nil {
			code := diag.Classify(ierr)
			logger.Error("reader", string(code), "iterate failed", rtimer.Since())
			diag.IncOp("reader", "error", "error")
			diag.IncError("reader", string(code))
			return fmt.Errorf("reader iterate: %w", ierr)
		}
		rtimer.Finish("iterate", n)
		diag.IncOp("reader", "finish", "success")
		return nil
	})

	err = g.Wait()
	rep := newReport(files, set.DryRun)
	if err == nil {
		// 枚举结束后才取消的情形（worker 内已记录为失败）
		err = ctx.Err()
	}
	return rep, err
}

func sanity(c Components, s *Settings) error {
	if c.Reader == nil {
		return errors.New("pipeline: missing reader")
	}
	if c.Writer == nil && !s.DryRun && !s.ScanOnly {
		return errors.New("pipeline: missing writer")
	}
	if len(s.Inputs) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.BOM == "" {
		s.BOM = textenc.BOMAlways
	}
	return nil
}

// processSafe: 实现中的 panic 只影响当前文件。
func processSafe(ctx context.Context, comp Components, set Settings, logger *diag.Logger, src contract.Source) (res FileResult) {
	defer func() {
		if p := recover(); p != nil {
			res = FileResult{ID: src.ID, Rel: src.Rel, Status: StatusFailed, Err: fmt.Errorf("panic: %v", p)}
			logger.ErrorWith("pipeline", string(diag.CodeUnknown), "panic recovered", nil, string(src.ID))
			diag.IncOp("pipeline", "file", "error")
		}
	}()
	return process(ctx, comp, set, logger, src)
}

// process 处理单个文件。任何失败都只体现在返回值中，磁盘文件不被触碰。
func process(ctx context.Context, comp Components, set Settings, logger *diag.Logger, src contract.Source) (res FileResult) {
	start := time.Now()
	res = FileResult{ID: src.ID, Rel: src.Rel}
	defer func() {
		res.Dur = time.Since(start)
		diag.ObserveDuration("pipeline", "file", res.Dur.Milliseconds())
		if t := diag.GetTerminal(); t != nil {
			t.FileFinish(string(src.ID), res.Status != StatusFailed, res.Dur)
		}
	}()
	fid := string(src.ID)

	skip := func(stage string, err error) FileResult {
		code := diag.Classify(err)
		res.Status, res.Err = StatusSkipped, err
		logger.WarnWith(stage, string(code), err.Error(), fid)
		diag.IncOp(stage, "skip", "skip")
		diag.IncError(stage, string(code))
		return res
	}
	fail := func(stage string, err error) FileResult {
		code := diag.Classify(err)
		res.Status, res.Err = StatusFailed, err
		logger.ErrorWith(stage, string(code), err.Error(), &start, fid)
		diag.IncOp(stage, "error", "error")
		diag.IncError(stage, string(code))
		return res
	}

	if src.Err != nil {
		return skip("reader", src.Err)
	}
	if err := ctx.Err(); err != nil {
		return fail("pipeline", err)
	}

	raw, err := readAll(src)
	if err != nil {
		return skip("reader", err)
	}
	dec, err := textenc.Decode(raw, set.Fallbacks)
	if err != nil {
		return skip("decode", fmt.Errorf("%s: %w", fid, err))
	}
	res.Encoding = dec.Encoding
	if dec.Encoding != textenc.UTF8 {
		logger.DebugStart("decode", "fallback", fid, map[string]string{"encoding": dec.Encoding})
	}

	text := dec.Text
	if !set.ScanOnly {
		for _, f := range comp.Fixers {
			ftimer := logger.StartWith(f.Name(), "fix", fid)
			out, note, ferr := f.Fix(ctx, src.ID, text)
			if ferr != nil {
				return fail(f.Name(), ferr)
			}
			if note != "" {
				res.Notes = append(res.Notes, note)
			}
			touched := int64(0)
			if out != text {
				touched = 1
			}
			ftimer.Finish("fix", touched)
			diag.IncOp(f.Name(), "finish", "success")
			text = out
		}
	}

	if set.Audit {
		if fd, ok := audit.Check(text, set.AuditRange); ok {
			res.Leftover = &fd
		}
	}

	if set.ScanOnly {
		res.Status = StatusUnchanged
		return res
	}

	// 内容变化、回退解码后转存 UTF-8、或 BOM 归一，都要求改写
	changed := text != dec.Text
	if dec.Encoding != textenc.UTF8 {
		res.Notes = append(res.Notes, contract.Note("encoding:"+dec.Encoding))
		changed = true
	}
	if set.BOM.ForcesRewrite(dec.BOM) {
		res.Notes = append(res.Notes, contract.Note("bom:"+string(set.BOM)))
		changed = true
	}
	res.Status = StatusUnchanged
	if changed {
		res.Status = StatusChanged
	}

	// STDIN 是过滤器：无论是否变化都要把结果写到 STDOUT
	if set.DryRun || (!changed && !src.Stdin()) {
		return res
	}
	wtimer := logger.StartWith("writer", "write", fid)
	payload := textenc.Encode(text, set.BOM.WantBOM(dec.BOM))
	if err := comp.Writer.Write(ctx, src, bytes.NewReader(payload)); err != nil {
		return fail("writer", err)
	}
	wtimer.Finish("write", int64(len(payload)))
	diag.IncOp("writer", "finish", "success")
	res.Written = true
	return res
}

func readAll(src contract.Source) ([]byte, error) {
	if src.Open == nil {
		return nil, fmt.Errorf("%w: %s has no opener", contract.ErrInvalidInput, src.ID)
	}
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
