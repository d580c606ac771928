package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"mojifix/internal/audit"
	"mojifix/pkg/contract"
)

// Status: 单个文件的处理结果。
type Status string

const (
	// StatusUnchanged: 无需改写。
	StatusUnchanged Status = "unchanged"
	// StatusChanged: 内容或 BOM 有变化（dry-run 下表示"将改写"）。
	StatusChanged Status = "changed"
	// StatusSkipped: 不可读或不可解码，磁盘文件保持原样。
	StatusSkipped Status = "skipped"
	// StatusFailed: fixer 或 writer 出错，磁盘文件保持原样。
	StatusFailed Status = "failed"
)

// FileResult: 报告中的一行。
type FileResult struct {
	ID       contract.FileID
	Rel      string
	Status   Status
	Notes    []contract.Note
	Encoding string // 解码时采用的编码；跳过的文件为空
	Written  bool
	Err      error
	Leftover *audit.Finding
	Dur      time.Duration
}

// Report: 一次运行的全部结果，按 FileID 排序。
type Report struct {
	Files  []FileResult
	DryRun bool
}

func newReport(files []FileResult, dryRun bool) *Report {
	sort.Slice(files, func(i, j int) bool {
		if files[i].ID != files[j].ID {
			return files[i].ID < files[j].ID
		}
		return files[i].Rel < files[j].Rel
	})
	return &Report{Files: files, DryRun: dryRun}
}

// Count 返回指定状态的文件数。
func (r *Report) Count(s Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == s {
			n++
		}
	}
	return n
}

// Changed 返回有变化的文件（按 FileID 排序）。
func (r *Report) Changed() []FileResult {
	return r.filter(func(f FileResult) bool { return f.Status == StatusChanged })
}

// Leftovers 返回最终文本仍含可疑字符的文件。
func (r *Report) Leftovers() []FileResult {
	return r.filter(func(f FileResult) bool { return f.Leftover != nil })
}

// Problems 返回跳过与失败的文件。
func (r *Report) Problems() []FileResult {
	return r.filter(func(f FileResult) bool { return f.Status == StatusSkipped || f.Status == StatusFailed })
}

func (r *Report) filter(keep func(FileResult) bool) []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// WriteText 输出人类可读报告：每个变更文件一行，随后是问题文件、汇总与残留清单。
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	verb := "已修复"
	if r.DryRun {
		verb = "将修复"
	}
	for _, f := range r.Changed() {
		b.WriteString(verb + ": " + display(f))
		if len(f.Notes) > 0 {
			notes := make([]string, len(f.Notes))
			for i, n := range f.Notes {
				notes[i] = string(n)
			}
			b.WriteString(" [" + strings.Join(notes, " ") + "]")
		}
		b.WriteByte('\n')
	}
	for _, f := range r.Problems() {
		tag := "跳过"
		if f.Status == StatusFailed {
			tag = "失败"
		}
		fmt.Fprintf(&b, "%s: %s (%v)\n", tag, display(f), f.Err)
	}
	fmt.Fprintf(&b, "汇总: 文件 %d | 修改 %d | 未变 %d | 跳过 %d | 失败 %d\n",
		len(r.Files), r.Count(StatusChanged), r.Count(StatusUnchanged), r.Count(StatusSkipped), r.Count(StatusFailed))
	if left := r.Leftovers(); len(left) > 0 {
		fmt.Fprintf(&b, "残留 (%d):\n", len(left))
		for _, f := range left {
			fmt.Fprintf(&b, "  %s: %s\n", display(f), f.Leftover)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func display(f FileResult) string {
	if f.Rel != "" {
		return f.Rel
	}
	return string(f.ID)
}
