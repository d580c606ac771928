package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mojifix/internal/audit"
	"mojifix/internal/textenc"
	"mojifix/pkg/contract"
	fmoj "mojifix/plugins/fixer/mojibake"
	rfs "mojifix/plugins/reader/filesystem"
)

// BenchmarkRunDryRun 不同并发度下整树修复（不写盘）的吞吐。
func BenchmarkRunDryRun(b *testing.B) {
	root := b.TempDir()
	body := strings.Repeat("<p>Tiáº¿ng Viá»‡t</p>\n", 200)
	for i := 0; i < 64; i++ {
		p := filepath.Join(root, fmt.Sprintf("d%02d", i%8), fmt.Sprintf("f%03d.cshtml", i))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			b.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			b.Fatalf("write: %v", err)
		}
	}
	r, err := rfs.New(nil)
	if err != nil {
		b.Fatalf("reader: %v", err)
	}
	m, err := fmoj.New(nil)
	if err != nil {
		b.Fatalf("fixer: %v", err)
	}
	comp := Components{Reader: r, Fixers: []contract.Fixer{m}}

	for _, conc := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("conc=%d", conc), func(b *testing.B) {
			set := Settings{
				Inputs:      []string{root},
				Concurrency: conc,
				DryRun:      true,
				BOM:         textenc.BOMAlways,
				Audit:       true,
				AuditRange:  audit.DefaultRange,
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				rep, err := Run(context.Background(), comp, set, nil)
				if err != nil {
					b.Fatalf("run: %v", err)
				}
				if rep.Count(StatusChanged) != 64 {
					b.Fatalf("changed=%d", rep.Count(StatusChanged))
				}
			}
		})
	}
}
